package client

import "time"

// Answer is one questionnaire response. Value may be a string, number or bool.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      any    `json:"value"`
}

// Criteria is the structured intent the service derived from a request. Nil
// and empty fields are unconstrained.
type Criteria struct {
	Sound      string `json:"sound,omitempty"`
	Size       string `json:"size,omitempty"`
	Budget     *int   `json:"budget,omitempty"`
	SwitchType string `json:"switch_type,omitempty"`
	Wireless   *bool  `json:"wireless,omitempty"`
	HotSwap    *bool  `json:"hot_swap,omitempty"`
	Material   string `json:"material,omitempty"`
}

// Component is one build slot. ProductID and DetailPath are set when the slot
// matched a catalog entry.
type Component struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason"`
	ProductID  string  `json:"product_id,omitempty"`
	DetailPath string  `json:"detail_path,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	ProductURL string  `json:"product_url,omitempty"`
}

// SwitchComponent is the switch slot; Price is Quantity times PricePerSwitch.
type SwitchComponent struct {
	Component
	Quantity       int     `json:"quantity"`
	PricePerSwitch float64 `json:"price_per_switch"`
}

// Modification is an optional mod suggestion.
type Modification struct {
	Name       string  `json:"name"`
	Cost       float64 `json:"cost"`
	Effect     string  `json:"effect"`
	Difficulty string  `json:"difficulty"`
}

// Build is a complete recommendation. When Error is set the service could not
// produce one and Notes explains why; prices are zero.
type Build struct {
	Name           string          `json:"name"`
	Summary        string          `json:"summary"`
	Keyboard       Component       `json:"keyboard"`
	Switches       SwitchComponent `json:"switches"`
	Keycaps        Component       `json:"keycaps"`
	Stabilizers    Component       `json:"stabilizers"`
	Mods           []Modification  `json:"mods"`
	EstimatedTotal float64         `json:"estimated_total"`
	SoundProfile   string          `json:"sound_profile"`
	Difficulty     string          `json:"difficulty"`
	Notes          string          `json:"notes"`
	Error          bool            `json:"error,omitempty"`
	SchemaVersion  string          `json:"schema_version,omitempty"`
}

// Match describes the catalog check of one slot.
type Match struct {
	Slot        string   `json:"slot"`
	Outcome     string   `json:"outcome"` // unmatched, suggested or corrected
	Original    string   `json:"original"`
	MatchedName string   `json:"matched_name,omitempty"`
	MatchedID   string   `json:"matched_id,omitempty"`
	Confidence  float64  `json:"confidence"`
	PriceDelta  *float64 `json:"price_delta,omitempty"`
}

// ValidationReport summarizes the catalog check of a build.
type ValidationReport struct {
	Matches     []Match `json:"matches"`
	TotalBefore float64 `json:"total_before"`
	TotalAfter  float64 `json:"total_after"`
}

// FilterStep records one catalog narrowing decision.
type FilterStep struct {
	Partition string `json:"partition"`
	Predicate string `json:"predicate"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	Applied   bool   `json:"applied"`
}

// RecommendRequest asks for a fresh build.
type RecommendRequest struct {
	Text    string   `json:"text"`
	Answers []Answer `json:"answers,omitempty"`
}

// TweakRequest adjusts a previously returned build.
type TweakRequest struct {
	OriginalRequest string   `json:"original_request"`
	Previous        Build    `json:"previous"`
	Change          string   `json:"change"`
	Answers         []Answer `json:"answers,omitempty"`
}

// BuildResponse is a validated build with diagnostics.
type BuildResponse struct {
	Build      Build            `json:"build"`
	Criteria   Criteria         `json:"criteria"`
	Validation ValidationReport `json:"validation"`
	Filter     []FilterStep     `json:"filter_steps"`
	LatencyMs  int64            `json:"latency_ms"`
}

// Message is one chat message. Assistant messages may carry the build they
// proposed.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Build   *Build `json:"build,omitempty"`
}

// ChatRequest continues a conversation.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Answers  []Answer  `json:"answers,omitempty"`
}

// ChatResponse holds either a text reply or a validated build.
type ChatResponse struct {
	Reply      string            `json:"reply,omitempty"`
	Build      *Build            `json:"build,omitempty"`
	Criteria   Criteria          `json:"criteria"`
	Validation *ValidationReport `json:"validation,omitempty"`
	LatencyMs  int64             `json:"latency_ms"`
}

// CriteriaResponse is the result of criteria extraction.
type CriteriaResponse struct {
	Criteria Criteria `json:"criteria"`
	Summary  string   `json:"summary"`
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ResearchAnswer is a synthesized answer. Complete is false when research
// could not be finished and Summary holds a neutral message.
type ResearchAnswer struct {
	Query        string         `json:"query"`
	Summary      string         `json:"summary"`
	Sources      []SearchResult `json:"sources"`
	Complete     bool           `json:"complete"`
	ResearchedAt time.Time      `json:"researched_at"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
