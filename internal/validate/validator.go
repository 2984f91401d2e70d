package validate

import (
	"math"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/observability"
)

// Slot names the bundle slot a match refers to.
type Slot string

const (
	SlotKeyboard Slot = "keyboard"
	SlotSwitches Slot = "switches"
	SlotKeycaps  Slot = "keycaps"
)

// Outcome is the tagged result of matching one slot.
type Outcome string

const (
	// Unmatched: no candidate reached the acceptance threshold.
	Unmatched Outcome = "unmatched"
	// Suggested: a plausible candidate was found but not strong enough to
	// override the recommendation.
	Suggested Outcome = "suggested"
	// Corrected: the slot was rewritten from the catalog entry.
	Corrected Outcome = "corrected"
)

// Match describes what happened to one slot.
type Match struct {
	Slot        Slot    `json:"slot"`
	Outcome     Outcome `json:"outcome"`
	Original    string  `json:"original"`
	MatchedName string  `json:"matched_name,omitempty"`
	MatchedID   string  `json:"matched_id,omitempty"`
	Confidence  float64 `json:"confidence"`
	// PriceDelta is canonical minus claimed price, set only when the price
	// was overwritten. For switches it is per unit.
	PriceDelta *float64 `json:"price_delta,omitempty"`
}

// Report summarizes a validation pass.
type Report struct {
	Matches     []Match `json:"matches"`
	TotalBefore float64 `json:"total_before"`
	TotalAfter  float64 `json:"total_after"`
}

// Corrections counts slots that were rewritten.
func (r Report) Corrections() int {
	n := 0
	for _, m := range r.Matches {
		if m.Outcome == Corrected {
			n++
		}
	}
	return n
}

// Validator checks recommended builds against the catalog.
type Validator struct {
	cfg    config.ValidationConfig
	logger *observability.Logger
}

// New creates a validator with the given thresholds and tolerances.
func New(cfg config.ValidationConfig, logger *observability.Logger) *Validator {
	return &Validator{cfg: cfg, logger: observability.OrNop(logger)}
}

// Validate matches the keyboard, switch and keycap slots against snap and
// returns the corrected bundle. The stabilizer slot is never matched. The
// total is always recomputed, whether or not anything changed. The input
// bundle is not modified.
func (v *Validator) Validate(b build.Bundle, snap catalog.Snapshot) (build.Bundle, Report) {
	out := b
	out.Mods = append([]build.Modification(nil), b.Mods...)
	report := Report{TotalBefore: b.EstimatedTotal}

	if b.Error {
		out.Recompute()
		report.TotalAfter = out.EstimatedTotal
		return out, report
	}

	if out.Switches.PricePerSwitch == 0 && out.Switches.Quantity > 0 && out.Switches.Price > 0 {
		out.Switches.PricePerSwitch = build.Round2(out.Switches.Price / float64(out.Switches.Quantity))
	}

	report.Matches = append(report.Matches,
		v.matchComponent(SlotKeyboard, &out.Keyboard, catalog.BoardCandidates(snap.Boards)),
		v.matchSwitches(&out.Switches, catalog.SwitchCandidates(snap.Switches)),
		v.matchComponent(SlotKeycaps, &out.Keycaps, catalog.KeycapCandidates(snap.KeycapSets)),
	)

	out.Recompute()
	report.TotalAfter = out.EstimatedTotal

	for _, m := range report.Matches {
		v.logger.Debug().
			Str("slot", string(m.Slot)).
			Str("outcome", string(m.Outcome)).
			Float64("confidence", m.Confidence).
			Msg("Slot validated")
	}
	v.logger.Debug().
		Int("corrections", report.Corrections()).
		Float64("total_before", report.TotalBefore).
		Float64("total_after", report.TotalAfter).
		Msg("Build validated")

	return out, report
}

// classify finds the best candidate and decides the outcome.
func (v *Validator) classify(slot Slot, name string, candidates []catalog.Candidate) (Match, catalog.Candidate) {
	m := Match{Slot: slot, Outcome: Unmatched, Original: name}

	best, score, ok := BestMatch(name, candidates)
	if !ok || score < v.cfg.AcceptThreshold {
		if ok {
			m.Confidence = score
		}
		return m, catalog.Candidate{}
	}

	m.Confidence = score
	m.MatchedName = best.Name
	if score < v.cfg.CorrectionThreshold {
		m.Outcome = Suggested
		return m, catalog.Candidate{}
	}

	m.Outcome = Corrected
	m.MatchedID = best.ID
	return m, best
}

func (v *Validator) matchComponent(slot Slot, c *build.Component, candidates []catalog.Candidate) Match {
	m, best := v.classify(slot, c.Name, candidates)
	if m.Outcome != Corrected {
		return m
	}

	applyCanonical(c, best)
	if math.Abs(best.Price-c.Price) > v.cfg.WholeUnitTolerance {
		delta := build.Round2(best.Price - c.Price)
		m.PriceDelta = &delta
		c.Price = best.Price
	}
	return m
}

func (v *Validator) matchSwitches(s *build.SwitchComponent, candidates []catalog.Candidate) Match {
	m, best := v.classify(SlotSwitches, s.Name, candidates)
	if m.Outcome != Corrected {
		return m
	}

	applyCanonical(&s.Component, best)
	if math.Abs(best.Price-s.PricePerSwitch) > v.cfg.PerUnitTolerance {
		delta := build.Round2(best.Price - s.PricePerSwitch)
		m.PriceDelta = &delta
		s.PricePerSwitch = best.Price
	}
	return m
}

func applyCanonical(c *build.Component, best catalog.Candidate) {
	c.Name = best.Name
	c.ProductID = best.ID
	c.DetailPath = best.DetailPath()
	if best.ImageURL != "" {
		c.ImageURL = best.ImageURL
	}
	if best.ProductURL != "" {
		c.ProductURL = best.ProductURL
	}
}
