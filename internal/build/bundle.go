// Package build defines the recommended build bundle exchanged with the
// recommendation service and returned to callers.
package build

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// SchemaVersion identifies the bundle shape the recommendation service is
// asked to produce.
const SchemaVersion = "build.v1"

// Difficulty is the closed set of build difficulty tiers.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Difficulties lists the allowed tiers in ascending order.
var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

// ParseDifficulty folds case and surrounding space.
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Difficulties {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// Component is one bundle slot. ProductID, DetailPath, ImageURL and
// ProductURL are only set once the slot is matched to a catalog entry.
type Component struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason"`
	ProductID  string  `json:"product_id,omitempty"`
	DetailPath string  `json:"detail_path,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	ProductURL string  `json:"product_url,omitempty"`
}

// SwitchComponent is the switch slot. Price is the slot total; PricePerSwitch
// times Quantity is authoritative.
type SwitchComponent struct {
	Component
	Quantity       int     `json:"quantity"`
	PricePerSwitch float64 `json:"price_per_switch"`
}

// Modification is an optional mod suggestion.
type Modification struct {
	Name       string     `json:"name"`
	Cost       float64    `json:"cost"`
	Effect     string     `json:"effect"`
	Difficulty Difficulty `json:"difficulty"`
}

// Bundle is a complete build recommendation.
type Bundle struct {
	Name           string          `json:"name"`
	Summary        string          `json:"summary"`
	Keyboard       Component       `json:"keyboard"`
	Switches       SwitchComponent `json:"switches"`
	Keycaps        Component       `json:"keycaps"`
	Stabilizers    Component       `json:"stabilizers"`
	Mods           []Modification  `json:"mods"`
	EstimatedTotal float64         `json:"estimated_total"`
	SoundProfile   string          `json:"sound_profile"`
	Difficulty     Difficulty      `json:"difficulty"`
	Notes          string          `json:"notes"`
	Error          bool            `json:"error,omitempty"`
	SchemaVersion  string          `json:"schema_version,omitempty"`
}

// ErrInvalidBundle is returned by Validate for a bundle missing required parts.
var ErrInvalidBundle = errors.New("invalid build bundle")

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeTotal returns keyboard + switches (quantity times unit price) +
// keycaps + stabilizers + every mod cost, rounded to cents.
func (b *Bundle) ComputeTotal() float64 {
	total := b.Keyboard.Price +
		float64(b.Switches.Quantity)*b.Switches.PricePerSwitch +
		b.Keycaps.Price +
		b.Stabilizers.Price
	for _, m := range b.Mods {
		total += m.Cost
	}
	return Round2(total)
}

// Recompute sets the switch slot price from its unit price and quantity and
// refreshes EstimatedTotal.
func (b *Bundle) Recompute() {
	b.Switches.Price = Round2(float64(b.Switches.Quantity) * b.Switches.PricePerSwitch)
	b.EstimatedTotal = b.ComputeTotal()
}

// Validate checks the bundle has every required field and that enumerated
// fields hold allowed values. Difficulty strings are normalized in place.
func (b *Bundle) Validate() error {
	var problems []string

	if strings.TrimSpace(b.Name) == "" {
		problems = append(problems, "name is required")
	}
	for slot, c := range map[string]Component{
		"keyboard":    b.Keyboard,
		"switches":    b.Switches.Component,
		"keycaps":     b.Keycaps,
		"stabilizers": b.Stabilizers,
	} {
		if strings.TrimSpace(c.Name) == "" {
			problems = append(problems, slot+".name is required")
		}
		if c.Price < 0 || math.IsNaN(c.Price) {
			problems = append(problems, slot+".price must not be negative")
		}
	}
	if b.Switches.Quantity <= 0 {
		problems = append(problems, "switches.quantity must be positive")
	}
	if b.Switches.PricePerSwitch < 0 || math.IsNaN(b.Switches.PricePerSwitch) {
		problems = append(problems, "switches.price_per_switch must not be negative")
	}

	if d, ok := ParseDifficulty(string(b.Difficulty)); ok {
		b.Difficulty = d
	} else {
		problems = append(problems, fmt.Sprintf("difficulty %q is not one of beginner, intermediate, advanced", b.Difficulty))
	}
	for i := range b.Mods {
		if d, ok := ParseDifficulty(string(b.Mods[i].Difficulty)); ok {
			b.Mods[i].Difficulty = d
		} else {
			problems = append(problems, fmt.Sprintf("mods[%d].difficulty %q is invalid", i, b.Mods[i].Difficulty))
		}
		if b.Mods[i].Cost < 0 {
			problems = append(problems, fmt.Sprintf("mods[%d].cost must not be negative", i))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidBundle, strings.Join(problems, "; "))
	}
	return nil
}

// ErrorBundle returns the sentinel bundle handed to callers when no valid
// recommendation could be produced. Prices are zero and Error is set.
func ErrorBundle(reason string) Bundle {
	notes := "We couldn't generate a build right now. Please try again in a moment."
	if reason != "" {
		notes += " (" + reason + ")"
	}
	unavailable := Component{Name: "Unavailable", Reason: "No recommendation could be generated."}
	return Bundle{
		Name:           "Build unavailable",
		Summary:        "A recommendation could not be generated for this request.",
		Keyboard:       unavailable,
		Switches:       SwitchComponent{Component: unavailable},
		Keycaps:        unavailable,
		Stabilizers:    unavailable,
		Mods:           []Modification{},
		EstimatedTotal: 0,
		SoundProfile:   "",
		Difficulty:     DifficultyBeginner,
		Notes:          notes,
		Error:          true,
		SchemaVersion:  SchemaVersion,
	}
}
