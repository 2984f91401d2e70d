package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/validate"
)

func TestTable_PlainBorders(t *testing.T) {
	var out bytes.Buffer
	u := newUI(&out, &bytes.Buffer{}, false, true, false)

	u.Table([]string{"Part", "Price"}, [][]string{{"Keyboard", "$1.00"}})

	want := "+----------+-------+\n" +
		"| Part     | Price |\n" +
		"+----------+-------+\n" +
		"| Keyboard | $1.00 |\n" +
		"+----------+-------+\n"
	assert.Equal(t, want, out.String())
}

func TestTable_ShortRowsArePadded(t *testing.T) {
	var out bytes.Buffer
	u := newUI(&out, &bytes.Buffer{}, false, true, false)

	u.Table([]string{"A", "B"}, [][]string{{"x"}})
	assert.Contains(t, out.String(), "| x |   |\n")
}

func TestJSONModeIsSilent(t *testing.T) {
	var out, errOut bytes.Buffer
	u := newUI(&out, &errOut, true, true, false)

	u.Success("ok")
	u.Error("bad")
	u.Warning("careful")
	u.Section("title")
	u.KeyValue("k", "v")
	u.Table([]string{"A"}, [][]string{{"1"}})
	assert.Nil(t, u.ProgressBar("x", 3))
	assert.Nil(t, u.TaskBar("x"))
	u.Spinner("waiting")()
	u.Close()

	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
}

func TestMessages_PlainOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	u := newUI(&out, &errOut, false, true, false)

	u.Success("imported %d", 3)
	u.Error("failed")
	u.KeyValue("Total", "$10.00")

	assert.Equal(t, "✓ imported 3\n  Total: $10.00\n", out.String())
	assert.Equal(t, "✗ failed\n", errOut.String())
}

func TestRenderBuild(t *testing.T) {
	var out bytes.Buffer
	u := newUI(&out, &bytes.Buffer{}, false, true, false)

	b := build.Bundle{
		Name:     "Desk Thocker",
		Keyboard: build.Component{Name: "Keychron Q1", Price: 169, ProductID: "q1", DetailPath: "/products/boards/q1"},
		Switches: build.SwitchComponent{
			Component:      build.Component{Name: "Gateron Oil King", Price: 45.5},
			Quantity:       70,
			PricePerSwitch: 0.65,
		},
		Mods:           []build.Modification{{Name: "Tape mod", Cost: 2, Difficulty: build.DifficultyBeginner}},
		EstimatedTotal: 216.5,
	}
	renderBuild(u, b)

	s := out.String()
	assert.Contains(t, s, "DESK THOCKER")
	assert.Contains(t, s, "/products/boards/q1")
	assert.Contains(t, s, "Gateron Oil King (70 x $0.65)")
	assert.Contains(t, s, "Tape mod")
	assert.Contains(t, s, "Estimated total: $216.50")
}

func TestRenderReport(t *testing.T) {
	var out bytes.Buffer
	u := newUI(&out, &bytes.Buffer{}, false, true, false)

	delta := 19.0
	renderReport(u, validate.Report{
		Matches: []validate.Match{
			{Slot: validate.SlotKeyboard, Outcome: validate.Corrected, Original: "Q1", MatchedName: "Keychron Q1", Confidence: 0.9, PriceDelta: &delta},
			{Slot: validate.SlotKeycaps, Outcome: validate.Unmatched, Original: "Mystery caps"},
		},
		TotalBefore: 200,
		TotalAfter:  219,
	})

	s := out.String()
	assert.Contains(t, s, "+19.00")
	assert.Contains(t, s, "1 slot(s) corrected, total $200.00 -> $219.00")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", FormatDuration(2*time.Minute))
	assert.Equal(t, "$45.50", FormatMoney(45.5))
}
