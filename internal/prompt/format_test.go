package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/filter"
)

func sampleResult() filter.Result {
	return filter.Result{
		Switches: []catalog.Switch{{
			ID: "sw-internal-7", Name: "Oil King", Brand: "Gateron", Price: 0.65,
			Type: catalog.SwitchLinear, Sound: "deep thocky", ActuationForce: 55, InStock: true, Rating: 4.8,
		}},
		Boards: []catalog.Board{{
			ID: "b-1", Name: "Q1 Pro", Brand: "Keychron", Price: 199, Size: "75%",
			Wireless: true, HotSwap: true, Mount: "gasket", CaseMaterial: "aluminum", InStock: false,
		}},
		Accessories: []catalog.Accessory{{ID: "a-1", Name: "Tape mod", Price: 5, Category: "mod", Effect: "poppier sound", Difficulty: "beginner"}},
	}
}

func TestFormatCatalog(t *testing.T) {
	out := FormatCatalog(sampleResult())

	assert.Contains(t, out, "--- Switches (1) ---\n- Gateron Oil King | $0.65/switch | linear | sound: deep thocky | 55g | in stock\n")
	assert.Contains(t, out, "- Keychron Q1 Pro | $199.00 | 75% | wireless | hot-swap | gasket mount | aluminum case | out of stock\n")
	assert.Contains(t, out, "--- Keycap Sets (0) ---\n"+emptyPartition)
	assert.Contains(t, out, "- Tape mod | $5.00 | mod | effect: poppier sound | difficulty: beginner\n")

	// Bookkeeping fields never leak.
	assert.NotContains(t, out, "sw-internal-7")
	assert.NotContains(t, out, "4.8")
}

func TestFormatCatalog_IsPure(t *testing.T) {
	res := sampleResult()
	assert.Equal(t, FormatCatalog(res), FormatCatalog(res))
	assert.Equal(t, sampleResult(), res)
}

func TestFormatSponsorships(t *testing.T) {
	assert.Empty(t, FormatSponsorships(nil))

	out := FormatSponsorships([]catalog.Sponsorship{{ProductName: "Keychron Q1 Pro", VendorName: "Keychron"}})
	assert.Contains(t, out, "- Keychron Q1 Pro (sponsored by Keychron)")
	assert.Contains(t, out, "Never prefer a sponsored product over a better-fitting unsponsored one")
}

func TestSystemPrompt(t *testing.T) {
	budget := 300
	c := criteria.Criteria{Sound: "thocky", Budget: &budget}
	res := sampleResult()
	res.Sponsorships = []catalog.Sponsorship{{ProductName: "Keychron Q1 Pro"}}

	rec := SystemPrompt(ModeRecommend, c, res)
	assert.Contains(t, rec, "User preferences: sound: thocky; budget: $300")
	assert.Contains(t, rec, "at or below $300")
	assert.Contains(t, rec, "--- Sponsored Products ---")
	assert.True(t, strings.HasSuffix(rec, "Submit the build with the submit_build tool.\n"))

	chat := SystemPrompt(ModeChat, criteria.Criteria{}, filter.Result{})
	assert.Contains(t, chat, "no specific preferences")
	assert.Contains(t, chat, "answer conversationally")
	assert.NotContains(t, chat, "Sponsored")

	assert.Contains(t, SystemPrompt(ModeTweak, c, res), "adjust the build")
}
