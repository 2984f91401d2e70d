// Package prompt renders filtered catalog data and criteria into the text
// sent to the recommendation service. Everything here is a pure projection.
package prompt

import (
	"fmt"
	"strings"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/filter"
)

// Mode selects the instructions appended to the system prompt.
type Mode string

const (
	ModeRecommend Mode = "recommend"
	ModeChat      Mode = "chat"
	ModeTweak     Mode = "tweak"
)

const emptyPartition = "(none available, suggest well-known options)\n"

// FormatCatalog renders each partition one entry per line. Identifiers and
// ratings are internal and left out.
func FormatCatalog(res filter.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "--- Switches (%d) ---\n", len(res.Switches))
	if len(res.Switches) == 0 {
		b.WriteString(emptyPartition)
	}
	for _, s := range res.Switches {
		b.WriteString(formatSwitch(s))
	}

	fmt.Fprintf(&b, "\n--- Keyboards (%d) ---\n", len(res.Boards))
	if len(res.Boards) == 0 {
		b.WriteString(emptyPartition)
	}
	for _, k := range res.Boards {
		b.WriteString(formatBoard(k))
	}

	fmt.Fprintf(&b, "\n--- Keycap Sets (%d) ---\n", len(res.KeycapSets))
	if len(res.KeycapSets) == 0 {
		b.WriteString(emptyPartition)
	}
	for _, k := range res.KeycapSets {
		b.WriteString(formatKeycapSet(k))
	}

	if len(res.Accessories) > 0 {
		fmt.Fprintf(&b, "\n--- Mods & Accessories (%d) ---\n", len(res.Accessories))
		for _, a := range res.Accessories {
			b.WriteString(formatAccessory(a))
		}
	}

	return b.String()
}

func formatSwitch(s catalog.Switch) string {
	fields := []string{s.FullName(), fmt.Sprintf("$%.2f/switch", s.Price)}
	if s.Type != "" {
		fields = append(fields, string(s.Type))
	}
	if s.Sound != "" {
		fields = append(fields, "sound: "+s.Sound)
	}
	if s.Feel != "" {
		fields = append(fields, "feel: "+s.Feel)
	}
	if s.ActuationForce > 0 {
		fields = append(fields, fmt.Sprintf("%gg", s.ActuationForce))
	}
	fields = append(fields, stock(s.InStock))
	return "- " + strings.Join(fields, " | ") + "\n"
}

func formatBoard(k catalog.Board) string {
	fields := []string{k.FullName(), fmt.Sprintf("$%.2f", k.Price)}
	if k.Size != "" {
		fields = append(fields, k.Size)
	}
	if k.Wireless {
		fields = append(fields, "wireless")
	}
	if k.HotSwap {
		fields = append(fields, "hot-swap")
	} else {
		fields = append(fields, "solder")
	}
	if k.Mount != "" {
		fields = append(fields, k.Mount+" mount")
	}
	if k.CaseMaterial != "" {
		fields = append(fields, k.CaseMaterial+" case")
	}
	if k.Sound != "" {
		fields = append(fields, "sound: "+k.Sound)
	}
	fields = append(fields, stock(k.InStock))
	return "- " + strings.Join(fields, " | ") + "\n"
}

func formatKeycapSet(k catalog.KeycapSet) string {
	fields := []string{k.FullName(), fmt.Sprintf("$%.2f", k.Price)}
	if k.Material != "" {
		fields = append(fields, k.Material)
	}
	if k.Profile != "" {
		fields = append(fields, k.Profile+" profile")
	}
	if k.Sound != "" {
		fields = append(fields, "sound: "+k.Sound)
	}
	fields = append(fields, stock(k.InStock))
	return "- " + strings.Join(fields, " | ") + "\n"
}

func formatAccessory(a catalog.Accessory) string {
	fields := []string{a.FullName(), fmt.Sprintf("$%.2f", a.Price)}
	if a.Category != "" {
		fields = append(fields, a.Category)
	}
	if a.Effect != "" {
		fields = append(fields, "effect: "+a.Effect)
	}
	if a.Difficulty != "" {
		fields = append(fields, "difficulty: "+a.Difficulty)
	}
	return "- " + strings.Join(fields, " | ") + "\n"
}

func stock(in bool) string {
	if in {
		return "in stock"
	}
	return "out of stock"
}

// FormatSponsorships renders the sponsored-product addendum, or "" when there
// are no active sponsorships.
func FormatSponsorships(sponsored []catalog.Sponsorship) string {
	if len(sponsored) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("--- Sponsored Products ---\n")
	for _, s := range sponsored {
		if s.VendorName != "" {
			fmt.Fprintf(&b, "- %s (sponsored by %s)\n", s.ProductName, s.VendorName)
		} else {
			fmt.Fprintf(&b, "- %s (sponsored)\n", s.ProductName)
		}
	}
	b.WriteString("You may mention a sponsored product when it fits the request. " +
		"Never prefer a sponsored product over a better-fitting unsponsored one, " +
		"and do not mention sponsorship status to the user.\n")
	return b.String()
}

// SystemPrompt assembles the full instruction block for one request.
func SystemPrompt(mode Mode, c criteria.Criteria, res filter.Result) string {
	var b strings.Builder

	b.WriteString("You are an expert mechanical keyboard builder helping a user plan a custom build.\n")
	b.WriteString("Recommend products from the catalog below, using their names exactly as listed. ")
	b.WriteString("If a partition is empty, recommend well-known, widely available products instead.\n\n")

	b.WriteString("User preferences: " + c.Describe() + "\n\n")

	b.WriteString(FormatCatalog(res))
	if sp := FormatSponsorships(res.Sponsorships); sp != "" {
		b.WriteString("\n" + sp)
	}

	b.WriteString("\n--- Build Rules ---\n")
	b.WriteString("- Every build has exactly four components: keyboard, switches, keycaps, stabilizers.\n")
	b.WriteString("- Switch quantity must cover the layout (typically 70 to 110) and the switch price is quantity times price per switch.\n")
	b.WriteString("- The estimated total is the sum of all component prices plus modification costs.\n")
	b.WriteString("- Difficulty is one of beginner, intermediate or advanced.\n")
	if c.Budget != nil {
		fmt.Fprintf(&b, "- Keep the estimated total at or below $%d.\n", *c.Budget)
	}

	switch mode {
	case ModeChat:
		b.WriteString("\nIf the user is asking for a build and you have enough information, submit it with the submit_build tool. ")
		b.WriteString("Otherwise answer conversationally and ask at most one clarifying question.\n")
	case ModeTweak:
		b.WriteString("\nThe user wants to adjust the build you already proposed. Keep everything they did not ask to change ")
		b.WriteString("and submit the complete updated build with the submit_build tool.\n")
	default:
		b.WriteString("\nSubmit the build with the submit_build tool.\n")
	}

	return b.String()
}
