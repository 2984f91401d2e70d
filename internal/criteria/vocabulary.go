package criteria

import (
	"regexp"

	"github.com/buildkeeb/engine/internal/catalog"
)

// Field identifies a Criteria field targeted by a structured answer.
type Field string

const (
	FieldSound      Field = "sound"
	FieldSize       Field = "size"
	FieldBudget     Field = "budget"
	FieldSwitchType Field = "switch_type"
	FieldWireless   Field = "wireless"
	FieldHotSwap    Field = "hot_swap"
	FieldMaterial   Field = "material"
)

// Keyword maps a pattern to the normalized value it implies.
type Keyword struct {
	Value   string
	Pattern *regexp.Regexp
}

// Vocabulary holds every lookup table the extractor consults. Slices are in
// priority order: the first entry that matches wins.
type Vocabulary struct {
	Version string

	Sounds      []Keyword
	Sizes       []Keyword
	SwitchTypes []Keyword
	Materials   []Keyword

	// Budgets capture the amount in group 1.
	Budgets []*regexp.Regexp

	WirelessOn   *regexp.Regexp
	WirelessOff  *regexp.Regexp
	HotSwapOn    *regexp.Regexp
	HotSwapOff   *regexp.Regexp
	Unbounded    *regexp.Regexp
	AnswerFields map[string]Field
	AnswerValues map[Field]map[string]string
}

func kw(value, pattern string) Keyword {
	return Keyword{Value: value, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// DefaultVocabulary returns the v1 keyboard-build vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Version: "v1",
		Sounds: []Keyword{
			kw("thocky", `\b(thock\w*|deep(er|est)?)\b`),
			kw("creamy", `\bcream(y|ier|iest)?\b`),
			kw("clacky", `\b(clack\w*|crisp\w*)\b`),
			kw("poppy", `\bpop(py|pier|piest|s)?\b`),
			kw("marbly", `\bmarbl(y|ey|e)\b`),
			kw("quiet", `\b(quiet\w*|silent|silence)\b`),
		},
		Sizes: []Keyword{
			kw("96%", `\b96\s*(%|percent)`),
			kw("Full-size", `\b(full[\s-]?size[d]?|100\s*(%|percent)|numpad)`),
			kw("TKL", `\b(tkl|tenkeyless|ten[\s-]keyless|80\s*(%|percent)|87\s*keys?)`),
			kw("75%", `\b75\s*(%|percent)`),
			kw("65%", `\b65\s*(%|percent)`),
			kw("60%", `\b60\s*(%|percent)`),
			kw("40%", `\b40\s*(%|percent)`),
		},
		SwitchTypes: []Keyword{
			kw(string(catalog.SwitchLinear), `\blinears?\b`),
			kw(string(catalog.SwitchTactile), `\btactiles?\b`),
			kw(string(catalog.SwitchClicky), `\bclick(y|ies|s)?\b`),
		},
		Materials: []Keyword{
			kw("PBT", `\bpbt\b`),
			kw("ABS", `\babs\b`),
			kw("POM", `\bpom\b`),
		},
		Budgets: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bunder\s+\$?\s*(\d[\d,]*)`),
			regexp.MustCompile(`(?i)\bbudget\s+(?:of|is|around|about|at)?\s*\$?\s*(\d[\d,]*)`),
			regexp.MustCompile(`(?i)\$\s*(\d[\d,]*)\s*(?:max(?:imum)?|tops|or\s+less)\b`),
			regexp.MustCompile(`(?i)\b(\d[\d,]*)\s*(?:dollars|bucks|usd)\b`),
			regexp.MustCompile(`(?i)\b(?:less\s+than|below|max(?:imum)?\s+(?:of\s+)?|up\s+to)\s*\$?\s*(\d[\d,]*)`),
		},
		WirelessOn:  regexp.MustCompile(`(?i)\b(wireless|bluetooth|2\.4\s*ghz|cordless)\b`),
		WirelessOff: regexp.MustCompile(`(?i)\b(wired\s+only|no\s+wireless|not\s+wireless|don'?t\s+need\s+wireless)\b`),
		HotSwapOn:   regexp.MustCompile(`(?i)\bhot[\s-]?swap(pable|able)?\b`),
		HotSwapOff:  regexp.MustCompile(`(?i)\b(solder(ed|ing)?|no\s+hot[\s-]?swap|not\s+hot[\s-]?swap\w*)\b`),
		Unbounded:   regexp.MustCompile(`(?i)(\+|\bover\b|\bno\s+limit\b|\bunlimited\b|\bdoesn'?t\s+matter\b)`),
		AnswerFields: map[string]Field{
			"sound":           FieldSound,
			"sound_profile":   FieldSound,
			"size":            FieldSize,
			"layout":          FieldSize,
			"budget":          FieldBudget,
			"switch_type":     FieldSwitchType,
			"switch_feel":     FieldSwitchType,
			"feel":            FieldSwitchType,
			"wireless":        FieldWireless,
			"connectivity":    FieldWireless,
			"hot_swap":        FieldHotSwap,
			"hotswap":         FieldHotSwap,
			"keycap_material": FieldMaterial,
			"material":        FieldMaterial,
		},
		AnswerValues: map[Field]map[string]string{
			FieldSound: {
				"thocky": "thocky", "thock": "thocky", "deep": "thocky",
				"creamy": "creamy", "smooth": "creamy",
				"clacky": "clacky", "crisp": "clacky",
				"poppy": "poppy", "marbly": "marbly",
				"quiet": "quiet", "silent": "quiet",
			},
			FieldSize: {
				"full": "Full-size", "full-size": "Full-size", "fullsize": "Full-size", "100": "Full-size",
				"96": "96%",
				"tkl": "TKL", "tenkeyless": "TKL", "80": "TKL", "87": "TKL",
				"75": "75%", "65": "65%", "60": "60%", "40": "40%",
			},
			FieldSwitchType: {
				"linear": "linear", "smooth": "linear",
				"tactile": "tactile", "bumpy": "tactile",
				"clicky": "clicky", "click": "clicky",
			},
			FieldMaterial: {
				"pbt": "PBT", "abs": "ABS", "pom": "POM",
			},
			FieldWireless: {
				"yes": "true", "true": "true", "wireless": "true", "bluetooth": "true",
				"no": "false", "false": "false", "wired": "false",
			},
			FieldHotSwap: {
				"yes": "true", "true": "true", "hot-swap": "true", "hotswap": "true",
				"no": "false", "false": "false", "solder": "false", "soldered": "false",
			},
		},
	}
}
