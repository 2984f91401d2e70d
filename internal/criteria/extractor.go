// Package criteria turns free text and questionnaire answers into a
// normalized, all-optional Criteria record.
package criteria

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/buildkeeb/engine/internal/catalog"
)

// Criteria is the structured intent behind a request. Zero values and nil
// pointers mean unconstrained.
type Criteria struct {
	Sound      string             `json:"sound,omitempty"`
	Size       string             `json:"size,omitempty"`
	Budget     *int               `json:"budget,omitempty"`
	SwitchType catalog.SwitchType `json:"switch_type,omitempty"`
	Wireless   *bool              `json:"wireless,omitempty"`
	HotSwap    *bool              `json:"hot_swap,omitempty"`
	Material   string             `json:"material,omitempty"`
}

// IsEmpty reports whether no field is constrained.
func (c Criteria) IsEmpty() bool {
	return c == Criteria{}
}

// Describe renders the criteria as a short human-readable summary.
func (c Criteria) Describe() string {
	var parts []string
	if c.Sound != "" {
		parts = append(parts, "sound: "+c.Sound)
	}
	if c.Size != "" {
		parts = append(parts, "size: "+c.Size)
	}
	if c.Budget != nil {
		parts = append(parts, fmt.Sprintf("budget: $%d", *c.Budget))
	}
	if c.SwitchType != "" {
		parts = append(parts, "switch type: "+string(c.SwitchType))
	}
	if c.Wireless != nil {
		parts = append(parts, "wireless: "+yesNo(*c.Wireless))
	}
	if c.HotSwap != nil {
		parts = append(parts, "hot-swap: "+yesNo(*c.HotSwap))
	}
	if c.Material != "" {
		parts = append(parts, "keycap material: "+c.Material)
	}
	if len(parts) == 0 {
		return "no specific preferences"
	}
	return strings.Join(parts, "; ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Answer is one questionnaire response. Value is whatever the client sent:
// string, number or boolean.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      any    `json:"value"`
}

// Extractor applies a Vocabulary to user input.
type Extractor struct {
	vocab Vocabulary
}

// NewExtractor creates an extractor over vocab.
func NewExtractor(vocab Vocabulary) *Extractor {
	return &Extractor{vocab: vocab}
}

// Vocabulary returns the vocabulary in use.
func (e *Extractor) Vocabulary() Vocabulary {
	return e.vocab
}

// Extract derives criteria from both sources; answers win on conflict.
func (e *Extractor) Extract(text string, answers []Answer) Criteria {
	return Merge(e.FromText(text), e.FromAnswers(answers))
}

// FromText scans free text. Anything not recognized is left unset.
func (e *Extractor) FromText(text string) Criteria {
	var c Criteria
	if strings.TrimSpace(text) == "" {
		return c
	}

	c.Sound = firstKeyword(e.vocab.Sounds, text)
	c.Size = firstKeyword(e.vocab.Sizes, text)
	c.SwitchType = catalog.SwitchType(firstKeyword(e.vocab.SwitchTypes, text))
	c.Material = firstKeyword(e.vocab.Materials, text)
	c.Budget = e.budgetFromText(text)

	switch {
	case matches(e.vocab.WirelessOff, text):
		c.Wireless = boolPtr(false)
	case matches(e.vocab.WirelessOn, text):
		c.Wireless = boolPtr(true)
	}
	switch {
	case matches(e.vocab.HotSwapOff, text):
		c.HotSwap = boolPtr(false)
	case matches(e.vocab.HotSwapOn, text):
		c.HotSwap = boolPtr(true)
	}

	return c
}

// budgetFromText applies the budget patterns in order. A number immediately
// followed by "%" is a layout size, not money, and is skipped.
func (e *Extractor) budgetFromText(text string) *int {
	for _, re := range e.vocab.Budgets {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			if end := loc[3]; end < len(text) && text[end] == '%' {
				continue
			}
			if n, ok := parseAmount(text[loc[2]:loc[3]]); ok {
				return &n
			}
		}
	}
	return nil
}

// FromAnswers maps questionnaire answers onto criteria fields. Unknown
// question IDs and unrecognized values are ignored.
func (e *Extractor) FromAnswers(answers []Answer) Criteria {
	var c Criteria
	for _, a := range answers {
		field, ok := e.vocab.AnswerFields[strings.ToLower(strings.TrimSpace(a.QuestionID))]
		if !ok {
			continue
		}

		if field == FieldBudget {
			if n, ok := e.budgetFromAnswer(a.Value); ok {
				c.Budget = &n
			}
			continue
		}

		raw, ok := answerString(a.Value)
		if !ok {
			continue
		}
		value, ok := e.normalize(field, raw)
		if !ok {
			continue
		}

		switch field {
		case FieldSound:
			c.Sound = value
		case FieldSize:
			c.Size = value
		case FieldSwitchType:
			c.SwitchType = catalog.SwitchType(value)
		case FieldMaterial:
			c.Material = value
		case FieldWireless:
			c.Wireless = boolPtr(value == "true")
		case FieldHotSwap:
			c.HotSwap = boolPtr(value == "true")
		}
	}
	return c
}

func (e *Extractor) normalize(field Field, raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimSuffix(key, "%")
	key = strings.TrimSpace(key)
	table, ok := e.vocab.AnswerValues[field]
	if !ok {
		return "", false
	}
	v, ok := table[key]
	return v, ok
}

// budgetFromAnswer accepts numbers, numeric strings ("$1,200") and ranges
// ("100-200", taking the upper bound). Open-ended answers such as "300+"
// leave the budget unset.
func (e *Extractor) budgetFromAnswer(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return positiveInt(x)
	case float32:
		return positiveInt(float64(x))
	case int:
		return positiveInt(float64(x))
	case int64:
		return positiveInt(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return positiveInt(f)
	case string:
		if e.vocab.Unbounded != nil && e.vocab.Unbounded.MatchString(x) {
			return 0, false
		}
		best, found := 0, false
		for _, m := range amountPattern.FindAllString(x, -1) {
			if n, ok := parseAmount(m); ok && n > best {
				best, found = n, true
			}
		}
		return best, found
	}
	return 0, false
}

var amountPattern = regexp.MustCompile(`\d[\d,]*`)

func answerString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case json.Number:
		return x.String(), true
	}
	return "", false
}

func positiveInt(f float64) (int, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

func parseAmount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Merge overlays override onto base field by field; set fields in override win.
func Merge(base, override Criteria) Criteria {
	out := base
	if override.Sound != "" {
		out.Sound = override.Sound
	}
	if override.Size != "" {
		out.Size = override.Size
	}
	if override.Budget != nil {
		out.Budget = intPtr(*override.Budget)
	}
	if override.SwitchType != "" {
		out.SwitchType = override.SwitchType
	}
	if override.Wireless != nil {
		out.Wireless = boolPtr(*override.Wireless)
	}
	if override.HotSwap != nil {
		out.HotSwap = boolPtr(*override.HotSwap)
	}
	if override.Material != "" {
		out.Material = override.Material
	}
	return out
}

func firstKeyword(words []Keyword, text string) string {
	for _, w := range words {
		if w.Pattern.MatchString(text) {
			return w.Value
		}
	}
	return ""
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }
