// Package filter narrows catalog partitions to the entries worth sending to
// the recommendation service.
//
// Every narrowing predicate is gated: its result is kept only when at least the
// partition's minimum viable count survives, otherwise the working set is left
// as it was. Survivors are ranked by rating and capped.
package filter

import (
	"sort"
	"strings"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/observability"
)

// Share of the total budget each slot may consume.
const (
	switchBudgetShare = 0.25
	boardBudgetShare  = 0.50
	keycapBudgetShare = 0.30
)

// soundStems are the substrings looked for in an entry's sound descriptors.
var soundStems = map[string][]string{
	"thocky": {"thock", "deep"},
	"creamy": {"cream", "smooth"},
	"clacky": {"clack", "crisp"},
	"poppy":  {"pop"},
	"marbly": {"marbl"},
	"quiet":  {"quiet", "silent"},
}

// impliedSwitchType maps sound preferences to the switch type that produces them.
var impliedSwitchType = map[string]catalog.SwitchType{
	"thocky": catalog.SwitchLinear,
	"creamy": catalog.SwitchLinear,
	"poppy":  catalog.SwitchLinear,
	"marbly": catalog.SwitchLinear,
}

// Step records the outcome of one predicate.
type Step struct {
	Partition catalog.Partition `json:"partition"`
	Predicate string            `json:"predicate"`
	Before    int               `json:"before"`
	After     int               `json:"after"`
	Applied   bool              `json:"applied"`
}

// Result is the filtered catalog for one request.
type Result struct {
	Switches     []catalog.Switch      `json:"switches"`
	Boards       []catalog.Board       `json:"boards"`
	KeycapSets   []catalog.KeycapSet   `json:"keycap_sets"`
	Accessories  []catalog.Accessory   `json:"accessories"`
	Sponsorships []catalog.Sponsorship `json:"sponsorships"`
	Steps        []Step                `json:"steps"`
}

// Applied returns the predicates that narrowed the set.
func (r Result) Applied() []Step { return r.stepsWhere(true) }

// Skipped returns the predicates discarded by the minimum viable count.
func (r Result) Skipped() []Step { return r.stepsWhere(false) }

func (r Result) stepsWhere(applied bool) []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Applied == applied {
			out = append(out, s)
		}
	}
	return out
}

// Filter applies criteria to catalog snapshots.
type Filter struct {
	cfg    config.FilterConfig
	logger *observability.Logger
}

// New creates a filter with the given thresholds.
func New(cfg config.FilterConfig, logger *observability.Logger) *Filter {
	if cfg.SwitchesPerKit <= 0 {
		cfg.SwitchesPerKit = 90
	}
	return &Filter{cfg: cfg, logger: observability.OrNop(logger)}
}

// Apply narrows snap according to c. It never fails; an empty partition is a
// valid outcome.
func (f *Filter) Apply(c criteria.Criteria, snap catalog.Snapshot) Result {
	res := Result{
		Accessories:  snap.Accessories,
		Sponsorships: snap.Sponsorships,
	}

	res.Switches = rank(
		narrow(catalog.PartitionSwitches, snap.Switches, f.cfg.MinSwitches, f.switchPredicates(c), &res.Steps),
		f.cfg.MaxSwitches,
		func(s catalog.Switch) (float64, string) { return s.Rating, s.FullName() },
	)
	res.Boards = rank(
		narrow(catalog.PartitionBoards, snap.Boards, f.cfg.MinBoards, f.boardPredicates(c), &res.Steps),
		f.cfg.MaxBoards,
		func(b catalog.Board) (float64, string) { return b.Rating, b.FullName() },
	)
	res.KeycapSets = rank(
		narrow(catalog.PartitionKeycapSets, snap.KeycapSets, f.cfg.MinKeycapSets, f.keycapPredicates(c), &res.Steps),
		f.cfg.MaxKeycapSets,
		func(k catalog.KeycapSet) (float64, string) { return k.Rating, k.FullName() },
	)

	for _, s := range res.Skipped() {
		f.logger.Debug().
			Str("partition", string(s.Partition)).
			Str("predicate", s.Predicate).
			Int("would_keep", s.After).
			Msg("Predicate too narrow, keeping broader set")
	}
	f.logger.Debug().
		Int("switches", len(res.Switches)).
		Int("boards", len(res.Boards)).
		Int("keycap_sets", len(res.KeycapSets)).
		Int("accessories", len(res.Accessories)).
		Msg("Catalog filtered")

	return res
}

type predicate[T any] struct {
	name string
	keep func(T) bool
}

// narrow applies each predicate against the current working set and commits
// it only if at least minCount entries survive.
func narrow[T any](p catalog.Partition, items []T, minCount int, preds []predicate[T], steps *[]Step) []T {
	working := items
	for _, pred := range preds {
		next := make([]T, 0, len(working))
		for _, it := range working {
			if pred.keep(it) {
				next = append(next, it)
			}
		}

		step := Step{Partition: p, Predicate: pred.name, Before: len(working), After: len(next)}
		if len(next) >= minCount {
			working = next
			step.Applied = true
		}
		*steps = append(*steps, step)
	}
	return working
}

// rank sorts by descending score then ascending name and truncates to limit.
func rank[T any](items []T, limit int, key func(T) (float64, string)) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		si, ni := key(out[i])
		sj, nj := key(out[j])
		if si != sj {
			return si > sj
		}
		return ni < nj
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *Filter) switchPredicates(c criteria.Criteria) []predicate[catalog.Switch] {
	preds := []predicate[catalog.Switch]{
		{"in_stock", func(s catalog.Switch) bool { return s.InStock }},
	}

	want := c.SwitchType
	if want == "" {
		want = impliedSwitchType[c.Sound]
	}
	if want != "" {
		preds = append(preds, predicate[catalog.Switch]{"type:" + string(want), func(s catalog.Switch) bool {
			return strings.EqualFold(string(s.Type), string(want))
		}})
	}

	if stems, ok := soundStems[c.Sound]; ok {
		preds = append(preds, predicate[catalog.Switch]{"sound:" + c.Sound, func(s catalog.Switch) bool {
			return hasAny(s.Sound+" "+s.Feel, stems)
		}})
	}

	if c.Budget != nil {
		maxUnit := float64(*c.Budget) * switchBudgetShare / float64(f.cfg.SwitchesPerKit)
		preds = append(preds, predicate[catalog.Switch]{"price", func(s catalog.Switch) bool {
			return s.Price <= maxUnit
		}})
	}
	return preds
}

func (f *Filter) boardPredicates(c criteria.Criteria) []predicate[catalog.Board] {
	preds := []predicate[catalog.Board]{
		{"in_stock", func(b catalog.Board) bool { return b.InStock }},
	}

	if c.Size != "" {
		want := normalizeSize(c.Size)
		preds = append(preds, predicate[catalog.Board]{"size:" + c.Size, func(b catalog.Board) bool {
			return normalizeSize(b.Size) == want
		}})
	}
	if c.Wireless != nil {
		want := *c.Wireless
		preds = append(preds, predicate[catalog.Board]{"wireless", func(b catalog.Board) bool {
			return b.Wireless == want
		}})
	}
	if c.HotSwap != nil {
		want := *c.HotSwap
		preds = append(preds, predicate[catalog.Board]{"hot_swap", func(b catalog.Board) bool {
			return b.HotSwap == want
		}})
	}
	if stems, ok := soundStems[c.Sound]; ok {
		preds = append(preds, predicate[catalog.Board]{"sound:" + c.Sound, func(b catalog.Board) bool {
			return hasAny(b.Sound, stems)
		}})
	}
	if c.Budget != nil {
		maxPrice := float64(*c.Budget) * boardBudgetShare
		preds = append(preds, predicate[catalog.Board]{"price", func(b catalog.Board) bool {
			return b.Price <= maxPrice
		}})
	}
	return preds
}

func (f *Filter) keycapPredicates(c criteria.Criteria) []predicate[catalog.KeycapSet] {
	preds := []predicate[catalog.KeycapSet]{
		{"in_stock", func(k catalog.KeycapSet) bool { return k.InStock }},
	}

	if c.Material != "" {
		want := c.Material
		preds = append(preds, predicate[catalog.KeycapSet]{"material:" + want, func(k catalog.KeycapSet) bool {
			return strings.EqualFold(k.Material, want)
		}})
	}
	if stems, ok := soundStems[c.Sound]; ok {
		preds = append(preds, predicate[catalog.KeycapSet]{"sound:" + c.Sound, func(k catalog.KeycapSet) bool {
			return hasAny(k.Sound, stems)
		}})
	}
	if c.Budget != nil {
		maxPrice := float64(*c.Budget) * keycapBudgetShare
		preds = append(preds, predicate[catalog.KeycapSet]{"price", func(k catalog.KeycapSet) bool {
			return k.Price <= maxPrice
		}})
	}
	return preds
}

func hasAny(s string, stems []string) bool {
	s = strings.ToLower(s)
	for _, stem := range stems {
		if strings.Contains(s, stem) {
			return true
		}
	}
	return false
}

// normalizeSize folds layout spellings so "TKL", "tkl" and "80%" compare equal.
func normalizeSize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch s {
	case "tkl", "80%", "tenkeyless", "87%":
		return "tkl"
	case "full", "fullsize", "full-size", "100%":
		return "full"
	}
	return s
}
