package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/llm"
	"github.com/buildkeeb/engine/internal/recommend"
	"github.com/buildkeeb/engine/internal/validate"
)

// newPipeline wires the recommendation service over the run's catalog.
func newPipeline(ctx context.Context) (*recommend.Service, func(), error) {
	reader, closeCatalog, err := openCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		closeCatalog()
		return nil, nil, fmt.Errorf("llm client: %w", err)
	}
	return recommend.NewService(logger, reader, client, cfg, recommend.Options{}), closeCatalog, nil
}

func newRecommendCmd() *cobra.Command {
	var answerFlags []string

	cmd := &cobra.Command{
		Use:   "recommend [request...]",
		Short: "Recommend a complete build",
		Long: `Recommend reads a free-text request (use "-" to read stdin) and optional
questionnaire answers, narrows the catalog, asks the recommendation service for
a build and validates it against the catalog.`,
		Example: `  buildkeeb recommend "thocky 65% under $200"
  buildkeeb recommend --answer budget=150 --answer size=tkl --seed catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := requestFromArgs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			answers, err := parseAnswers(answerFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LLM.Timeout+30*time.Second)
			defer cancel()

			pipeline, closeFn, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			stop := ui.Spinner("Generating build...")
			resp, err := pipeline.Recommend(ctx, recommend.Request{Text: text, Answers: answers})
			stop()
			if err != nil {
				return fmt.Errorf("recommend: %w", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			renderResponse(ui, resp)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&answerFlags, "answer", "a", nil, "questionnaire answer as question=value (repeatable)")
	return cmd
}

func newTweakCmd() *cobra.Command {
	var (
		previousFile string
		original     string
		answerFlags  []string
	)

	cmd := &cobra.Command{
		Use:   "tweak <change...>",
		Short: "Adjust a previously recommended build",
		Long: `Tweak replays the original request and the previous build to the
recommendation service together with the requested change.`,
		Example: `  buildkeeb recommend --json "quiet tkl" > build.json
  buildkeeb tweak --previous build.json --original "quiet tkl" "make it wireless"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			previous, err := readBundleFile(previousFile)
			if err != nil {
				return err
			}
			answers, err := parseAnswers(answerFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LLM.Timeout+30*time.Second)
			defer cancel()

			pipeline, closeFn, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			stop := ui.Spinner("Tweaking build...")
			resp, err := pipeline.Tweak(ctx, recommend.TweakRequest{
				OriginalRequest: original,
				Previous:        previous,
				Change:          strings.Join(args, " "),
				Answers:         answers,
			})
			stop()
			if err != nil {
				return fmt.Errorf("tweak: %w", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			renderResponse(ui, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&previousFile, "previous", "p", "", "previous build JSON file (required)")
	cmd.Flags().StringVar(&original, "original", "", "the request the previous build answered")
	cmd.Flags().StringArrayVarP(&answerFlags, "answer", "a", nil, "questionnaire answer as question=value (repeatable)")
	_ = cmd.MarkFlagRequired("previous")
	return cmd
}

func newCriteriaCmd() *cobra.Command {
	var answerFlags []string

	cmd := &cobra.Command{
		Use:   "criteria [request...]",
		Short: "Show the criteria extracted from a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := requestFromArgs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			answers, err := parseAnswers(answerFlags)
			if err != nil {
				return err
			}

			c := criteria.NewExtractor(criteria.DefaultVocabulary()).Extract(text, answers)
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), c)
			}
			renderCriteria(ui, c)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&answerFlags, "answer", "a", nil, "questionnaire answer as question=value (repeatable)")
	return cmd
}

// validationResult is the JSON output of the validate command for one file.
type validationResult struct {
	File   string          `json:"file"`
	Build  build.Bundle    `json:"build"`
	Report validate.Report `json:"report"`
	Error  string          `json:"error,omitempty"`
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <build.json>...",
		Short: "Validate saved builds against the catalog",
		Long: `Validate matches each build's keyboard, switches and keycaps against the
catalog, corrects names and prices of confident matches and recomputes the
estimated total.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			reader, closeFn, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := catalog.LoadSnapshot(ctx, reader, logger)
			if err != nil {
				return err
			}
			results := validateFiles(ui, validate.New(cfg.Validation, logger), args, snap)

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), results)
			}

			failed := 0
			for _, r := range results {
				ui.Section(filepath.Base(r.File))
				if r.Error != "" {
					ui.Error("%s", r.Error)
					failed++
					continue
				}
				renderBuild(ui, r.Build)
				renderReport(ui, r.Report)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be validated", failed, len(results))
			}
			return nil
		},
	}
	return cmd
}

// validateFiles validates every file against snap. Per-file failures are
// reported in the result rather than stopping the run.
func validateFiles(ui *UI, validator *validate.Validator, files []string, snap catalog.Snapshot) []validationResult {
	var bar *mpb.Bar
	if len(files) > 1 {
		bar = ui.ProgressBar("validating", int64(len(files)))
	}

	results := make([]validationResult, 0, len(files))
	for _, f := range files {
		res := validationResult{File: f}
		b, err := readBundleFile(f)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Build, res.Report = validator.Validate(b, snap)
		}
		results = append(results, res)
		if bar != nil {
			bar.Increment()
		}
	}
	return results
}

// readBundleFile reads a bundle, or the build of a saved recommend response.
func readBundleFile(path string) (build.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return build.Bundle{}, fmt.Errorf("read build: %w", err)
	}

	var wrapped struct {
		Build *build.Bundle `json:"build"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Build != nil {
		return *wrapped.Build, nil
	}

	var b build.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return build.Bundle{}, fmt.Errorf("parse build %s: %w", path, err)
	}
	if b.Name == "" && b.Keyboard.Name == "" {
		return build.Bundle{}, fmt.Errorf("parse build %s: no build found", path)
	}
	return b, nil
}

func renderResponse(ui *UI, resp *recommend.Response) {
	if resp.Build.Error {
		ui.Warning("%s", resp.Build.Notes)
		return
	}
	renderCriteria(ui, resp.Criteria)
	renderBuild(ui, resp.Build)
	renderReport(ui, resp.Validation)
	ui.Info("Generated in %s", FormatDuration(time.Duration(resp.LatencyMs)*time.Millisecond))
}

func renderCriteria(ui *UI, c criteria.Criteria) {
	ui.Step("Criteria: %s", c.Describe())
}

func renderBuild(ui *UI, b build.Bundle) {
	ui.Section(b.Name)
	if b.Summary != "" {
		ui.KeyValue("Summary", b.Summary)
	}
	ui.KeyValue("Sound", b.SoundProfile)
	ui.KeyValue("Difficulty", b.Difficulty)
	ui.Newline()

	catalogRef := func(c build.Component) string {
		if c.ProductID == "" {
			return "-"
		}
		return c.DetailPath
	}
	switches := fmt.Sprintf("%s (%d x %s)", b.Switches.Name, b.Switches.Quantity, FormatMoney(b.Switches.PricePerSwitch))
	ui.Table(
		[]string{"Part", "Product", "Price", "Catalog"},
		[][]string{
			{"Keyboard", b.Keyboard.Name, FormatMoney(b.Keyboard.Price), catalogRef(b.Keyboard)},
			{"Switches", switches, FormatMoney(b.Switches.Price), catalogRef(b.Switches.Component)},
			{"Keycaps", b.Keycaps.Name, FormatMoney(b.Keycaps.Price), catalogRef(b.Keycaps)},
			{"Stabilizers", b.Stabilizers.Name, FormatMoney(b.Stabilizers.Price), catalogRef(b.Stabilizers)},
		},
	)

	if len(b.Mods) > 0 {
		rows := make([][]string, 0, len(b.Mods))
		for _, m := range b.Mods {
			rows = append(rows, []string{m.Name, FormatMoney(m.Cost), string(m.Difficulty), m.Effect})
		}
		ui.Newline()
		ui.Table([]string{"Mod", "Cost", "Difficulty", "Effect"}, rows)
	}

	ui.Newline()
	ui.KeyValue("Estimated total", FormatMoney(b.EstimatedTotal))
	if b.Notes != "" {
		ui.KeyValue("Notes", b.Notes)
	}
}

func renderReport(ui *UI, r validate.Report) {
	if len(r.Matches) == 0 {
		return
	}
	rows := make([][]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		delta := ""
		if m.PriceDelta != nil {
			delta = fmt.Sprintf("%+.2f", *m.PriceDelta)
		}
		rows = append(rows, []string{
			string(m.Slot),
			string(m.Outcome),
			m.Original,
			m.MatchedName,
			fmt.Sprintf("%.2f", m.Confidence),
			delta,
		})
	}
	ui.Newline()
	ui.Table([]string{"Slot", "Outcome", "Recommended", "Catalog match", "Confidence", "Price delta"}, rows)

	if n := r.Corrections(); n > 0 {
		ui.Warning("%d slot(s) corrected, total %s -> %s", n, FormatMoney(r.TotalBefore), FormatMoney(r.TotalAfter))
	} else {
		ui.Success("All slots consistent with the catalog")
	}
}
