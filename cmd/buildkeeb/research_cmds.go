package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/buildkeeb/engine/internal/cache"
	"github.com/buildkeeb/engine/internal/research"
)

// maxConcurrentQueries bounds parallel lookups from one invocation.
const maxConcurrentQueries = 4

func newResearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Run cached web searches and deep research",
		Long: `Research queries the external search service through the shared query
cache. Each argument is a separate query; several queries run concurrently.`,
	}
	cmd.AddCommand(newResearchSearchCmd())
	cmd.AddCommand(newResearchDeepCmd())
	cmd.AddCommand(newResearchPurgeCmd())
	return cmd
}

// openQueryCache connects the configured cache backend.
func openQueryCache(ctx context.Context) (*cache.QueryCache, func(), error) {
	client, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("query cache: %w", err)
	}
	return cache.NewQueryCache(client, logger), func() { _ = client.Close() }, nil
}

// newResearcher wraps the research client with the query cache.
func newResearcher(ctx context.Context) (*research.Cached, func(), error) {
	if !cfg.ResearchEnabled() {
		return nil, nil, errors.New("research is not configured, set RESEARCH_API_KEY")
	}
	provider, err := research.NewClient(cfg.Research, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("research client: %w", err)
	}
	qc, closeFn, err := openQueryCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	return research.NewCached(provider, qc, cfg.Cache.SearchTTL, cfg.Cache.ResearchTTL, logger), closeFn, nil
}

// runQueries runs fn for every query concurrently, one task bar per query, and
// returns the results in argument order.
func runQueries[T any](ctx context.Context, ui *UI, queries []string, fn func(context.Context, string) T) []T {
	out := make([]T, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for i, q := range queries {
		i, q := i, q
		bar := ui.TaskBar(truncateLabel(q, 40))
		g.Go(func() error {
			out[i] = fn(ctx, q)
			finishBar(bar, true)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newResearchSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "search <query>...",
		Short:   "Web search for parts, prices and reviews",
		Example: `  buildkeeb research search "gateron oil king price" "gmk olivia restock"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Research.Timeout+30*time.Second)
			defer cancel()

			researcher, closeFn, err := newResearcher(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			results := runQueries(ctx, ui, args, researcher.Search)
			ui.Close()

			if outputJSON {
				out := make(map[string][]research.Result, len(args))
				for i, q := range args {
					out[q] = results[i]
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			for i, q := range args {
				ui.Section(q)
				if len(results[i]) == 0 {
					ui.Warning("No results")
					continue
				}
				rows := make([][]string, 0, len(results[i]))
				for _, r := range results[i] {
					rows = append(rows, []string{truncateLabel(r.Title, 60), r.URL, fmt.Sprintf("%.2f", r.Score)})
				}
				ui.Table([]string{"Title", "URL", "Score"}, rows)
			}
			return nil
		},
	}
}

func newResearchDeepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deep <question>...",
		Short: "Synthesized research answer with sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Research.Timeout+time.Minute)
			defer cancel()

			researcher, closeFn, err := newResearcher(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			answers := runQueries(ctx, ui, args, researcher.DeepResearch)
			ui.Close()

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), answers)
			}

			for _, a := range answers {
				ui.Section(a.Query)
				if !a.Complete {
					ui.Warning("%s", a.Summary)
					continue
				}
				fmt.Fprintln(ui.out, strings.TrimSpace(a.Summary))
				ui.Newline()
				for i, s := range a.Sources {
					ui.KeyValue(fmt.Sprintf("[%d]", i+1), s.Title+" "+s.URL)
				}
			}
			return nil
		},
	}
}

func newResearchPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "purge [search|research]",
		Short:     "Drop cached lookups",
		Long:      "Purge removes cached entries for one source, or for both when no source is given.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{research.SourceSearch, research.SourceResearch},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			sources := []string{research.SourceSearch, research.SourceResearch}
			if len(args) == 1 {
				if args[0] != research.SourceSearch && args[0] != research.SourceResearch {
					return fmt.Errorf("unknown source %q", args[0])
				}
				sources = args
			}

			qc, closeFn, err := openQueryCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			for _, src := range sources {
				if err := qc.Purge(ctx, src); err != nil {
					return fmt.Errorf("purge %s: %w", src, err)
				}
				ui.Success("Purged cached %s lookups", src)
			}
			return nil
		},
	}
}
