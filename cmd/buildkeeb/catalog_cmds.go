package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/storage"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import, export and inspect the catalog",
	}
	cmd.AddCommand(newCatalogImportCmd())
	cmd.AddCommand(newCatalogExportCmd())
	cmd.AddCommand(newCatalogStatsCmd())
	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Upsert a YAML catalog into the database",
		Long: `Import reads a YAML catalog document and upserts every switch, board,
keycap set, accessory and sponsorship into the configured database. Existing
entries with the same id are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			snap, err := catalog.LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			db, err := storage.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := storage.Migrate(ctx, db); err != nil {
				return err
			}

			counts := snap.Counts()
			total := len(snap.Sponsorships)
			for _, n := range counts {
				total += n
			}

			logger.Info().
				Str("file", args[0]).
				Int("entries", total).
				Str("database", cfg.Database.Driver).
				Msg("Importing catalog")

			start := time.Now()
			bar := ui.ImportBar(total, "Importing")
			repo := storage.NewCatalogRepository(db)
			err = repo.ImportSnapshot(ctx, snap, func(done, _ int) {
				_ = bar.Set(done)
			})
			_ = bar.Finish()
			if err != nil {
				return fmt.Errorf("import catalog: %w", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"imported":     counts,
					"sponsorships": len(snap.Sponsorships),
					"durationMs":   time.Since(start).Milliseconds(),
				})
			}
			ui.Success("Imported %d entries in %s", total, FormatDuration(time.Since(start)))
			renderCounts(ui, counts)
			return nil
		},
	}
}

func newCatalogExportCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current catalog as a YAML document",
		Long: `Export reads every partition and the active sponsorships and writes them
in the same format import accepts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
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

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create %s: %w", outFile, err)
				}
				defer f.Close()
				w = f
			}

			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}
			if err := enc.Close(); err != nil {
				return err
			}

			if outFile != "" {
				ui.Success("Catalog written to %s", outFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newCatalogStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts per catalog partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			counts, err := catalogCounts(ctx)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), counts)
			}
			renderCounts(ui, counts)
			return nil
		},
	}
}

// catalogCounts counts the seed file when --seed is set, the database rows
// otherwise.
func catalogCounts(ctx context.Context) (map[catalog.Partition]int, error) {
	if seedFile != "" {
		snap, err := catalog.LoadSeedFile(seedFile)
		if err != nil {
			return nil, err
		}
		return snap.Counts(), nil
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return storage.NewCatalogRepository(db).Counts(ctx)
}

func renderCounts(ui *UI, counts map[catalog.Partition]int) {
	rows := make([][]string, 0, len(catalog.Partitions)+1)
	total := 0
	for _, p := range catalog.Partitions {
		rows = append(rows, []string{string(p), strconv.Itoa(counts[p])})
		total += counts[p]
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	ui.Table([]string{"Partition", "Entries"}, rows)
}
