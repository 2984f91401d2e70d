// Package main provides the buildkeeb CLI for recommendations, catalog
// administration and research lookups.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/storage"
)

var (
	// Global flags
	cfgFile    string
	seedFile   string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration, logger and UI
	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "buildkeeb",
	Short: "Keyboard build recommendations, catalog administration and research",
	Long: `buildkeeb recommends complete mechanical keyboard builds from the catalog.

Use this tool to:
- Recommend or tweak a build from a free-text request and questionnaire answers
- Inspect the criteria extracted from a request
- Validate a saved build against the catalog
- Import a YAML catalog and inspect partition counts
- Run cached web searches and deep research for parts

Pass --seed to run against a YAML catalog without a database.
All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		} else if !outputJSON {
			level = "warn"
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			Output:      os.Stderr,
			ServiceName: "buildkeeb-cli",
		})
		ui = NewUI(outputJSON, noColor)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ui != nil {
			ui.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "", "read the catalog from a YAML file instead of the database")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newRecommendCmd())
	rootCmd.AddCommand(newTweakCmd())
	rootCmd.AddCommand(newCriteriaCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newResearchCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openCatalog returns the catalog reader for this run: the seed file when
// --seed is set, the configured database otherwise.
func openCatalog(ctx context.Context) (catalog.Reader, func(), error) {
	if seedFile != "" {
		snap, err := catalog.LoadSeedFile(seedFile)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewMemoryReader(snap), func() {}, nil
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return storage.NewCatalogRepository(db), func() { db.Close() }, nil
}

// parseAnswers turns repeated question=value flags into questionnaire answers.
// Numbers and booleans keep their type.
func parseAnswers(raw []string) ([]criteria.Answer, error) {
	answers := make([]criteria.Answer, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid answer %q, expected question=value", kv)
		}
		value = strings.TrimSpace(value)

		var v any = value
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			v = n
		} else if b, err := strconv.ParseBool(value); err == nil {
			v = b
		}
		answers = append(answers, criteria.Answer{QuestionID: key, Value: v})
	}
	return answers, nil
}

// requestFromArgs joins positional arguments, or reads stdin when the only
// argument is "-".
func requestFromArgs(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read request: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
