package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abhisek/studykit/internal/config"
	"github.com/abhisek/studykit/internal/docqa"
	"github.com/abhisek/studykit/internal/llm"
	"github.com/abhisek/studykit/internal/store"
)

var (
	v   = config.New()
	cfg *config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:           "studykit",
	Short:         "Study companion with quizzes, mock exams and PDF questions",
	Long:          "studykit tracks lessons and exercises, recommends weak lessons to review, runs quizzes and timed mock exams, and answers questions about PDF documents.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
		c, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c
		log = cfg.NewLogger()
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyDB, "", "Database path or DSN (overrides STUDYKIT_DB)")
	pf.String(config.KeyDriver, store.DriverSQLite, "Database driver: sqlite or postgres")
	pf.String(config.KeyLogLevel, "info", "Log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, "text", "Log format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the configured database: the --db flag, then STUDYKIT_DB,
// then the default XDG path.
func openStore() (*store.Store, error) {
	dsn, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.OpenDriver(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.WithFields(logrus.Fields{"driver": cfg.Driver}).Debug("database opened")
	return s, nil
}

// openProvider returns the configured language model provider, or nil when
// none is configured.
func openProvider(ctx context.Context, events store.EventRepo) (llm.Provider, error) {
	lc, ok := llm.ResolveConfig()
	if !ok {
		return nil, nil
	}
	return llm.NewProvider(ctx, lc, events, log)
}

func newExtractor() docqa.Extractor {
	if cfg.Extractor == config.ExtractorTika {
		return docqa.NewTikaExtractor(cfg.TikaURL, 0, log)
	}
	return docqa.NewPDFExtractor()
}
