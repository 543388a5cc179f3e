package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mnemo/internal/config"
	"mnemo/internal/logging"
	"mnemo/internal/nlp"
	"mnemo/internal/retrieval"
	"mnemo/internal/store"
	"mnemo/internal/version"
	"mnemo/internal/vocab"
)

var (
	// dataRootFlag is the CLI --data flag value
	dataRootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "mnemo - associative memory retrieval",
	Long: `mnemo retrieves ranked, deduplicated passages from an ingested corpus,
combining direct full-text matches with graph-discovered associations
(shared tags, temporal proximity, fingerprint similarity, physical
adjacency within a source document).`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("mnemo version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&dataRootFlag, "data", "",
		"Data root directory holding mnemo.db, vocabulary and config (default: .)")
}

// buildEngine loads config, opens the store and wires a retrieval engine.
// Every command that queries goes through here.
func buildEngine() (*retrieval.Engine, *store.DB, *config.Config, *logging.Logger, error) {
	dataRoot := dataRootFlag
	if dataRoot == "" {
		dataRoot = "."
	}

	cfg, err := config.Load(dataRoot)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.Level(cfg.Logging.Level),
	})

	db, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	db.SetQueryTimeout(time.Duration(cfg.Store.QueryTimeoutMs) * time.Millisecond)

	vocabulary := vocab.New(cfg.Vocabulary.ManifestPath, cfg.Vocabulary.SynonymsPath)
	if err := vocabulary.Reload(); err != nil {
		// Queries still work without a vocabulary; expansion just no-ops.
		logger.Warn("vocabulary unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}

	engine := retrieval.NewEngine(db, nlp.DefaultTagger(), vocabulary, cfg, logger)
	return engine, db, cfg, logger, nil
}
