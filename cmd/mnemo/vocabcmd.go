package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mnemo/internal/config"
	"mnemo/internal/vocab"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Inspect the vocabulary manifest and synonym rings",
}

var vocabCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the vocabulary files and report what they contain",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataRoot := dataRootFlag
		if dataRoot == "" {
			dataRoot = "."
		}
		cfg, err := config.Load(dataRoot)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		vocabulary := vocab.New(cfg.Vocabulary.ManifestPath, cfg.Vocabulary.SynonymsPath)
		if err := vocabulary.Reload(); err != nil {
			return fmt.Errorf("load vocabulary: %w", err)
		}

		tags, rings := vocabulary.Size()
		fmt.Printf("manifest: %s\n", cfg.Vocabulary.ManifestPath)
		fmt.Printf("synonyms: %s\n", cfg.Vocabulary.SynonymsPath)
		fmt.Printf("tags: %d  buckets: %d  domain terms: %d  synonym rings: %d\n",
			tags, len(vocabulary.Buckets()), len(vocabulary.DomainTerms()), rings)
		return nil
	},
}

func init() {
	vocabCmd.AddCommand(vocabCheckCmd)
	rootCmd.AddCommand(vocabCmd)
}
