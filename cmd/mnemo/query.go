package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mnemo/internal/retrieval"
)

var (
	queryBuckets  []string
	queryTags     []string
	queryMaxChars int
	queryScope    string
	querySmart    bool
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the corpus for passages matching a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, db, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		opts := retrieval.Options{
			Buckets:  queryBuckets,
			Tags:     queryTags,
			MaxChars: queryMaxChars,
			Scope:    queryScope,
		}

		query := args[0]
		for _, extra := range args[1:] {
			query += " " + extra
		}

		var res *retrieval.Result
		if querySmart {
			res = engine.SmartSearch(context.Background(), query, opts)
		} else {
			res = engine.IterativeSearch(context.Background(), query, opts)
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Printf("strategy=%s attempt=%d atoms=%d\n\n",
			res.Meta.Strategy, res.Meta.Attempt, len(res.Atoms))
		fmt.Println(res.Context)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryBuckets, "bucket", nil, "Restrict to bucket (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryTags, "tag", nil, "Require tag (repeatable)")
	queryCmd.Flags().IntVar(&queryMaxChars, "max-chars", 0, "Character budget for the rendered context")
	queryCmd.Flags().StringVar(&queryScope, "scope", "all", "Provenance scope: internal, external or all")
	queryCmd.Flags().BoolVar(&querySmart, "smart", false, "Use the adaptive entity-split strategy")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Emit the full result as JSON")
	rootCmd.AddCommand(queryCmd)
}
