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
	graphMaxChars int
	graphScope    string
	graphJSON     bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <text>",
	Short: "Run a query and render the result as an association graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, db, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		defer db.Close()

		query := args[0]
		for _, extra := range args[1:] {
			query += " " + extra
		}

		g := engine.Illuminate(context.Background(), query, retrieval.Options{
			MaxChars: graphMaxChars,
			Scope:    graphScope,
		})

		if graphJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(g)
		}

		fmt.Printf("%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
		for _, e := range g.Edges {
			fmt.Printf("  %s -> %s (%.0f)\n", e.From, e.To, e.Score)
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().IntVar(&graphMaxChars, "max-chars", 0, "Character budget for the underlying search")
	graphCmd.Flags().StringVar(&graphScope, "scope", "all", "Provenance scope: internal, external or all")
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "Emit the graph as JSON")
	rootCmd.AddCommand(graphCmd)
}
