package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/query"
)

var searchCmd = &cobra.Command{
	Use:     "search <org/repo> <query text>",
	GroupID: "query",
	Short:   "Natural-language search over a repository's functions",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := parseRepo(args[0])
		if err != nil {
			return err
		}
		queryText := strings.Join(args[1:], " ")

		version, _ := cmd.Flags().GetString("version")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		results, err := appCtx.executor.Search(ctx, queryText, query.SearchOptions{
			Repo:     repo,
			Version:  version,
			Category: category,
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		printSearchResults(results)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("version", "", "restrict to one implementation version")
	searchCmd.Flags().String("category", "", "restrict to one file category")
	searchCmd.Flags().Int("limit", query.DefaultSearchLimit, "maximum results to return")
	rootCmd.AddCommand(searchCmd)
}

func printSearchResults(results []query.SearchResult) {
	if jsonOutput {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("(no matches)")
		return
	}
	headers := []string{"score", "name", "module", "signature"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%.2f", r.Score),
			r.Name,
			r.ModulePath,
			r.Signature,
		})
	}
	fmt.Println(newTable(headers, rows))
}
