package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/quadstore"
)

var queryCmd = &cobra.Command{
	Use:     "query <org/repo> <sparql>",
	GroupID: "query",
	Short:   "Run a read-only SPARQL query against a repository's graph",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := parseRepo(args[0])
		if err != nil {
			return err
		}

		sparql, err := resolveQueryText(cmd, args[1:])
		if err != nil {
			return err
		}

		rowCap, _ := cmd.Flags().GetInt("row-cap")
		timeoutMS, _ := cmd.Flags().GetInt("timeout-ms")
		result, err := appCtx.executor.Query(ctx, repo, sparql, quadstore.QueryOptions{
			RowCapOverride:  rowCap,
			TimeoutOverride: int64(timeoutMS),
		})
		if err != nil {
			return err
		}
		printQueryResult(result)
		return nil
	},
}

func init() {
	queryCmd.Flags().String("file", "", "read the SPARQL query from a file instead of the trailing argument")
	queryCmd.Flags().Int("row-cap", 0, "override the result row cap (0 = configured default)")
	queryCmd.Flags().Int("timeout-ms", 0, "override the query timeout in milliseconds (0 = configured default)")
	rootCmd.AddCommand(queryCmd)
}

func resolveQueryText(cmd *cobra.Command, trailing []string) (string, error) {
	filePath, _ := cmd.Flags().GetString("file")
	switch {
	case filePath != "" && len(trailing) > 0:
		return "", apperrors.New(apperrors.KindValidation, "pass either --file or an inline query, not both")
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindValidation, "reading query file "+filePath, err)
		}
		return string(data), nil
	case len(trailing) == 1:
		return trailing[0], nil
	default:
		return "", apperrors.New(apperrors.KindValidation, "a SPARQL query is required (inline argument or --file)")
	}
}

func printQueryResult(result *quadstore.Result) {
	switch result.Kind {
	case quadstore.ResultBoolean:
		if jsonOutput {
			outputJSON(map[string]bool{"result": result.Boolean})
		} else {
			fmt.Println(result.Boolean)
		}
	case quadstore.ResultGraph:
		if jsonOutput {
			outputJSON(result.Quads)
		} else {
			for _, q := range result.Quads {
				fmt.Println(q.String())
			}
		}
	default: // ResultRows
		printRows(result.Rows, result.Truncated)
	}
}

func printRows(rows []quadstore.Row, truncated bool) {
	if jsonOutput {
		outputJSON(map[string]interface{}{"rows": rows, "truncated": truncated})
		return
	}
	if len(rows) == 0 {
		fmt.Println("(no results)")
		return
	}

	vars := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			vars[k] = true
		}
	}
	headers := make([]string, 0, len(vars))
	for v := range vars {
		headers = append(headers, v)
	}
	sort.Strings(headers)

	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			if term, ok := r[h]; ok {
				cells[i] = term.Value
			}
		}
		tableRows = append(tableRows, cells)
	}
	fmt.Println(newTable(headers, tableRows))
	if truncated {
		fmt.Fprintln(os.Stderr, "(results truncated by row cap)")
	}
}
