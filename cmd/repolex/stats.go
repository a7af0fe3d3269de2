package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/schema"
)

var statsCmd = &cobra.Command{
	Use:     "stats <org/repo>",
	GroupID: "query",
	Short:   "Show graph size and ingestion recency for a repository",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := parseRepo(args[0])
		if err != nil {
			return err
		}

		versions, err := appCtx.coordinator.Versions(ctx, repo)
		if err != nil {
			return err
		}

		type graphStat struct {
			Name      string `json:"name"`
			QuadCount int64  `json:"quad_count"`
			Bytes     int64  `json:"approx_bytes"`
		}
		named := []struct {
			label string
			graph schema.IRI
		}{
			{"functions/stable", schema.FunctionsStableGraph(repo)},
			{"functions/implementations", schema.FunctionsImplementationsGraph(repo)},
			{"git/commits", schema.GitCommitsGraph(repo)},
			{"git/developers", schema.GitDevelopersGraph(repo)},
			{"git/tags", schema.GitTagsGraph(repo)},
			{"abc/events", schema.ABCEventsGraph(repo)},
		}
		stats := make([]graphStat, 0, len(named))
		var totalQuads, totalBytes int64
		for _, n := range named {
			s, err := appCtx.store.Stats(ctx, string(n.graph))
			if err != nil {
				return err
			}
			stats = append(stats, graphStat{Name: n.label, QuadCount: s.QuadCount, Bytes: s.ApproxBytes})
			totalQuads += s.QuadCount
			totalBytes += s.ApproxBytes
		}

		history, err := appCtx.history.Lookup(ctx, repo)
		if err != nil {
			return err
		}

		if jsonOutput {
			out := map[string]interface{}{
				"repo":        repo.Slug(),
				"versions":    versions,
				"graphs":      stats,
				"total_quads": totalQuads,
				"total_bytes": totalBytes,
			}
			if history != nil {
				out["last_version"] = history.Version
				out["last_ingested_at"] = history.IngestedAt
			}
			outputJSON(out)
			return nil
		}

		fmt.Printf("%s — %d version(s): %v\n", repo.Slug(), len(versions), versions)
		rows := make([][]string, 0, len(stats))
		for _, s := range stats {
			rows = append(rows, []string{s.Name, fmt.Sprintf("%d", s.QuadCount), humanize.Bytes(uint64(s.Bytes))})
		}
		fmt.Println(newTable([]string{"graph", "quads", "size"}, rows))
		fmt.Printf("total: %d quads, %s\n", totalQuads, humanize.Bytes(uint64(totalBytes)))
		if history != nil {
			fmt.Printf("last ingested: %s at %s\n", history.Version, humanize.Time(history.IngestedAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
