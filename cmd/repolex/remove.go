package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/apperrors"
)

var removeCmd = &cobra.Command{
	Use:     "remove <org/repo> [version]",
	GroupID: "ingest",
	Short:   "Remove one version's facts, or an entire repository with --force",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := parseRepo(args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		switch {
		case len(args) == 2 && force:
			return apperrors.New(apperrors.KindValidation, "a version argument and --force are mutually exclusive: --force removes the whole repository")
		case len(args) == 2:
			version := args[1]
			if err := appCtx.coordinator.GraphRemove(ctx, repo, version, logProgress(repo)); err != nil {
				return err
			}
			reportRemoval(repo.Slug(), version)
			return nil
		case force:
			if err := appCtx.coordinator.Remove(ctx, repo, logProgress(repo)); err != nil {
				return err
			}
			reportRemoval(repo.Slug(), "")
			return nil
		default:
			return apperrors.New(apperrors.KindValidation, "removing an entire repository requires --force").
				WithSuggestions("pass a version to remove just that version's facts", "pass --force to remove the whole repository")
		}
	},
}

func init() {
	removeCmd.Flags().Bool("force", false, "remove the entire repository rather than a single version")
	rootCmd.AddCommand(removeCmd)
}

func reportRemoval(slug, version string) {
	if jsonOutput {
		outputJSON(map[string]string{"repo": slug, "removed": version})
		return
	}
	if version == "" {
		fmt.Printf("%s: removed entirely\n", slug)
	} else {
		fmt.Printf("%s: removed version %s\n", slug, version)
	}
}
