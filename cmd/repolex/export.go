package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/dna"
)

var exportCmd = &cobra.Command{
	Use:     "export <org/repo> <version>",
	GroupID: "query",
	Short:   "Export a version's semantic DNA as a MessagePack document",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := parseRepo(args[0])
		if err != nil {
			return err
		}
		version := args[1]
		isCurrent, _ := cmd.Flags().GetBool("current-repo")
		outPath, _ := cmd.Flags().GetString("out")

		doc, err := dna.Encode(ctx, appCtx.store, dna.EncodeOptions{
			Repo:          repo,
			Version:       version,
			IsCurrentRepo: isCurrent,
		})
		if err != nil {
			return err
		}

		data, err := dna.Marshal(doc)
		if err != nil {
			return err
		}

		if outPath == "" || outPath == "-" {
			if _, err := os.Stdout.Write(data); err != nil {
				return apperrors.Wrap(apperrors.KindExport, "writing semantic DNA to stdout", err)
			}
			return nil
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return apperrors.Wrap(apperrors.KindExport, "writing semantic DNA to "+outPath, err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"repo": repo.Slug(), "version": version, "bytes": len(data), "out": outPath})
		} else {
			fmt.Printf("%s %s: wrote %d bytes to %s\n", repo.Slug(), version, len(data), outPath)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("current-repo", false, "include private (underscore-prefixed) functions, as for the repository under active development")
	exportCmd.Flags().String("out", "", "output file path (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}
