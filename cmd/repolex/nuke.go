package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/apperrors"
)

var nukeCmd = &cobra.Command{
	Use:     "nuke",
	GroupID: "admin",
	Short:   "Delete every repository's graphs, leaving only the bundled ontologies",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirmNuke() {
			return apperrors.New(apperrors.KindValidation, "aborted: pass --yes to confirm")
		}
		if err := appCtx.coordinator.Nuke(cmd.Context(), logProgressGlobal()); err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"status": "nuked"})
		} else {
			fmt.Println("every repository has been removed")
		}
		return nil
	},
}

func init() {
	nukeCmd.Flags().Bool("yes", false, "skip the interactive confirmation prompt")
	rootCmd.AddCommand(nukeCmd)
}

// confirmNuke prompts for an explicit "yes" on stdin, mirroring the
// destructive-operation confirmation BeadsLog's init/reinit commands use
// for irreversible actions.
func confirmNuke() bool {
	fmt.Fprint(os.Stderr, "This deletes every ingested repository. Type \"yes\" to continue: ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}
