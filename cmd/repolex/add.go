package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/factbag"
	"github.com/repolex/repolex/internal/factbag/wasm"
	"github.com/repolex/repolex/internal/schema"
)

var addCmd = &cobra.Command{
	Use:     "add <org/repo> <version> <checkout-path>",
	GroupID: "ingest",
	Short:   "Ingest a new version of a repository into its graph",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, args, false)
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <org/repo> <version> <checkout-path>",
	GroupID: "ingest",
	Short:   "Re-ingest an already-present version, discarding its prior facts",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{addCmd, updateCmd} {
		c.Flags().String("fixture", "", "path to a msgpack-encoded factbag.FactBag fixture (for test/demo ingestion)")
		c.Flags().String("parser", "", "path to a WASM parser-plugin binary implementing the factbag.Provider ABI")
	}
	rootCmd.AddCommand(addCmd, updateCmd)
}

func runAdd(cmd *cobra.Command, args []string, isUpdate bool) error {
	ctx := cmd.Context()
	repo, err := parseRepo(args[0])
	if err != nil {
		return err
	}
	version, checkoutPath := args[1], args[2]

	fixture, _ := cmd.Flags().GetString("fixture")
	parserPath, _ := cmd.Flags().GetString("parser")
	provider, closeProvider, err := resolveProvider(ctx, fixture, parserPath)
	if err != nil {
		return err
	}
	if closeProvider != nil {
		defer closeProvider()
	}

	bag, err := provider.Extract(ctx, checkoutPath)
	if err != nil {
		return apperrors.Wrap(apperrors.KindProcessing, "running parser collaborator", err)
	}
	bag.Org, bag.Repo, bag.Version, bag.CheckoutPath = repo.Org, repo.Repo, version, checkoutPath

	var prevVersion string
	if !isUpdate {
		versions, err := appCtx.coordinator.Versions(ctx, repo)
		if err != nil {
			return err
		}
		if len(versions) > 0 {
			prevVersion = versions[len(versions)-1]
		}
		if err := appCtx.coordinator.GraphAdd(ctx, repo, bag, prevVersion, logProgress(repo)); err != nil {
			return err
		}
	} else {
		if err := appCtx.coordinator.GraphUpdate(ctx, repo, bag, "", logProgress(repo)); err != nil {
			return err
		}
	}

	quadCount := int64(0)
	if stats, err := appCtx.store.Stats(ctx, string(schema.FunctionsImplementationsGraph(repo))); err == nil {
		quadCount = stats.QuadCount
	}
	if err := appCtx.history.Record(ctx, repo, version, quadCount, time.Now()); err != nil {
		appCtx.logger.Warn("recording ingestion history failed", "repo", repo.Slug(), "error", err)
	}

	result := map[string]interface{}{
		"repo":      repo.Slug(),
		"version":   version,
		"functions": len(bag.Functions),
		"classes":   len(bag.Classes),
		"files":     len(bag.Files),
	}
	if jsonOutput {
		outputJSON(result)
	} else {
		verb := "added"
		if isUpdate {
			verb = "updated"
		}
		fmt.Printf("%s: %s %s (%d functions, %d classes, %d files)\n", repo.Slug(), verb, version, len(bag.Functions), len(bag.Classes), len(bag.Files))
	}
	return nil
}

// resolveProvider picks the factbag.Provider for this invocation: a fixed
// fixture file, a sandboxed WASM plugin, or an error if neither is given
// (there is no native in-process parser — see internal/factbag's
// Provider interface).
func resolveProvider(ctx context.Context, fixture, parserPath string) (factbag.Provider, func(), error) {
	switch {
	case fixture != "" && parserPath != "":
		return nil, nil, apperrors.New(apperrors.KindValidation, "--fixture and --parser are mutually exclusive")
	case fixture != "":
		data, err := os.ReadFile(fixture)
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.KindValidation, "reading fixture "+fixture, err)
		}
		var bag factbag.FactBag
		if err := msgpack.Unmarshal(data, &bag); err != nil {
			return nil, nil, apperrors.Wrap(apperrors.KindValidation, "decoding fixture "+fixture, err)
		}
		return factbag.StaticProvider{Bag: &bag}, nil, nil
	case parserPath != "":
		wasmBytes, err := os.ReadFile(parserPath)
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.KindValidation, "reading parser plugin "+parserPath, err)
		}
		host, err := wasm.NewHost(ctx, wasmBytes)
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.KindProcessing, "loading parser plugin "+parserPath, err)
		}
		return host, func() { _ = host.Close(ctx) }, nil
	default:
		return nil, nil, apperrors.New(apperrors.KindValidation, "one of --fixture or --parser is required").
			WithSuggestions("pass --fixture <path> with a msgpack-encoded factbag fixture", "pass --parser <path.wasm> with a compiled parser plugin")
	}
}
