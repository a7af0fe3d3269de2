// Package main is the repolex CLI: one cobra command per verb, grounded
// on BeadsLog's cmd/bd convention (one file per command, a shared root
// command wiring global --json output and persistent setup/teardown).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/repolex/repolex/internal/config"
	"github.com/repolex/repolex/internal/coordinator"
	"github.com/repolex/repolex/internal/logging"
	"github.com/repolex/repolex/internal/quadstore"
	"github.com/repolex/repolex/internal/query"
	"github.com/repolex/repolex/internal/schema"
)

// jsonOutput mirrors bd's --json/BD_JSON convention: every command's
// human-readable table output has a machine-readable twin.
var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "repolex",
	Short:         "Semantic code graph engine",
	Long:          "repolex ingests source repositories into a versioned RDF graph and exposes a SPARQL query surface plus a compact semantic DNA export for LLM consumption.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if commandsNeedingNoStore[cmd.Name()] {
			return nil
		}
		return initApp(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if commandsNeedingNoStore[cmd.Name()] {
			return nil
		}
		closeApp()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", os.Getenv("REPOLEX_JSON") != "", "emit machine-readable JSON instead of a table")
	rootCmd.AddGroup(
		&cobra.Group{ID: "ingest", Title: "Ingestion:"},
		&cobra.Group{ID: "query", Title: "Query & export:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles every long-lived dependency a command needs. It is built
// once in PersistentPreRunE and torn down in PersistentPostRunE, the same
// lifecycle BeadsLog's daemon commands use for their client connection.
type app struct {
	store       quadstore.Client
	oxMgr       *quadstore.Manager
	coordinator *coordinator.Coordinator
	executor    *query.Executor
	cache       *query.ResultCache
	history     *config.History
	logger      *slog.Logger
	requestID   string
}

var appCtx *app

// commandsNeedingNoStore lists cobra command names that must not pay the
// cost of spawning Oxigraph and opening the sqlite caches (pure
// information commands).
var commandsNeedingNoStore = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

func initApp(ctx context.Context) error {
	if err := config.Initialize(); err != nil {
		return err
	}

	home, err := config.Home()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Dir:   filepath.Join(home, "logs"),
		Level: slog.LevelInfo,
	})
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	appCtx = &app{logger: logger, requestID: requestID}

	oxMgr := quadstore.NewManager(filepath.Join(home, "oxigraph"), fmt.Sprintf("127.0.0.1:%d", config.GetInt("oxigraph.port")))
	if bin := config.GetString("oxigraph.bin"); bin != "" {
		oxMgr.BinaryPath = bin
	}
	store, err := oxMgr.Start(ctx)
	if err != nil {
		return err
	}
	appCtx.store = store
	appCtx.oxMgr = oxMgr

	if err := bootstrapOntologies(ctx, store); err != nil {
		return err
	}

	cacheDB := filepath.Join(home, "oxigraph", "cache.db")
	cache, err := query.OpenPersistentResultCache(cacheDB, config.GetInt("cache.entries"))
	if err != nil {
		return err
	}
	appCtx.cache = cache

	history, err := config.OpenHistory(cacheDB)
	if err != nil {
		return err
	}
	appCtx.history = history

	executor := query.NewExecutor(store, cache)
	appCtx.executor = executor

	coord, err := coordinator.New(store, filepath.Join(home, "locks"), executor)
	if err != nil {
		return err
	}
	appCtx.coordinator = coord

	logger.Info("repolex session started", "request_id", requestID, "home", home)
	return nil
}

// bootstrapOntologies writes the bundled ontology declarations if they are
// not already present, so a fresh ~/.repolex data directory is queryable
// against woc:/git:/files:/evolution: predicates from the first ingest
// onward (coordinator §4.4 step 1).
func bootstrapOntologies(ctx context.Context, store quadstore.Client) error {
	byGraph := make(map[string][]quadstore.Quad)
	for _, q := range schema.BootstrapQuads() {
		byGraph[q.Graph] = append(byGraph[q.Graph], q)
	}
	for _, graph := range []schema.IRI{schema.OntologyWOC, schema.OntologyGit, schema.OntologyFiles, schema.OntologyEvolution} {
		existing, err := store.DumpGraph(ctx, string(graph))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		if err := store.InsertQuads(ctx, string(graph), byGraph[string(graph)]); err != nil {
			return err
		}
	}
	return nil
}

func closeApp() {
	if appCtx == nil {
		return
	}
	if appCtx.cache != nil {
		_ = appCtx.cache.Close()
	}
	if appCtx.history != nil {
		_ = appCtx.history.Close()
	}
	if appCtx.oxMgr != nil {
		_ = appCtx.oxMgr.Stop()
	}
}

// outputJSON marshals v with indentation and prints it to stdout,
// matching bd's outputJSON helper shape.
func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

