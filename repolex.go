// Package repolex provides a minimal public API for embedding repolex's
// graph engine in another Go program, without shelling out to the
// `repolex` CLI.
//
// Most callers should use the CLI directly; this package exists for
// extensions that want to drive the coordinator, query executor, or
// semantic DNA encoder in-process.
package repolex

import (
	"context"

	"github.com/repolex/repolex/internal/coordinator"
	"github.com/repolex/repolex/internal/dna"
	"github.com/repolex/repolex/internal/factbag"
	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
	"github.com/repolex/repolex/internal/query"
	"github.com/repolex/repolex/internal/schema"
)

// Repository identifies a source repository by its org/repo pair.
type Repository = model.Repository

// Store is the quad-store operations the rest of the core depends on.
type Store = quadstore.Client

// Coordinator orchestrates mutations to a repository's graphs.
type Coordinator = coordinator.Coordinator

// Executor is the read-only SPARQL and natural-language search surface.
type Executor = query.Executor

// FactBag is the complete, unordered output of one parser run over one
// (org, repo, version) checkout.
type FactBag = factbag.FactBag

// Provider is the parser collaborator's interface.
type Provider = factbag.Provider

// SearchOptions scopes and bounds a natural-language function search.
type SearchOptions = query.SearchOptions

// SearchResult is one scored function match.
type SearchResult = query.SearchResult

// SemanticDNA is the deterministic semantic-DNA export document.
type SemanticDNA = dna.Document

// EncodeOptions controls a semantic DNA Export call.
type EncodeOptions = dna.EncodeOptions

// StartOxigraph spawns (or attaches to) a local Oxigraph server rooted at
// storeDir and listening on bindAddr, returning a ready Store.
func StartOxigraph(ctx context.Context, storeDir, bindAddr string) (Store, error) {
	return quadstore.NewManager(storeDir, bindAddr).Start(ctx)
}

// NewCoordinator builds a Coordinator serializing writes via flock files
// under lockDir. cache may be nil.
func NewCoordinator(store Store, lockDir string, cache coordinator.CacheInvalidator) (*Coordinator, error) {
	return coordinator.New(store, lockDir, cache)
}

// NewExecutor builds an Executor over store, with an optional result
// cache (nil uses an in-memory default).
func NewExecutor(store Store, cache *query.ResultCache) *Executor {
	return query.NewExecutor(store, cache)
}

// ExportSemanticDNA encodes repo's version as a deterministic
// MessagePack-ready Document.
func ExportSemanticDNA(ctx context.Context, store Store, opts EncodeOptions) (*SemanticDNA, error) {
	return dna.Encode(ctx, store, opts)
}

// MarshalSemanticDNA serializes a SemanticDNA document to its canonical
// MessagePack bytes.
func MarshalSemanticDNA(doc *SemanticDNA) ([]byte, error) {
	return dna.Marshal(doc)
}

// BaseIRI is the root of every repolex-managed IRI.
const BaseIRI = schema.BaseIRI
