package query

import (
	"context"
	"fmt"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
)

// Executor is the read-only SPARQL surface: safety-checks a query, then
// delegates to the underlying store, with results served from (and
// written back to) a capped LRU cache invalidated on every coordinator
// write (spec §4.5, §5). It also exposes natural-language function
// search over the same store.
type Executor struct {
	store    quadstore.Client
	cache    *ResultCache
	searcher *Searcher
}

// NewExecutor wires a quadstore.Client with cache, or with a fresh, empty
// in-memory result cache when cache is nil.
func NewExecutor(store quadstore.Client, cache *ResultCache) *Executor {
	if cache == nil {
		cache = NewResultCache(DefaultCacheCapacity)
	}
	return &Executor{store: store, cache: cache, searcher: NewSearcher(store)}
}

// Search runs a natural-language function search (spec §4.5) against the
// same store the executor queries.
func (e *Executor) Search(ctx context.Context, queryText string, opts SearchOptions) ([]SearchResult, error) {
	return e.searcher.Search(ctx, queryText, opts)
}

// InvalidateRepo satisfies coordinator.CacheInvalidator: every successful
// mutating coordinator call drops this repository's cached query results,
// since any of them could now be stale.
func (e *Executor) InvalidateRepo(repo model.Repository) {
	e.cache.InvalidatePrefix(repo.Slug() + "\x00")
}

// InvalidateAll satisfies coordinator.CacheInvalidator's full-wipe hook:
// Nuke deletes every repository's graphs, so every cached result is
// potentially stale.
func (e *Executor) InvalidateAll() {
	e.cache.InvalidatePrefix("")
}

// Query runs sparql after the spec §4.5 safety check, consulting the
// result cache first when the query is a pure SELECT/ASK read (CONSTRUCT/
// DESCRIBE results are not cached, since they are rarely repeated
// verbatim and are larger to retain).
func (e *Executor) Query(ctx context.Context, repo model.Repository, sparql string, opts quadstore.QueryOptions) (*quadstore.Result, error) {
	if err := CheckSafety(sparql); err != nil {
		return nil, err
	}

	cacheKey := repo.Slug() + "\x00" + sparql
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached, nil
	}

	result, err := e.store.Query(ctx, sparql, opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, fmt.Sprintf("executing query for %s", repo.Slug()), err)
	}

	if result.Kind == quadstore.ResultRows || result.Kind == quadstore.ResultBoolean {
		e.cache.Put(cacheKey, result)
	}
	return result, nil
}
