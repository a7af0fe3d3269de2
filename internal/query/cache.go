package query

import (
	"container/list"
	"database/sql"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/quadstore"

	// Registers the "sqlite3" database/sql driver, same pairing BeadsLog
	// uses throughout internal/storage/sqlite and internal/syncbranch.
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DefaultCacheCapacity is the 50-entry cap spec §5 puts on the search
// result cache.
const DefaultCacheCapacity = 50

// ResultCache is a capacity-bounded, least-recently-used cache of query
// results keyed by an opaque string (Executor uses "<repoSlug>\x00<sparql>").
// An in-process LRU index orders entries for eviction; a sqlite table
// mirrors the same rows so the cache survives a process restart, a durable
// cache shaped after BeadsLog's blocked_issues_cache
// (internal/storage/sqlite/dirty_helpers.go), keyed by query rather than
// by issue dependency edge. Invalidation deletes the matching sqlite rows
// with a single statement, outside any transaction.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	db       *sql.DB    // nil when running purely in-memory (tests)
}

type cacheEntry struct {
	key    string
	result *quadstore.Result
}

// NewResultCache builds an in-memory-only cache holding at most capacity
// entries, with no backing database. Used by tests and anywhere a
// throwaway cache is acceptable. A non-positive capacity disables
// caching: Get always misses and Put is a no-op.
func NewResultCache(capacity int) *ResultCache {
	return &ResultCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// OpenPersistentResultCache opens (creating if absent) a sqlite-backed
// cache at dbPath, loads its rows into the in-memory LRU index, and
// returns a cache that persists every Put/InvalidatePrefix to disk. Typical
// dbPath is "~/.repolex/oxigraph/cache.db" (SPEC_FULL.md §1.2).
func OpenPersistentResultCache(dbPath string, capacity int) (*ResultCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "opening result cache database", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS query_cache (
		key TEXT PRIMARY KEY,
		result BLOB NOT NULL,
		seq INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.KindStorage, "migrating result cache schema", err)
	}

	c := &ResultCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		db:       db,
	}
	if err := c.loadFromDB(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// loadFromDB replays persisted rows into the in-memory LRU, most-recently
// used (highest seq) first, so a restarted process resumes with the same
// eviction order it had before shutting down.
func (c *ResultCache) loadFromDB() error {
	rows, err := c.db.Query(`SELECT key, result FROM query_cache ORDER BY seq DESC`)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "loading result cache rows", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return apperrors.Wrap(apperrors.KindStorage, "scanning result cache row", err)
		}
		var result quadstore.Result
		if err := msgpack.Unmarshal(blob, &result); err != nil {
			continue // a corrupt row is dropped, not fatal
		}
		el := c.order.PushBack(&cacheEntry{key: key, result: &result})
		c.items[key] = el
	}
	return rows.Err()
}

// Close releases the backing database, if any.
func (c *ResultCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached result for key, if present, promoting it to
// most-recently-used.
func (c *ResultCache) Get(key string) (*quadstore.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	if c.db != nil {
		_, _ = c.db.Exec(`UPDATE query_cache SET seq = (SELECT COALESCE(MAX(seq), 0) + 1 FROM query_cache) WHERE key = ?`, key)
	}
	return el.Value.(*cacheEntry).result, true
}

// Put inserts or updates key's cached result, evicting the
// least-recently-used entry if the cache is over capacity.
func (c *ResultCache) Put(key string, result *quadstore.Result) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).result = result
		c.order.MoveToFront(el)
		c.persistPut(key, result)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, result: result})
	c.items[key] = el
	c.persistPut(key, result)

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evictedKey := oldest.Value.(*cacheEntry).key
		c.order.Remove(oldest)
		delete(c.items, evictedKey)
		c.persistDelete(evictedKey)
	}
}

// InvalidatePrefix drops every cached entry whose key begins with prefix.
// Executor calls this with "<repoSlug>\x00" on every successful
// coordinator write, so only that repo's entries match — the null byte
// boundary stops one slug's invalidation from bleeding into another slug
// that happens to share a textual prefix (e.g. "acme/demo" vs
// "acme/demo2").
func (c *ResultCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		entry := el.Value.(*cacheEntry)
		if strings.HasPrefix(entry.key, prefix) {
			c.order.Remove(el)
			delete(c.items, entry.key)
		}
	}
	if c.db != nil {
		if _, err := c.db.Exec(`DELETE FROM query_cache WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%"); err != nil {
			// The in-memory index is already authoritative for this
			// process; a failed persistence cleanup only risks a stale
			// row resurfacing after a restart, which a future
			// invalidation will clear.
		}
	}
}

// Len reports the current number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *ResultCache) persistPut(key string, result *quadstore.Result) {
	if c.db == nil {
		return
	}
	blob, err := msgpack.Marshal(result)
	if err != nil {
		return
	}
	_, _ = c.db.Exec(`INSERT INTO query_cache (key, result, seq) VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM query_cache))
		ON CONFLICT(key) DO UPDATE SET result = excluded.result, seq = excluded.seq`, key, blob)
}

func (c *ResultCache) persistDelete(key string) {
	if c.db == nil {
		return
	}
	_, _ = c.db.Exec(`DELETE FROM query_cache WHERE key = ?`, key)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

