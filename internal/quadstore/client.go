package quadstore

import "context"

// ResultKind discriminates the shape of a query's result, mirroring
// SPARQL's four query forms (spec §4.1, §4.5).
type ResultKind string

const (
	ResultRows    ResultKind = "rows"    // SELECT
	ResultBoolean ResultKind = "boolean" // ASK
	ResultGraph   ResultKind = "graph"   // CONSTRUCT / DESCRIBE
)

// Row is one solution binding: variable name (without the leading '?') to
// bound term. A variable absent from a given row was unbound in that
// solution.
type Row map[string]Term

// Result is the tagged-variant result of a single query execution. Only
// the field matching Kind is populated. Truncated is set when the row cap
// (spec §4.5) cut off a SELECT result early.
type Result struct {
	Kind      ResultKind
	Rows      []Row
	Boolean   bool
	Quads     []Quad
	Truncated bool
}

// Stats summarizes one named graph's contents.
type Stats struct {
	QuadCount int64
	// ApproxBytes is an estimate, not an exact count: the Graph Store
	// Protocol exposes no per-graph byte accounting, so this is derived
	// client-side from an N-Triples serialization (OxigraphClient
	// serializes a sample of up to 1,000 quads and scales it to the quad
	// count; MemoryClient serializes the whole graph). See SPEC_FULL.md §4.1.
	ApproxBytes int64
}

// Client is the quad-store operations the rest of the core depends on.
// Concurrency contract: Query and Stats may run concurrently with
// anything; ReplaceGraph must be atomic with respect to concurrent
// readers — a reader observes either the pre- or post-state, never a mix
// (spec §5).
type Client interface {
	// InsertQuads bulk-inserts quads into graph, deduplicating against
	// existing contents.
	InsertQuads(ctx context.Context, graph string, quads []Quad) error

	// ReplaceGraph atomically replaces graph's entire contents with
	// quads: either the graph contains exactly quads after the call
	// returns successfully, or it is unchanged and an error is returned.
	ReplaceGraph(ctx context.Context, graph string, quads []Quad) error

	// DeleteGraph removes graph entirely. Deleting an already-absent
	// graph is not an error.
	DeleteGraph(ctx context.Context, graph string) error

	// Query executes a read-only SPARQL query and returns a
	// kind-discriminated Result.
	Query(ctx context.Context, sparql string, opts QueryOptions) (*Result, error)

	// IterGraphIRIs enumerates named graphs whose IRI begins with prefix.
	IterGraphIRIs(ctx context.Context, prefix string) ([]string, error)

	// DumpGraph returns every quad currently in graph. Used by the
	// coordinator to read back the pre-replace contents of
	// functions/implementations and abc/events when computing a partial
	// (subject-filtered) replacement, and to fetch the implementation
	// quads the differ compares.
	DumpGraph(ctx context.Context, graph string) ([]Quad, error)

	// Stats summarizes one graph's contents.
	Stats(ctx context.Context, graph string) (*Stats, error)
}

// QueryOptions bounds a single query execution (spec §4.5).
type QueryOptions struct {
	// TimeoutOverride is the maximum execution duration. Zero means "use the
	// configured default" (30s per spec).
	TimeoutOverride int64 // milliseconds; 0 = use default
	// RowCapOverride bounds SELECT result rows. Zero means "use the
	// configured default" (100,000 per spec).
	RowCapOverride int
}
