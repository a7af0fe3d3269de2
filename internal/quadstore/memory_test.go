package quadstore

import (
	"context"
	"testing"
)

func TestMemoryClientReplaceGraphIsAtomic(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	v1 := []Quad{{Subject: "s1", Predicate: "p", Object: LiteralTerm("v1"), Graph: "g"}}
	if err := c.ReplaceGraph(ctx, "g", v1); err != nil {
		t.Fatalf("ReplaceGraph: %v", err)
	}
	if got := c.GraphContents("g"); len(got) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(got))
	}

	v2 := []Quad{{Subject: "s2", Predicate: "p", Object: LiteralTerm("v2"), Graph: "g"}}
	if err := c.ReplaceGraph(ctx, "g", v2); err != nil {
		t.Fatalf("ReplaceGraph: %v", err)
	}
	got := c.GraphContents("g")
	if len(got) != 1 || got[0].Subject != "s2" {
		t.Fatalf("ReplaceGraph did not fully replace contents: %+v", got)
	}
}

func TestMemoryClientInsertQuadsDeduplicates(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	q := Quad{Subject: "s", Predicate: "p", Object: LiteralTerm("v"), Graph: "g"}
	if err := c.InsertQuads(ctx, "g", []Quad{q, q}); err != nil {
		t.Fatalf("InsertQuads: %v", err)
	}
	if err := c.InsertQuads(ctx, "g", []Quad{q}); err != nil {
		t.Fatalf("InsertQuads: %v", err)
	}
	if got := len(c.GraphContents("g")); got != 1 {
		t.Fatalf("expected dedup to 1 quad, got %d", got)
	}
}

func TestMemoryClientIterGraphIRIsPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	q := Quad{Subject: "s", Predicate: "p", Object: LiteralTerm("v")}
	_ = c.InsertQuads(ctx, "http://repolex.org/repo/acme/demo/functions/stable", []Quad{q})
	_ = c.InsertQuads(ctx, "http://repolex.org/repo/acme/other/functions/stable", []Quad{q})

	iris, err := c.IterGraphIRIs(ctx, "http://repolex.org/repo/acme/demo/")
	if err != nil {
		t.Fatalf("IterGraphIRIs: %v", err)
	}
	if len(iris) != 1 {
		t.Fatalf("expected 1 matching graph, got %v", iris)
	}
}

// S5 from spec §8: a SELECT over functions/stable filtered to one
// repository's graph, ordered by name.
func TestMemoryClientQueryS5(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	graph := "http://repolex.org/repo/acme/demo/functions/stable"
	quads := []Quad{
		{Subject: "function:acme/demo/foo", Predicate: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", Object: IRITerm("http://rdf.webofcode.org/woc/Function"), Graph: graph},
		{Subject: "function:acme/demo/foo", Predicate: "http://rdf.webofcode.org/woc/canonicalName", Object: LiteralTerm("foo"), Graph: graph},
	}
	if err := c.ReplaceGraph(ctx, graph, quads); err != nil {
		t.Fatalf("ReplaceGraph: %v", err)
	}

	query := `PREFIX woc: <http://rdf.webofcode.org/woc>
SELECT ?n WHERE { GRAPH <http://repolex.org/repo/acme/demo/functions/stable> { ?f a <http://rdf.webofcode.org/woc/Function> ; <http://rdf.webofcode.org/woc/canonicalName> ?n } } ORDER BY ?n`

	result, err := c.Query(ctx, query, QueryOptions{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected exactly 1 row, got %d: %+v", len(result.Rows), result.Rows)
	}
	if result.Rows[0]["n"].Value != "foo" {
		t.Fatalf("expected n=foo, got %+v", result.Rows[0])
	}
}
