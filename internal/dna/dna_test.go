package dna

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
)

func seedDNARepo(t *testing.T, store *quadstore.MemoryClient, repo model.Repository) {
	t.Helper()
	ctx := context.Background()

	stableGraph := "http://repolex.org/repo/acme/demo/functions/stable"
	stableQuads := []quadstore.Quad{
		{Subject: "function:acme/demo/create_user", Predicate: predCanonicalName, Object: quadstore.LiteralTerm("create_user"), Graph: stableGraph},
		{Subject: "function:acme/demo/create_user", Predicate: predModulePath, Object: quadstore.LiteralTerm("users"), Graph: stableGraph},
		{Subject: "function:acme/demo/update_user", Predicate: predCanonicalName, Object: quadstore.LiteralTerm("update_user"), Graph: stableGraph},
		{Subject: "function:acme/demo/update_user", Predicate: predModulePath, Object: quadstore.LiteralTerm("users"), Graph: stableGraph},
		{Subject: "function:acme/demo/parse_xml", Predicate: predCanonicalName, Object: quadstore.LiteralTerm("parse_xml"), Graph: stableGraph},
		{Subject: "function:acme/demo/parse_xml", Predicate: predModulePath, Object: quadstore.LiteralTerm("xmlutil"), Graph: stableGraph},
		{Subject: "function:acme/demo/_internal_helper", Predicate: predCanonicalName, Object: quadstore.LiteralTerm("_internal_helper"), Graph: stableGraph},
		{Subject: "function:acme/demo/_internal_helper", Predicate: predModulePath, Object: quadstore.LiteralTerm("users"), Graph: stableGraph},
	}
	if err := store.ReplaceGraph(ctx, stableGraph, stableQuads); err != nil {
		t.Fatalf("ReplaceGraph stable: %v", err)
	}

	implGraph := "http://repolex.org/repo/acme/demo/functions/implementations"
	implQuads := []quadstore.Quad{
		{Subject: "function:acme/demo/create_user#v0.2.0", Predicate: predHasSignature, Object: quadstore.LiteralTerm("create_user(name, email) -> User")},
		{Subject: "function:acme/demo/create_user#v0.2.0", Predicate: predHasDocstring, Object: quadstore.LiteralTerm("creates a new user record")},
		{Subject: "function:acme/demo/create_user#v0.2.0", Predicate: predDefinedIn, Object: quadstore.LiteralTerm("src/users.py")},
		{Subject: "function:acme/demo/create_user#v0.2.0", Predicate: predLineStart, Object: quadstore.LiteralTerm("10")},
		{Subject: "function:acme/demo/create_user#v0.2.0", Predicate: predLineEnd, Object: quadstore.LiteralTerm("20")},

		{Subject: "function:acme/demo/update_user#v0.2.0", Predicate: predHasSignature, Object: quadstore.LiteralTerm("update_user(id, name) -> User")},
		{Subject: "function:acme/demo/update_user#v0.2.0", Predicate: predHasDocstring, Object: quadstore.LiteralTerm("creates a new user record")},
		{Subject: "function:acme/demo/update_user#v0.2.0", Predicate: predDefinedIn, Object: quadstore.LiteralTerm("src/users.py")},
		{Subject: "function:acme/demo/update_user#v0.2.0", Predicate: predLineStart, Object: quadstore.LiteralTerm("25")},
		{Subject: "function:acme/demo/update_user#v0.2.0", Predicate: predLineEnd, Object: quadstore.LiteralTerm("35")},

		{Subject: "function:acme/demo/parse_xml#v0.2.0", Predicate: predHasSignature, Object: quadstore.LiteralTerm("parse_xml(doc) -> Tree")},
		{Subject: "function:acme/demo/parse_xml#v0.2.0", Predicate: predDefinedIn, Object: quadstore.LiteralTerm("src/xmlutil.py")},
		{Subject: "function:acme/demo/parse_xml#v0.2.0", Predicate: predLineStart, Object: quadstore.LiteralTerm("1")},
		{Subject: "function:acme/demo/parse_xml#v0.2.0", Predicate: predLineEnd, Object: quadstore.LiteralTerm("8")},

		{Subject: "function:acme/demo/_internal_helper#v0.2.0", Predicate: predHasSignature, Object: quadstore.LiteralTerm("_internal_helper() -> None")},
		{Subject: "function:acme/demo/_internal_helper#v0.2.0", Predicate: predDefinedIn, Object: quadstore.LiteralTerm("src/users.py")},

		// a different version, must be excluded when filtering on v0.2.0.
		{Subject: "function:acme/demo/create_user#v0.1.0", Predicate: predHasSignature, Object: quadstore.LiteralTerm("create_user(name) -> User")},
	}
	for i := range implQuads {
		implQuads[i].Graph = implGraph
	}
	if err := store.ReplaceGraph(ctx, implGraph, implQuads); err != nil {
		t.Fatalf("ReplaceGraph impl: %v", err)
	}
}

// TestEncodeExcludesPrivateFunctionsWhenNotCurrentRepo is spec §8 scenario
// S4: exporting a dependency (is_current_repo=false) drops any function
// whose simple name begins with "_", and functions are sorted by name.
func TestEncodeExcludesPrivateFunctionsWhenNotCurrentRepo(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{
		Repo:          repo,
		Version:       "v0.2.0",
		IsCurrentRepo: false,
		Now:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(doc.Functions) != 3 {
		t.Fatalf("expected 3 functions (private helper excluded), got %d: %+v", len(doc.Functions), doc.Functions)
	}
	for _, fn := range doc.Functions {
		if fn.N == "_internal_helper" {
			t.Errorf("expected _internal_helper to be excluded when is_current_repo=false")
		}
	}

	names := make([]string, len(doc.Functions))
	for i, fn := range doc.Functions {
		names[i] = fn.N
	}
	want := []string{"create_user", "parse_xml", "update_user"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("expected alphabetical order %v, got %v", want, names)
			break
		}
	}
}

// TestEncodeIncludesPrivateFunctionsWhenCurrentRepo covers the opposite
// side of the same filter policy.
func TestEncodeIncludesPrivateFunctionsWhenCurrentRepo(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{
		Repo:          repo,
		Version:       "v0.2.0",
		IsCurrentRepo: true,
		Now:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(doc.Functions) != 4 {
		t.Fatalf("expected 4 functions including the private helper, got %d", len(doc.Functions))
	}
}

// TestEncodeDeduplicatesDocstringsInStringTable checks that two functions
// sharing an identical docstring intern to the same string_table index.
func TestEncodeDeduplicatesDocstringsInStringTable(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{Repo: repo, Version: "v0.2.0", IsCurrentRepo: false, Now: time.Now()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var createIdx, updateIdx int = -2, -2
	for _, fn := range doc.Functions {
		switch fn.N {
		case "create_user":
			createIdx = fn.D
		case "update_user":
			updateIdx = fn.D
		}
	}
	if createIdx == -2 || updateIdx == -2 {
		t.Fatalf("expected both create_user and update_user in the document")
	}
	if createIdx != updateIdx {
		t.Errorf("expected shared docstring to intern to the same index, got %d and %d", createIdx, updateIdx)
	}
	if createIdx < 0 || createIdx >= len(doc.StringTable) {
		t.Fatalf("docstring index %d out of range of string_table (len %d)", createIdx, len(doc.StringTable))
	}
	if doc.StringTable[createIdx] != "creates a new user record" {
		t.Errorf("expected interned docstring to match, got %q", doc.StringTable[createIdx])
	}
	if doc.CompressionStats.TotalStrings != 2 || doc.CompressionStats.UniqueStrings != 1 {
		t.Errorf("expected compression_stats {total:2, unique:1}, got %+v", doc.CompressionStats)
	}
}

// TestEncodeBuildsSharedSignaturePattern checks that create_user and
// update_user, sharing a (2 params) -> has-return-type template, are
// grouped into one pattern record, while parse_xml's single-parameter
// signature stays unpatterned (frequency 1 templates are dropped).
func TestEncodeBuildsSharedSignaturePattern(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{Repo: repo, Version: "v0.2.0", IsCurrentRepo: false, Now: time.Now()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(doc.Patterns) != 1 {
		t.Fatalf("expected exactly one shared pattern, got %d: %+v", len(doc.Patterns), doc.Patterns)
	}
	if doc.Patterns[0].Frequency != 2 {
		t.Errorf("expected frequency 2, got %d", doc.Patterns[0].Frequency)
	}
	if len(doc.Patterns[0].RelatedFunctions) != 2 {
		t.Errorf("expected 2 related functions, got %v", doc.Patterns[0].RelatedFunctions)
	}
}

// TestEncodeBuildsModuleAndClusterForEachModulePath checks the module and
// cluster group for the "users" module, which has two current-version
// functions (create_user, update_user) once _internal_helper is filtered
// out.
func TestEncodeBuildsModuleAndClusterForEachModulePath(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{Repo: repo, Version: "v0.2.0", IsCurrentRepo: false, Now: time.Now()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var usersModule *ModuleRecord
	for i := range doc.Modules {
		if doc.Modules[i].Path == "users" {
			usersModule = &doc.Modules[i]
		}
	}
	if usersModule == nil {
		t.Fatalf("expected a users module, got %+v", doc.Modules)
	}
	if usersModule.Name != "users" {
		t.Errorf("expected core_concept-style last-segment name %q, got %q", "users", usersModule.Name)
	}
	if len(usersModule.Exports) != 2 {
		t.Errorf("expected 2 exports in users module, got %v", usersModule.Exports)
	}

	cluster, ok := doc.SemanticClusters["users"]
	if !ok {
		t.Fatalf("expected a users cluster, got keys %v", clusterKeys(doc.SemanticClusters))
	}
	if cluster.CoreConcept != "users" {
		t.Errorf("expected core_concept %q, got %q", "users", cluster.CoreConcept)
	}
	if len(cluster.TypicalWorkflow) != 2 || cluster.TypicalWorkflow[0] != "create_user" || cluster.TypicalWorkflow[1] != "update_user" {
		t.Errorf("expected workflow ordered by line number [create_user update_user], got %v", cluster.TypicalWorkflow)
	}
}

func clusterKeys(m map[string]ClusterRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// TestMarshalUnmarshalRoundTripIsByteExact checks spec §4.7's determinism
// requirement: re-marshaling an unmarshaled document reproduces the exact
// same bytes.
func TestMarshalUnmarshalRoundTripIsByteExact(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{
		Repo:          repo,
		Version:       "v0.2.0",
		IsCurrentRepo: true,
		Now:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	first, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := Unmarshal(first)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	second, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("expected byte-exact round trip, got %d bytes then %d bytes", len(first), len(second))
	}
}

func TestEncodeReturnsEmptyDocumentForUnknownVersion(t *testing.T) {
	ctx := context.Background()
	store := quadstore.NewMemoryClient()
	repo := model.Repository{Org: "acme", Repo: "demo"}
	seedDNARepo(t, store, repo)

	doc, err := Encode(ctx, store, EncodeOptions{Repo: repo, Version: "v9.9.9", IsCurrentRepo: true, Now: time.Now()})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(doc.Functions) != 0 {
		t.Errorf("expected no functions for an unseen version, got %d", len(doc.Functions))
	}
	if doc.RepoInfo.TotalFunctions != 0 {
		t.Errorf("expected repo_info.total_functions 0, got %d", doc.RepoInfo.TotalFunctions)
	}
}
