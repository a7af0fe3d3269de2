package differ

import (
	"testing"

	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
)

func implQuads(implIRI, stableIRI, signature, definedIn string) []quadstore.Quad {
	return []quadstore.Quad{
		{Subject: implIRI, Predicate: predImplementsFunction, Object: quadstore.IRITerm(stableIRI)},
		{Subject: implIRI, Predicate: predHasSignature, Object: quadstore.LiteralTerm(signature)},
		{Subject: implIRI, Predicate: predDefinedIn, Object: quadstore.IRITerm(definedIn)},
	}
}

func TestDiffDetectsAddedAndRemoved(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	prev := implQuads("impl:v0.1.0/foo", "function:acme/demo/foo", "foo(x: int) -> int", "file:a.py")
	curr := implQuads("impl:v0.2.0/bar", "function:acme/demo/bar", "bar() -> None", "file:b.py")

	events := Diff(repo, "v0.1.0", "v0.2.0", prev, curr)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}

	var kinds []model.ABCEventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	if kinds[0] != model.ABCAdded || kinds[1] != model.ABCRemoved {
		t.Fatalf("expected sorted [added removed], got %v", kinds)
	}
}

func TestDiffDetectsModified(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	prev := implQuads("impl:v0.1.0/foo", "function:acme/demo/foo", "foo(x: int) -> int", "file:a.py")
	curr := implQuads("impl:v0.2.0/foo", "function:acme/demo/foo", "foo(x: int, y: int) -> int", "file:a.py")

	events := Diff(repo, "v0.1.0", "v0.2.0", prev, curr)
	if len(events) != 1 || events[0].Kind != model.ABCModified {
		t.Fatalf("expected a single modified event, got %+v", events)
	}
	if events[0].StableFunction.CanonicalName != "foo" {
		t.Errorf("expected modified event to name foo, got %q", events[0].StableFunction.CanonicalName)
	}
}

func TestDiffUnchangedProducesNoEvents(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	quads := implQuads("impl:v0.1.0/foo", "function:acme/demo/foo", "foo(x: int) -> int", "file:a.py")

	events := Diff(repo, "v0.1.0", "v0.2.0", quads, quads)
	if len(events) != 0 {
		t.Fatalf("expected no events for an unchanged implementation, got %+v", events)
	}
}

func TestDiffMatchesRenameBySameModuleAndSignature(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	prev := implQuads("impl:v0.1.0/old", "function:acme/demo/a/old", "old() -> None", "a")
	curr := implQuads("impl:v0.2.0/new", "function:acme/demo/a/new", "old() -> None", "a")

	events := Diff(repo, "v0.1.0", "v0.2.0", prev, curr)
	if len(events) != 1 || events[0].Kind != model.ABCRenamed {
		t.Fatalf("expected a single renamed event, got %+v", events)
	}
	if events[0].StableFunction.CanonicalName != "old" {
		t.Errorf("expected renamed event to name the old function, got %q", events[0].StableFunction.CanonicalName)
	}
	if events[0].RenamedToName != "new" {
		t.Errorf("expected RenamedToName = new, got %q", events[0].RenamedToName)
	}
}

func TestDiffRenameTieBreaksOnLexicallyLeastName(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	prev := implQuads("impl:v0.1.0/old", "function:acme/demo/a/old", "old() -> None", "a")
	curr := append(
		implQuads("impl:v0.2.0/zzz", "function:acme/demo/a/zzz", "old() -> None", "a"),
		implQuads("impl:v0.2.0/aaa", "function:acme/demo/a/aaa", "old() -> None", "a")...,
	)

	events := Diff(repo, "v0.1.0", "v0.2.0", prev, curr)

	var renamed, added int
	var renamedTo string
	for _, e := range events {
		switch e.Kind {
		case model.ABCRenamed:
			renamed++
			renamedTo = e.RenamedToName
		case model.ABCAdded:
			added++
		}
	}
	if renamed != 1 {
		t.Fatalf("expected exactly one renamed event, got %d", renamed)
	}
	if renamedTo != "aaa" {
		t.Errorf("expected the lexicographically least candidate (aaa) to win, got %q", renamedTo)
	}
	if added != 1 {
		t.Errorf("expected the losing candidate to surface as an added event, got %d", added)
	}
}

func TestStatisticsComputesStabilityScore(t *testing.T) {
	sf := model.StableFunction{CanonicalName: "foo", Repo: model.Repository{Org: "acme", Repo: "demo"}}
	events := []model.ABCEvent{
		{Kind: model.ABCModified, StableFunction: sf, FromVersion: "v0.1.0", ToVersion: "v0.2.0"},
		{Kind: model.ABCModified, StableFunction: sf, FromVersion: "v0.2.0", ToVersion: "v0.3.0"},
	}

	records := Statistics(events)
	if len(records) != 1 {
		t.Fatalf("expected a single evolution record, got %d", len(records))
	}
	if records[0].ChangeCount != 2 {
		t.Errorf("expected change count 2, got %d", records[0].ChangeCount)
	}
	want := 1.0 / 3.0
	if records[0].StabilityScore != want {
		t.Errorf("expected stability score %f, got %f", want, records[0].StabilityScore)
	}
}

func TestStatisticsDerivesCoChangeFromSharedToVersion(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	foo := model.StableFunction{CanonicalName: "foo", Repo: repo}
	bar := model.StableFunction{CanonicalName: "bar", Repo: repo}
	events := []model.ABCEvent{
		{Kind: model.ABCModified, StableFunction: foo, ToVersion: "v0.2.0"},
		{Kind: model.ABCModified, StableFunction: bar, ToVersion: "v0.2.0"},
	}

	records := Statistics(events)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if len(r.CoChange) != 1 {
			t.Fatalf("expected %s to co-change with exactly one function, got %+v", r.StableFunction.CanonicalName, r.CoChange)
		}
	}
}
