// Package differ computes ABC (added/removed/modified/renamed) events
// between two versions' implementation quads, and derives evolution
// statistics from the accumulated event log. See spec §4.6. The Change/
// addition-deletion vocabulary follows quadgit's pkg/quadstore diff types
// (see DESIGN.md), generalized from a raw quad-level diff to a
// function-level semantic diff.
package differ

import (
	"sort"
	"strings"
	"time"

	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
)

const (
	predImplementsFunction = "http://rdf.webofcode.org/woc/implementsFunction"
	predHasSignature       = "http://rdf.webofcode.org/woc/hasSignature"
	predDefinedIn          = "http://rdf.webofcode.org/woc/definedIn"
	predCanonicalName      = "http://rdf.webofcode.org/woc/canonicalName"
	predModulePath         = "http://rdf.webofcode.org/woc/modulePath"
)

// implSnapshot is one version's implementation facts, indexed by stable
// IRI for diffing.
type implSnapshot struct {
	stableIRI  string
	signature  string
	definedIn  string
	modulePath string
}

// Diff compares prevQuads (version prevVersion's functions/implementations
// contribution) against currQuads (version currVersion's) and returns the
// ABC events per spec §4.6. timestamp should be the target version's tag
// commit date; callers pass it in via events' Timestamp field after this
// call when it is not yet known at diff time — here it is left zero and
// filled by the caller, since the differ itself has no access to commit
// metadata.
func Diff(repo model.Repository, prevVersion, currVersion string, prevQuads, currQuads []quadstore.Quad) []model.ABCEvent {
	return DiffAt(repo, prevVersion, currVersion, prevQuads, currQuads, time.Time{})
}

// DiffAt is Diff with an explicit event timestamp (the target tag's
// commit date, per spec §4.6).
func DiffAt(repo model.Repository, prevVersion, currVersion string, prevQuads, currQuads []quadstore.Quad, timestamp time.Time) []model.ABCEvent {
	prev := snapshot(prevQuads, prevVersion)
	curr := snapshot(currQuads, currVersion)

	var removed, added []implSnapshot
	for iri, p := range prev {
		if _, ok := curr[iri]; !ok {
			removed = append(removed, p)
		}
	}
	for iri, cu := range curr {
		if _, ok := prev[iri]; !ok {
			added = append(added, cu)
		}
	}

	renames, removed, added := matchRenames(removed, added)

	events := make([]model.ABCEvent, 0, len(removed)+len(added)+len(renames))
	for _, r := range renames {
		events = append(events, model.ABCEvent{
			Kind:           model.ABCRenamed,
			StableFunction: stableFunctionOf(repo, r.from),
			RenamedToName:  canonicalNameFromIRI(r.to.stableIRI),
			FromVersion:    prevVersion,
			ToVersion:      currVersion,
			Timestamp:      timestamp,
		})
	}
	for _, r := range removed {
		events = append(events, model.ABCEvent{
			Kind:           model.ABCRemoved,
			StableFunction: stableFunctionOf(repo, r),
			FromVersion:    prevVersion,
			ToVersion:      currVersion,
			Timestamp:      timestamp,
		})
	}
	for _, a := range added {
		events = append(events, model.ABCEvent{
			Kind:           model.ABCAdded,
			StableFunction: stableFunctionOf(repo, a),
			FromVersion:    prevVersion,
			ToVersion:      currVersion,
			Timestamp:      timestamp,
		})
	}
	for iri, p := range prev {
		cu, ok := curr[iri]
		if !ok {
			continue
		}
		if p.signature != cu.signature || p.definedIn != cu.definedIn {
			events = append(events, model.ABCEvent{
				Kind:           model.ABCModified,
				StableFunction: stableFunctionOf(repo, cu),
				FromVersion:    prevVersion,
				ToVersion:      currVersion,
				Timestamp:      timestamp,
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Kind != events[j].Kind {
			return events[i].Kind < events[j].Kind
		}
		return events[i].StableFunction.CanonicalName < events[j].StableFunction.CanonicalName
	})
	return events
}

type rename struct {
	from implSnapshot
	to   implSnapshot
}

// matchRenames applies spec §4.6's renamed heuristic: a removed function
// and an added function in the same module whose signatures match exactly
// are merged into one renamed event, tie-broken by the lexicographically
// least new name when more than one candidate matches. Matched entries are
// removed from the returned removed/added slices.
func matchRenames(removed, added []implSnapshot) (renames []rename, remainingRemoved, remainingAdded []implSnapshot) {
	addedByModSig := make(map[string][]implSnapshot)
	for _, a := range added {
		key := a.modulePath + "\x00" + a.signature
		addedByModSig[key] = append(addedByModSig[key], a)
	}

	usedAdded := make(map[string]bool)
	for _, r := range removed {
		key := r.modulePath + "\x00" + r.signature
		candidates := addedByModSig[key]
		var best *implSnapshot
		for i := range candidates {
			c := candidates[i]
			if usedAdded[c.stableIRI] {
				continue
			}
			if best == nil || canonicalNameFromIRI(c.stableIRI) < canonicalNameFromIRI(best.stableIRI) {
				cc := c
				best = &cc
			}
		}
		if best != nil {
			usedAdded[best.stableIRI] = true
			renames = append(renames, rename{from: r, to: *best})
			continue
		}
		remainingRemoved = append(remainingRemoved, r)
	}
	for _, a := range added {
		if !usedAdded[a.stableIRI] {
			remainingAdded = append(remainingAdded, a)
		}
	}
	return renames, remainingRemoved, remainingAdded
}

func snapshot(quads []quadstore.Quad, version string) map[string]implSnapshot {
	byImpl := make(map[string]*implSnapshot)
	for _, q := range quads {
		impl, ok := byImpl[q.Subject]
		if !ok {
			impl = &implSnapshot{}
			byImpl[q.Subject] = impl
		}
		switch q.Predicate {
		case predImplementsFunction:
			impl.stableIRI = q.Object.Value
		case predHasSignature:
			impl.signature = q.Object.Value
		case predDefinedIn:
			impl.definedIn = q.Object.Value
		}
	}
	out := make(map[string]implSnapshot, len(byImpl))
	for _, impl := range byImpl {
		if impl.stableIRI == "" {
			continue
		}
		impl.modulePath = modulePathFromIRI(impl.stableIRI)
		out[impl.stableIRI] = *impl
	}
	return out
}

// canonicalNameFromIRI extracts the last path segment of a stable IRI
// ("function:org/repo/name" -> "name").
func canonicalNameFromIRI(stableIRI string) string {
	idx := strings.LastIndex(stableIRI, "/")
	if idx < 0 {
		return stableIRI
	}
	return stableIRI[idx+1:]
}

// modulePathFromIRI extracts the repo-relative portion preceding the
// canonical name, used only as the rename-matching key, not surfaced in
// any event.
func modulePathFromIRI(stableIRI string) string {
	idx := strings.LastIndex(stableIRI, "/")
	if idx < 0 {
		return ""
	}
	return stableIRI[:idx]
}

func stableFunctionOf(repo model.Repository, impl implSnapshot) model.StableFunction {
	return model.StableFunction{
		CanonicalName: canonicalNameFromIRI(impl.stableIRI),
		Repo:          repo,
	}
}

// Statistics derives per-stable-function evolution records from the
// accumulated ABC event log (spec §4.6): change_count, stability_score =
// 1/(1+change_count), and co_change pairs bucketed by to_version (two
// functions are co-changed when events naming both share a to_version).
func Statistics(events []model.ABCEvent) []model.EvolutionRecord {
	changeCounts := make(map[string]int)
	namesByKey := make(map[string]model.StableFunction)
	byBucket := make(map[string][]string)

	key := func(sf model.StableFunction) string { return sf.Repo.Slug() + "#" + sf.CanonicalName }

	for _, ev := range events {
		k := key(ev.StableFunction)
		changeCounts[k]++
		namesByKey[k] = ev.StableFunction
		byBucket[ev.ToVersion] = append(byBucket[ev.ToVersion], k)
	}

	coChange := make(map[string]map[string]bool)
	for _, keys := range byBucket {
		unique := dedupeStrings(keys)
		for _, a := range unique {
			for _, b := range unique {
				if a == b {
					continue
				}
				if coChange[a] == nil {
					coChange[a] = make(map[string]bool)
				}
				coChange[a][b] = true
			}
		}
	}

	records := make([]model.EvolutionRecord, 0, len(changeCounts))
	for k, count := range changeCounts {
		var neighbours []model.StableFunction
		for b := range coChange[k] {
			neighbours = append(neighbours, namesByKey[b])
		}
		sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].CanonicalName < neighbours[j].CanonicalName })
		records = append(records, model.EvolutionRecord{
			StableFunction: namesByKey[k],
			ChangeCount:    count,
			StabilityScore: 1.0 / float64(1+count),
			CoChange:       neighbours,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StableFunction.CanonicalName < records[j].StableFunction.CanonicalName
	})
	return records
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
