// Package coordinator drives the per-(org, repo) state machine: graph-add,
// graph-update (nuclear), graph-remove, and remove(force). See spec §4.4.
// Grounded on BeadsLog's cmd/bd/sync.go lock-then-multi-step-then-unlock
// shape (see DESIGN.md), generalized from "sync a local sqlite store
// against a remote branch" to "commit a version's quads across several
// named graphs with no compensating deletes on partial failure". Every
// mutating entry point accepts a ProgressFunc invoked at well-defined step
// boundaries, the synchronous redesign of the source's async
// ProgressCallback (see DESIGN.md).
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/mod/semver"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/builder"
	"github.com/repolex/repolex/internal/differ"
	"github.com/repolex/repolex/internal/factbag"
	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
	"github.com/repolex/repolex/internal/schema"
)

// CacheInvalidator is notified after every successful mutating operation so
// the query surface's 50-entry result cache (spec §4.5 / §5) can be
// invalidated. The coordinator has no cache of its own to invalidate.
type CacheInvalidator interface {
	InvalidateRepo(repo model.Repository)
	// InvalidateAll drops every cached result across every repository. Only
	// Nuke calls this; every other mutation only ever touches one repo.
	InvalidateAll()
}

// noopInvalidator is used when the caller has no cache wired up (e.g. in
// tests exercising the coordinator alone).
type noopInvalidator struct{}

func (noopInvalidator) InvalidateRepo(model.Repository) {}
func (noopInvalidator) InvalidateAll()                  {}

// ProgressFunc reports progress at the well-defined step boundaries of
// spec §4.4's graph-add(v)/graph-update(v)/graph-remove(v)/remove(force)/
// Nuke sequences. step is 1-based and total is the number of steps in the
// sequence being run, so a caller can render "step/total". Grounded on the
// source's models.py ProgressCallback = Callable[[int, str, Optional[int]],
// None], redesigned here as a plain synchronous callback invoked in-line
// with each step rather than fed through an async event queue — the
// coordinator has no concurrency to report around. A nil ProgressFunc is a
// valid no-op, matching the source's Optional[ProgressCallback] = None.
type ProgressFunc func(step, total int, message string)

// report invokes fn if non-nil, so call sites don't need a nil check.
func report(fn ProgressFunc, step, total int, message string) {
	if fn != nil {
		fn(step, total, message)
	}
}

// Coordinator orchestrates mutations to a repository's graphs, serializing
// concurrent writers to the same (org, repo) via an on-disk flock (spec
// §5) and enforcing the invariants of spec §3.4.
type Coordinator struct {
	store      quadstore.Client
	lockDir    string
	cache      CacheInvalidator
	locksByKey map[string]*flock.Flock
}

// lockRetryInterval is how often TryLockContext polls for the repository
// lock while waiting for a concurrent mutation to finish.
const lockRetryInterval = 50 * time.Millisecond

const (
	predCanonicalName = "http://rdf.webofcode.org/woc/canonicalName"
	predModulePath    = "http://rdf.webofcode.org/woc/modulePath"
	predVisibility    = "http://rdf.webofcode.org/woc/visibility"
)

// New builds a Coordinator, creating lockDir if it does not already exist.
// lockDir holds one flock file per (org, repo) ever mutated in this
// process.
func New(store quadstore.Client, lockDir string, cache CacheInvalidator) (*Coordinator, error) {
	if cache == nil {
		cache = noopInvalidator{}
	}
	if err := ensureLockDir(lockDir); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return &Coordinator{store: store, lockDir: lockDir, cache: cache, locksByKey: make(map[string]*flock.Flock)}, nil
}

func (c *Coordinator) lockFor(repo model.Repository) (*flock.Flock, error) {
	key := repo.Slug()
	if l, ok := c.locksByKey[key]; ok {
		return l, nil
	}
	path := filepath.Join(c.lockDir, schema.Sanitise(repo.Org)+"__"+schema.Sanitise(repo.Repo)+".lock")
	l := flock.New(path)
	c.locksByKey[key] = l
	return l, nil
}

// withRepoLock serializes fn against any other mutating call for the same
// repository across this process (and, since flock is a real OS file
// lock, across other processes sharing lockDir).
func (c *Coordinator) withRepoLock(ctx context.Context, repo model.Repository, fn func() error) error {
	l, err := c.lockFor(repo)
	if err != nil {
		return err
	}
	locked, err := l.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "acquiring repository lock", err)
	}
	if !locked {
		return apperrors.New(apperrors.KindStorage, fmt.Sprintf("repository %s is locked by another mutation", repo.Slug()))
	}
	defer func() { _ = l.Unlock() }()
	return fn()
}

// GraphAdd ingests one version's fact bag per spec §4.4's graph-add(v)
// sequence. prevVersion, when non-empty, names the version to diff against
// for ABC events (step 6); callers resolve it via Versions before calling.
// progress, if non-nil, is invoked at each of the six step boundaries.
func (c *Coordinator) GraphAdd(ctx context.Context, repo model.Repository, bag *factbag.FactBag, prevVersion string, progress ProgressFunc) error {
	return c.withRepoLock(ctx, repo, func() error {
		return c.graphAddLocked(ctx, repo, bag, prevVersion, false, progress)
	})
}

// GraphUpdate re-ingests a version already present, discarding its prior
// implementation, file, and meta facts (spec §4.4's graph-update(v)).
// progress, if non-nil, is invoked at each of the six step boundaries.
func (c *Coordinator) GraphUpdate(ctx context.Context, repo model.Repository, bag *factbag.FactBag, prevVersion string, progress ProgressFunc) error {
	return c.withRepoLock(ctx, repo, func() error {
		return c.graphAddLocked(ctx, repo, bag, prevVersion, true, progress)
	})
}

func (c *Coordinator) graphAddLocked(ctx context.Context, repo model.Repository, bag *factbag.FactBag, prevVersion string, isUpdate bool, progress ProgressFunc) error {
	const totalSteps = 6

	known, err := c.knownStableFunctions(ctx, repo)
	if err != nil {
		return fmt.Errorf("loading known stable functions: %w", err)
	}

	res, err := builder.Build(repo, bag, known)
	if err != nil {
		return fmt.Errorf("building quads: %w", err)
	}

	// Step 1 is implicit: ontology graphs are loaded once at process start
	// by the caller wiring the Coordinator (spec §4.4 step 1), not on every
	// mutation.
	report(progress, 1, totalSteps, "ontology graphs already loaded")

	// Step 2: stable additions are additive, deduplicating by construction.
	stableGraph := schema.FunctionsStableGraph(repo)
	if err := c.store.InsertQuads(ctx, string(stableGraph), append(res.StableAdditions, res.ClassQuads...)); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "inserting stable additions", err)
	}
	report(progress, 2, totalSteps, "inserted stable function and class facts")

	// Step 3: nuclear replace of functions/implementations, keeping every
	// other version's quads and replacing this version's (I2).
	implGraph := schema.FunctionsImplementationsGraph(repo)
	existingImpl, err := c.currentImplementationQuads(ctx, repo)
	if err != nil {
		return fmt.Errorf("reading existing implementations: %w", err)
	}
	merged := filterOutVersion(existingImpl, bag.Version)
	merged = append(merged, res.ImplementationQuads...)
	if err := c.store.ReplaceGraph(ctx, string(implGraph), merged); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "replacing implementations graph", err)
	}
	report(progress, 3, totalSteps, "replaced implementations graph")

	// Step 4: replace files/<v> and meta/<v> wholesale.
	if err := c.store.ReplaceGraph(ctx, string(schema.FilesGraph(repo, bag.Version)), res.FileQuads); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "replacing files graph", err)
	}
	if err := c.store.ReplaceGraph(ctx, string(schema.MetaGraph(repo, bag.Version)), res.MetaQuads); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "replacing meta graph", err)
	}
	report(progress, 4, totalSteps, "replaced files and metadata graphs")

	// Step 5: append git quads, deduplicating by IRI (InsertQuads already
	// dedups against existing contents).
	if err := c.store.InsertQuads(ctx, string(schema.GitCommitsGraph(repo)), res.GitCommitQuads); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "inserting commit quads", err)
	}
	if err := c.store.InsertQuads(ctx, string(schema.GitDevelopersGraph(repo)), res.GitDeveloperQuads); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "inserting developer quads", err)
	}
	if err := c.store.InsertQuads(ctx, string(schema.GitTagsGraph(repo)), res.GitTagQuads); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "inserting tag quads", err)
	}
	report(progress, 5, totalSteps, "appended git intelligence facts")

	// Step 6: ABC differ against the prior version, if any.
	if prevVersion != "" && !isUpdate {
		events, err := c.diffAgainstPrevious(ctx, repo, prevVersion, bag.Version, bag.Git.CommitDate)
		if err != nil {
			return fmt.Errorf("computing ABC events: %w", err)
		}
		if len(events) > 0 {
			if err := appendABCEvents(ctx, c.store, repo, events); err != nil {
				return apperrors.Wrap(apperrors.KindStorage, "appending ABC events", err)
			}
		}
	}
	report(progress, 6, totalSteps, "computed ABC evolution events")

	c.cache.InvalidateRepo(repo)
	return nil
}

// GraphRemove implements spec §4.4's graph-remove(v): strips v's
// implementation quads, deletes its files/meta graphs, and deletes ABC
// events naming v as either endpoint. progress, if non-nil, is invoked at
// each of this sequence's three step boundaries.
func (c *Coordinator) GraphRemove(ctx context.Context, repo model.Repository, version string, progress ProgressFunc) error {
	return c.withRepoLock(ctx, repo, func() error {
		const totalSteps = 3

		existingImpl, err := c.currentImplementationQuads(ctx, repo)
		if err != nil {
			return fmt.Errorf("reading existing implementations: %w", err)
		}
		remaining := filterOutVersion(existingImpl, version)
		implGraph := schema.FunctionsImplementationsGraph(repo)
		if err := c.store.ReplaceGraph(ctx, string(implGraph), remaining); err != nil {
			return apperrors.Wrap(apperrors.KindStorage, "replacing implementations graph", err)
		}
		report(progress, 1, totalSteps, "stripped implementation quads for "+version)

		if err := c.store.DeleteGraph(ctx, string(schema.FilesGraph(repo, version))); err != nil {
			return apperrors.Wrap(apperrors.KindStorage, "deleting files graph", err)
		}
		if err := c.store.DeleteGraph(ctx, string(schema.MetaGraph(repo, version))); err != nil {
			return apperrors.Wrap(apperrors.KindStorage, "deleting meta graph", err)
		}
		report(progress, 2, totalSteps, "deleted files and metadata graphs for "+version)

		if err := c.removeABCEventsForVersion(ctx, repo, version); err != nil {
			return fmt.Errorf("removing ABC events for %s: %w", version, err)
		}
		report(progress, 3, totalSteps, "removed ABC events naming "+version)

		c.cache.InvalidateRepo(repo)
		return nil
	})
}

// Remove implements spec §4.4's remove(force): deletes every graph under
// the repository's base, leaving shared ontologies untouched. progress, if
// non-nil, is invoked once per graph deleted, reporting the running count
// against the total number of graphs found.
func (c *Coordinator) Remove(ctx context.Context, repo model.Repository, progress ProgressFunc) error {
	return c.withRepoLock(ctx, repo, func() error {
		prefix := string(schema.RepoBase(repo)) + "/"
		iris, err := c.store.IterGraphIRIs(ctx, prefix)
		if err != nil {
			return apperrors.Wrap(apperrors.KindStorage, "enumerating repository graphs", err)
		}
		for i, iri := range iris {
			if err := c.store.DeleteGraph(ctx, iri); err != nil {
				return apperrors.Wrap(apperrors.KindStorage, fmt.Sprintf("deleting graph %s", iri), err)
			}
			report(progress, i+1, len(iris), "deleted graph "+iri)
		}
		c.cache.InvalidateRepo(repo)
		return nil
	})
}

// Nuke deletes every graph under the store's /repo/ prefix — every
// repository's entire graph set — leaving only the bundled ontology
// graphs untouched. It is not scoped to a single (org, repo), so it does
// not take a per-repo lock and does not wait for in-flight
// add/update/remove calls. progress, if non-nil, is invoked
// once per graph deleted, reporting the running count against the total.
func (c *Coordinator) Nuke(ctx context.Context, progress ProgressFunc) error {
	prefix := string(schema.BaseIRI) + "/repo/"
	iris, err := c.store.IterGraphIRIs(ctx, prefix)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "enumerating all repository graphs", err)
	}
	for i, iri := range iris {
		if err := c.store.DeleteGraph(ctx, iri); err != nil {
			return apperrors.Wrap(apperrors.KindStorage, fmt.Sprintf("deleting graph %s", iri), err)
		}
		report(progress, i+1, len(iris), "deleted graph "+iri)
	}
	c.cache.InvalidateAll()
	return nil
}

// Versions returns the repository's ingested version strings, sorted
// ascending by semver. It derives the set from meta/<v> graph IRIs rather
// than a separate index, since every ingested version always has one.
func (c *Coordinator) Versions(ctx context.Context, repo model.Repository) ([]string, error) {
	prefix := fmt.Sprintf("%s/meta/", schema.RepoBase(repo))
	iris, err := c.store.IterGraphIRIs(ctx, prefix)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "enumerating version graphs", err)
	}
	versions := make([]string, 0, len(iris))
	for _, iri := range iris {
		versions = append(versions, iri[len(prefix):])
	}
	sort.Slice(versions, func(i, j int) bool {
		return semver.Compare(normalizeSemver(versions[i]), normalizeSemver(versions[j])) < 0
	})
	return versions, nil
}

func normalizeSemver(v string) string {
	if len(v) == 0 || v[0] != 'v' {
		return "v" + v
	}
	return v
}

// knownStableFunctions dumps functions/stable directly rather than
// querying it, since the stable graph's per-subject predicates (type,
// canonicalName, modulePath, visibility) are cheap to group client-side
// and every one of them is always present for a function the builder
// emitted (spec §4.3) — no SPARQL OPTIONAL semantics are needed.
func (c *Coordinator) knownStableFunctions(ctx context.Context, repo model.Repository) ([]builder.KnownStableFunction, error) {
	quads, err := c.store.DumpGraph(ctx, string(schema.FunctionsStableGraph(repo)))
	if err != nil {
		return nil, err
	}

	byFunction := make(map[string]*builder.KnownStableFunction)
	for _, q := range quads {
		k, ok := byFunction[q.Subject]
		if !ok {
			k = &builder.KnownStableFunction{}
			byFunction[q.Subject] = k
		}
		switch q.Predicate {
		case predCanonicalName:
			k.CanonicalName = q.Object.Value
		case predModulePath:
			k.ModulePath = q.Object.Value
		case predVisibility:
			k.Visibility = model.Visibility(q.Object.Value)
		}
	}

	known := make([]builder.KnownStableFunction, 0, len(byFunction))
	for _, k := range byFunction {
		if k.CanonicalName == "" {
			continue // a class, not a function
		}
		if k.Visibility == "" {
			k.Visibility = model.VisibilityPublic
		}
		known = append(known, *k)
	}
	return known, nil
}

func (c *Coordinator) currentImplementationQuads(ctx context.Context, repo model.Repository) ([]quadstore.Quad, error) {
	return c.store.DumpGraph(ctx, string(schema.FunctionsImplementationsGraph(repo)))
}

// filterOutVersion drops every quad whose subject names version v (either
// a stable-suffixed implementation IRI "...#v" or, defensively, anything
// containing that exact version fragment), leaving every other version's
// quads untouched.
func filterOutVersion(quads []quadstore.Quad, version string) []quadstore.Quad {
	suffix := "#" + schema.Sanitise(version)
	out := make([]quadstore.Quad, 0, len(quads))
	for _, q := range quads {
		if hasVersionSuffix(q.Subject, suffix) {
			continue
		}
		out = append(out, q)
	}
	return out
}

func hasVersionSuffix(subject, suffix string) bool {
	if len(subject) < len(suffix) {
		return false
	}
	return subject[len(subject)-len(suffix):] == suffix
}

func (c *Coordinator) diffAgainstPrevious(ctx context.Context, repo model.Repository, prevVersion, currVersion string, timestamp time.Time) ([]model.ABCEvent, error) {
	prevQuads, err := c.implementationQuadsForVersion(ctx, repo, prevVersion)
	if err != nil {
		return nil, err
	}
	currQuads, err := c.implementationQuadsForVersion(ctx, repo, currVersion)
	if err != nil {
		return nil, err
	}
	return differ.DiffAt(repo, prevVersion, currVersion, prevQuads, currQuads, timestamp), nil
}

func (c *Coordinator) implementationQuadsForVersion(ctx context.Context, repo model.Repository, version string) ([]quadstore.Quad, error) {
	all, err := c.currentImplementationQuads(ctx, repo)
	if err != nil {
		return nil, err
	}
	suffix := "#" + schema.Sanitise(version)
	out := make([]quadstore.Quad, 0)
	for _, q := range all {
		if hasVersionSuffix(q.Subject, suffix) {
			out = append(out, q)
		}
	}
	return out, nil
}

func appendABCEvents(ctx context.Context, store quadstore.Client, repo model.Repository, events []model.ABCEvent) error {
	quads := make([]quadstore.Quad, 0, len(events)*4)
	for i, ev := range events {
		subj := fmt.Sprintf("abcevent:%s/%s/%d", schema.Sanitise(repo.Org), schema.Sanitise(repo.Repo), i)
		quads = append(quads,
			quadstore.Quad{Subject: subj, Predicate: "http://repolex.org/ontology/evolution#kind", Object: quadstore.LiteralTerm(string(ev.Kind))},
			quadstore.Quad{Subject: subj, Predicate: "http://repolex.org/ontology/evolution#affects", Object: quadstore.IRITerm(string(schema.StableIRI(repo, ev.StableFunction.CanonicalName)))},
			quadstore.Quad{Subject: subj, Predicate: "http://repolex.org/ontology/evolution#fromVersion", Object: quadstore.LiteralTerm(ev.FromVersion)},
			quadstore.Quad{Subject: subj, Predicate: "http://repolex.org/ontology/evolution#toVersion", Object: quadstore.LiteralTerm(ev.ToVersion)},
		)
		if ev.RenamedToName != "" {
			quads = append(quads, quadstore.Quad{Subject: subj, Predicate: "http://repolex.org/ontology/evolution#renamedTo", Object: quadstore.LiteralTerm(ev.RenamedToName)})
		}
	}
	return store.InsertQuads(ctx, string(schema.ABCEventsGraph(repo)), quads)
}

func (c *Coordinator) removeABCEventsForVersion(ctx context.Context, repo model.Repository, version string) error {
	graph := schema.ABCEventsGraph(repo)
	quads, err := c.store.DumpGraph(ctx, string(graph))
	if err != nil {
		return err
	}
	bySubject := make(map[string][]quadstore.Quad)
	for _, q := range quads {
		bySubject[q.Subject] = append(bySubject[q.Subject], q)
	}
	var keep []quadstore.Quad
	for _, eventQuads := range bySubject {
		if eventNamesVersion(eventQuads, version) {
			continue
		}
		keep = append(keep, eventQuads...)
	}
	return c.store.ReplaceGraph(ctx, string(graph), keep)
}

func eventNamesVersion(quads []quadstore.Quad, version string) bool {
	for _, q := range quads {
		if (q.Predicate == "http://repolex.org/ontology/evolution#fromVersion" || q.Predicate == "http://repolex.org/ontology/evolution#toVersion") && q.Object.Value == version {
			return true
		}
	}
	return false
}

// ensureLockDir creates the lock directory if absent, so New works against
// a fresh lock directory (e.g. first run against a new ~/.repolex/locks).
func ensureLockDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
