package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
	"github.com/repolex/repolex/internal/schema"
)

// SearchOptions scopes and bounds a natural-language function search
// (spec §4.5).
type SearchOptions struct {
	Repo     model.Repository
	Version  string // functions/implementations version suffix filter; "" = all versions
	Category string // files/structure category filter; "" = no filter
	Limit    int    // 0 = DefaultSearchLimit
}

// DefaultSearchLimit bounds results when SearchOptions.Limit is unset.
const DefaultSearchLimit = 20

// minScore is the relevance floor spec §4.5 discards candidates below.
const minScore = 0.1

// SearchResult is one scored function match.
type SearchResult struct {
	StableIRI  string
	Name       string
	ModulePath string
	Signature  string
	Docstring  string
	File       string
	Score      float64
}

// intent is one of the six CRUD-plus-query classes a natural-language
// query and a function's own name/docstring are each projected onto
// before their intent vectors are compared (spec §4.5's "six intent
// classes" — the classes themselves are left to the implementation; this
// distillation uses the CRUD verbs explicit in the synonym table plus
// "list" and "validate", the two next-most-common verb shapes in
// function names, recorded as an Open Question decision in DESIGN.md).
type intent int

const (
	intentCreate intent = iota
	intentRead
	intentUpdate
	intentDelete
	intentList
	intentValidate
	numIntents
)

// synonymGroups maps every synonym to its canonical CRUD(+) verb. It is
// used only to build the intent vectors (of the query and of a
// candidate's own tokens) for the intent_match term; query tokens are not
// expanded with synonyms before the other terms are scored.
var synonymGroups = map[string]intent{
	"create": intentCreate, "make": intentCreate, "build": intentCreate,
	"new": intentCreate, "add": intentCreate, "generate": intentCreate,
	"construct": intentCreate,

	"read": intentRead, "get": intentRead, "fetch": intentRead,
	"retrieve": intentRead, "find": intentRead,

	"update": intentUpdate, "modify": intentUpdate, "change": intentUpdate,
	"edit": intentUpdate, "set": intentUpdate,

	"delete": intentDelete, "remove": intentDelete, "drop": intentDelete,
	"clear": intentDelete, "destroy": intentDelete,

	"list": intentList, "enumerate": intentList, "iterate": intentList,
	"all": intentList,

	"validate": intentValidate, "check": intentValidate, "verify": intentValidate,
	"ensure": intentValidate,
}

// technicalTerms is the fixed "technical nouns" table spec §4.5 names.
var technicalTerms = map[string]bool{
	"table": true, "image": true, "video": true, "file": true,
	"data": true, "json": true, "http": true, "ml": true,
}

// tokenize lowercases s and splits on runs of non-alphanumeric runes.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// intentVector sums a unit weight per token into its synonym group's
// slot, producing the "intent vector" spec §4.5's intent_match term
// takes the inner product of.
func intentVector(tokens []string) [numIntents]float64 {
	var v [numIntents]float64
	for _, tok := range tokens {
		if class, ok := synonymGroups[tok]; ok {
			v[class]++
		}
	}
	return v
}

func dotProduct(a, b [numIntents]float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	norm := func(v [numIntents]float64) float64 {
		var s float64
		for _, x := range v {
			s += x * x
		}
		if s == 0 {
			return 1
		}
		return s
	}
	denom := norm(a)
	if bn := norm(b); bn > denom {
		denom = bn
	}
	return sum / denom
}

// nameSimilarity is spec §4.5's name_similarity: the max of exact
// substring match, character-level LCS ratio, and partial-substring
// match.
func nameSimilarity(query, name string) float64 {
	q, n := strings.ToLower(query), strings.ToLower(name)
	best := 0.0
	if q != "" && strings.Contains(n, q) {
		best = 1.0
	}
	if lcs := lcsRatio(q, n); lcs > best {
		best = lcs
	}
	for _, kw := range tokenize(q) {
		if len(kw) >= 4 && strings.Contains(n, kw) && 0.8 > best {
			best = 0.8
		}
	}
	return best
}

// lcsRatio is the longest-common-subsequence length divided by the
// longer string's length.
func lcsRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return float64(prev[len(b)]) / float64(longest)
}

// docstringSimilarity is spec §4.5's docstring_similarity: a Jaccard
// score over tokenized text plus a small per-extra-matching-token bonus,
// capped at 0.5.
func docstringSimilarity(queryTokens []string, docstring string) float64 {
	if docstring == "" || len(queryTokens) == 0 {
		return 0
	}
	docTokens := tokenize(docstring)
	qSet := toSet(queryTokens)
	dSet := toSet(docTokens)

	intersection := 0
	for tok := range qSet {
		if dSet[tok] {
			intersection++
		}
	}
	union := len(qSet)
	for tok := range dSet {
		if !qSet[tok] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	jaccard := float64(intersection) / float64(union)
	bonus := 0.02 * float64(intersection)
	score := jaccard + bonus
	if score > 0.5 {
		score = 0.5
	}
	return score
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// technicalTermFraction is spec §4.5's technical_terms: the fraction of
// the query's technical tokens present in name+docstring.
func technicalTermFraction(queryTokens []string, haystack string) float64 {
	var queryTech []string
	for _, t := range queryTokens {
		if technicalTerms[t] {
			queryTech = append(queryTech, t)
		}
	}
	if len(queryTech) == 0 {
		return 0
	}
	haySet := toSet(tokenize(haystack))
	present := 0
	for _, t := range queryTech {
		if haySet[t] {
			present++
		}
	}
	return float64(present) / float64(len(queryTech))
}

// exactKeywordMatches counts query tokens (length >=3, to exclude noise
// words) that appear verbatim in name+docstring, feeding spec §4.5's
// bonus = min(0.2, 0.1 * exact_keyword_matches).
func exactKeywordMatches(queryTokens []string, haystack string) int {
	haySet := toSet(tokenize(haystack))
	count := 0
	for _, t := range queryTokens {
		if len(t) >= 3 && haySet[t] {
			count++
		}
	}
	return count
}

// score computes spec §4.5's weighted relevance formula for one
// candidate against a tokenized natural-language query.
func score(queryTokens []string, queryIntent [numIntents]float64, cand SearchResult) float64 {
	nameSim := nameSimilarity(strings.Join(queryTokens, " "), cand.Name)
	docSim := docstringSimilarity(queryTokens, cand.Docstring)

	candTokens := append(tokenize(cand.Name), tokenize(cand.Docstring)...)
	candIntent := intentVector(candTokens)
	intentMatch := dotProduct(queryIntent, candIntent)

	haystack := cand.Name + " " + cand.Docstring
	techTerms := technicalTermFraction(queryTokens, haystack)

	bonus := 0.1 * float64(exactKeywordMatches(queryTokens, haystack))
	if bonus > 0.2 {
		bonus = 0.2
	}

	return 0.40*nameSim + 0.30*docSim + 0.20*intentMatch + 0.10*techTerms + bonus
}

// Searcher runs natural-language function search compiled against the
// graph store's functions/{stable,implementations} (and, for category
// filtering, files/structure) graphs. Grounded on BeadsLog's
// HybridSearch shape (internal/queries/search.go): gather candidates from
// the store, score/annotate in Go, dedupe into a map keyed by identity,
// then sort into a final slice — generalized here from BM25 + entity
// boosting to the weighted multi-term formula spec §4.5 is normative
// about.
type Searcher struct {
	store quadstore.Client
}

// NewSearcher wires a Searcher against store.
func NewSearcher(store quadstore.Client) *Searcher {
	return &Searcher{store: store}
}

// Search tokenizes queryText (without synonym expansion), gathers
// candidates from opts.Repo's functions/{stable,implementations}
// graphs (optionally filtered to one version and one file category), and
// returns them scored and sorted descending by score, ties broken
// ascending by name. Candidates scoring below minScore are discarded.
func (s *Searcher) Search(ctx context.Context, queryText string, opts SearchOptions) ([]SearchResult, error) {
	queryTokens := tokenize(queryText)
	queryIntent := intentVector(queryTokens)

	candidates, err := s.candidates(ctx, opts)
	if err != nil {
		return nil, err
	}

	scored := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		sc := score(queryTokens, queryIntent, c)
		if sc < minScore {
			continue
		}
		c.Score = sc
		scored = append(scored, c)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// candidates joins functions/stable and functions/implementations
// client-side (the store's mini-SPARQL test double only supports a
// single-GRAPH basic graph pattern; the real Oxigraph-backed executor
// could join both graphs in one SPARQL query, but reading both whole
// graphs and joining in Go keeps the candidate-gathering path identical
// across both Client implementations), then applies the optional version
// and category filters.
func (s *Searcher) candidates(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	stableQuads, err := s.store.DumpGraph(ctx, string(schema.FunctionsStableGraph(opts.Repo)))
	if err != nil {
		return nil, fmt.Errorf("dumping functions/stable: %w", err)
	}
	implQuads, err := s.store.DumpGraph(ctx, string(schema.FunctionsImplementationsGraph(opts.Repo)))
	if err != nil {
		return nil, fmt.Errorf("dumping functions/implementations: %w", err)
	}

	stableByIRI := make(map[string]*SearchResult)
	for _, q := range stableQuads {
		r, ok := stableByIRI[q.Subject]
		if !ok {
			r = &SearchResult{StableIRI: q.Subject}
			stableByIRI[q.Subject] = r
		}
		switch q.Predicate {
		case "http://rdf.webofcode.org/woc/canonicalName":
			r.Name = q.Object.Value
		case "http://rdf.webofcode.org/woc/modulePath":
			r.ModulePath = q.Object.Value
		}
	}

	var categoryFiles map[string]bool
	if opts.Category != "" {
		categoryFiles, err = s.filesInCategory(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	byStable := make(map[string]*SearchResult)
	for _, q := range implQuads {
		stableIRI, version, ok := splitImplementationIRI(q.Subject)
		if !ok {
			continue
		}
		if opts.Version != "" && version != opts.Version {
			continue
		}
		base, ok := stableByIRI[stableIRI]
		if !ok {
			continue
		}
		r, ok := byStable[stableIRI]
		if !ok {
			r = &SearchResult{StableIRI: stableIRI, Name: base.Name, ModulePath: base.ModulePath}
			byStable[stableIRI] = r
		}
		switch q.Predicate {
		case "http://rdf.webofcode.org/woc/hasSignature":
			r.Signature = q.Object.Value
		case "http://rdf.webofcode.org/woc/hasDocstring":
			r.Docstring = q.Object.Value
		case "http://rdf.webofcode.org/woc/definedIn":
			r.File = q.Object.Value
		}
	}

	out := make([]SearchResult, 0, len(byStable))
	for _, r := range byStable {
		if categoryFiles != nil && !categoryFiles[r.File] {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// filesInCategory returns the set of file paths in opts.Repo's
// files/structure graph whose category matches opts.Category, scanning
// every version's files graph since search is not itself version-pinned
// unless opts.Version is also set.
func (s *Searcher) filesInCategory(ctx context.Context, opts SearchOptions) (map[string]bool, error) {
	prefix := string(schema.RepoBase(opts.Repo)) + "/files/"
	graphs, err := s.store.IterGraphIRIs(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing files graphs: %w", err)
	}
	files := make(map[string]bool)
	for _, g := range graphs {
		quads, err := s.store.DumpGraph(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("dumping %s: %w", g, err)
		}
		byPath := make(map[string]string)
		for _, q := range quads {
			if q.Predicate == "http://repolex.org/ontology/files#category" {
				byPath[q.Subject] = q.Object.Value
			}
		}
		for path, cat := range byPath {
			if cat == opts.Category {
				files[path] = true
			}
		}
	}
	return files, nil
}

// CompileSearchQuery renders the SPARQL SELECT spec §4.5 describes the
// search surface as compiling to: a join of functions/stable and
// functions/implementations scoped to opts.Repo, optionally filtered to
// one implementation version. It is the query a full SPARQL 1.1 engine
// (OxigraphClient) would execute directly; Searcher itself gathers
// candidates via DumpGraph instead (see candidates' doc comment) so the
// identical code path is exercised against both Client implementations,
// but this function is what a caller driving the store directly — or a
// future OxigraphClient-specific fast path — would send over the wire.
func CompileSearchQuery(opts SearchOptions) string {
	stable := string(schema.FunctionsStableGraph(opts.Repo))
	impl := string(schema.FunctionsImplementationsGraph(opts.Repo))

	var b strings.Builder
	b.WriteString("PREFIX woc: <http://rdf.webofcode.org/woc>\n")
	b.WriteString("SELECT ?name ?module ?signature ?docstring ?file WHERE {\n")
	fmt.Fprintf(&b, "  GRAPH <%s> { ?fn woc:canonicalName ?name ; woc:modulePath ?module }\n", stable)
	fmt.Fprintf(&b, "  GRAPH <%s> {\n", impl)
	b.WriteString("    ?impl woc:implementsFunction ?fn ; woc:hasSignature ?signature ; woc:definedIn ?file .\n")
	b.WriteString("    OPTIONAL { ?impl woc:hasDocstring ?docstring }\n")
	if opts.Version != "" {
		fmt.Fprintf(&b, "    FILTER(STRENDS(STR(?impl), \"#%s\"))\n", opts.Version)
	}
	b.WriteString("  }\n}")
	return b.String()
}

// splitImplementationIRI splits "<stable>#<version>" into its two parts.
func splitImplementationIRI(iri string) (stable, version string, ok bool) {
	idx := strings.LastIndexByte(iri, '#')
	if idx < 0 {
		return "", "", false
	}
	return iri[:idx], iri[idx+1:], true
}
