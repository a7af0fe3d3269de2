// Package dna implements the semantic-DNA compact binary export (spec
// §4.7): a deterministic MessagePack document summarizing one
// repository version's functions, modules, patterns, and module
// clusters for downstream (typically LLM) consumption.
package dna

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
	"github.com/repolex/repolex/internal/schema"
)

// FormatVersion is the semantic-DNA wire format version spec §4.7 fixes.
const FormatVersion = "1.0"

// Generator identifies this implementation in repo_info.
const Generator = "repolex"

const (
	predCanonicalName      = "http://rdf.webofcode.org/woc/canonicalName"
	predModulePath         = "http://rdf.webofcode.org/woc/modulePath"
	predVisibility         = "http://rdf.webofcode.org/woc/visibility"
	predHasSignature       = "http://rdf.webofcode.org/woc/hasSignature"
	predHasDocstring       = "http://rdf.webofcode.org/woc/hasDocstring"
	predDefinedIn          = "http://rdf.webofcode.org/woc/definedIn"
	predLineStart          = "http://rdf.webofcode.org/woc/lineStart"
	predLineEnd            = "http://rdf.webofcode.org/woc/lineEnd"
	predImplementsFunction = "http://rdf.webofcode.org/woc/implementsFunction"
)

// FunctionRecord is one function's semantic-DNA entry. Field names are
// short because they are the wire keys (spec §4.7: "short names are
// normative").
type FunctionRecord struct {
	ID  int      `msgpack:"id"`
	N   string   `msgpack:"n"`
	S   string   `msgpack:"s"`
	D   int      `msgpack:"d"` // index into StringTable; -1 when no docstring
	M   string   `msgpack:"m"`
	T   []string `msgpack:"t"`
	Loc []any    `msgpack:"loc"` // [file, start, end] or nil
}

// ModuleRecord is one module's export list.
type ModuleRecord struct {
	ID      int    `msgpack:"id"`
	Name    string `msgpack:"name"`
	Path    string `msgpack:"path"`
	Exports []int  `msgpack:"exports"`
}

// PatternRecord is one shared-signature-template pattern (SPEC_FULL.md
// §4.7 expansion).
type PatternRecord struct {
	Name             string   `msgpack:"name"`
	Template         string   `msgpack:"template"`
	Frequency        int      `msgpack:"frequency"`
	Context          []string `msgpack:"context"`
	RelatedFunctions []int    `msgpack:"related_functions"`
}

// ClusterRecord is one module-path-derived semantic cluster.
type ClusterRecord struct {
	Functions       []int    `msgpack:"functions"`
	CoreConcept     string   `msgpack:"core_concept"`
	TypicalWorkflow []string `msgpack:"typical_workflow"`
}

// RepoInfo is the document's repo_info block.
type RepoInfo struct {
	Name           string `msgpack:"name"`
	Version        string `msgpack:"version"`
	GeneratedAt    string `msgpack:"generated_at"`
	TotalFunctions int    `msgpack:"total_functions"`
}

// CompressionStats reports string_table deduplication effectiveness.
type CompressionStats struct {
	TotalStrings     int     `msgpack:"total_strings"`
	UniqueStrings    int     `msgpack:"unique_strings"`
	CompressionRatio float64 `msgpack:"compression_ratio"`
}

// Document is the top-level semantic-DNA export (spec §4.7).
type Document struct {
	FormatVersion    string                   `msgpack:"format_version"`
	Generator        string                   `msgpack:"generator"`
	RepoInfo         RepoInfo                 `msgpack:"repo_info"`
	Functions        []FunctionRecord         `msgpack:"functions"`
	Modules          []ModuleRecord           `msgpack:"modules"`
	Patterns         []PatternRecord          `msgpack:"patterns"`
	SemanticClusters map[string]ClusterRecord `msgpack:"semantic_clusters"`
	StringTable      []string                 `msgpack:"string_table"`
	CompressionStats CompressionStats         `msgpack:"compression_stats"`
}

// implInfo holds one function's per-version facts gathered from
// functions/stable and functions/implementations; it is the shared input
// to Encode's record builders (buildModules, buildPatterns,
// buildClusters in groups.go).
type implInfo struct {
	stableIRI  string
	name       string
	module     string
	visibility string
	signature  string
	docstring  string
	file       string
	lineStart  int
	lineEnd    int
	hasLines   bool
}

// EncodeOptions controls an Encode call.
type EncodeOptions struct {
	Repo   model.Repository
	Version string
	// IsCurrentRepo controls the filter policy (spec §4.7): false
	// (dependencies) excludes any function whose simple name starts
	// with "_"; true includes everything.
	IsCurrentRepo bool
	// Now overrides repo_info.generated_at for deterministic tests; the
	// zero value means "use time.Now()".
	Now time.Time
}

// Encode queries functions/stable and functions/implementations for
// opts.Repo, filters to opts.Version's implementations, and builds a
// deterministic Document. Grounded on BeadsLog's JSONL export pipeline
// (cmd/bd/sync_export.go: sort-then-serialize, filter ephemeral rows
// before emitting) generalized from "issues sorted by ID" to "functions
// sorted by name," and from JSONL lines to one MessagePack document.
func Encode(ctx context.Context, store quadstore.Client, opts EncodeOptions) (*Document, error) {
	stableQuads, err := store.DumpGraph(ctx, string(schema.FunctionsStableGraph(opts.Repo)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "dumping functions/stable for semantic DNA", err)
	}
	implQuads, err := store.DumpGraph(ctx, string(schema.FunctionsImplementationsGraph(opts.Repo)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "dumping functions/implementations for semantic DNA", err)
	}

	type stableInfo struct {
		name       string
		modulePath string
		visibility string
	}
	stableByIRI := make(map[string]*stableInfo)
	for _, q := range stableQuads {
		info, ok := stableByIRI[q.Subject]
		if !ok {
			info = &stableInfo{}
			stableByIRI[q.Subject] = info
		}
		switch q.Predicate {
		case predCanonicalName:
			info.name = q.Object.Value
		case predModulePath:
			info.modulePath = q.Object.Value
		case predVisibility:
			info.visibility = q.Object.Value
		}
	}

	byStable := make(map[string]*implInfo)
	for _, q := range implQuads {
		stableIRI, version, ok := splitImplementationIRI(q.Subject)
		if !ok || version != opts.Version {
			continue
		}
		info, ok := byStable[stableIRI]
		if !ok {
			base := stableByIRI[stableIRI]
			if base == nil {
				continue
			}
			info = &implInfo{stableIRI: stableIRI, name: base.name, module: base.modulePath, visibility: base.visibility}
			byStable[stableIRI] = info
		}
		switch q.Predicate {
		case predHasSignature:
			info.signature = q.Object.Value
		case predHasDocstring:
			info.docstring = q.Object.Value
		case predDefinedIn:
			info.file = q.Object.Value
		case predLineStart:
			if n, err := strconv.Atoi(q.Object.Value); err == nil {
				info.lineStart = n
				info.hasLines = true
			}
		case predLineEnd:
			if n, err := strconv.Atoi(q.Object.Value); err == nil {
				info.lineEnd = n
			}
		}
	}

	filtered := make([]*implInfo, 0, len(byStable))
	for _, info := range byStable {
		if !opts.IsCurrentRepo && strings.HasPrefix(info.name, "_") {
			continue
		}
		filtered = append(filtered, info)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].name < filtered[j].name })

	stringTable := newStringTable()
	functions := make([]FunctionRecord, len(filtered))
	idByStable := make(map[string]int, len(filtered))
	for i, info := range filtered {
		idByStable[info.stableIRI] = i

		docIdx := -1
		if info.docstring != "" {
			docIdx = stringTable.intern(info.docstring)
		}

		var loc []any
		if info.file != "" || info.hasLines {
			loc = []any{info.file, info.lineStart, info.lineEnd}
		}

		var tags []string
		if info.visibility != "" {
			tags = append(tags, info.visibility)
		}

		functions[i] = FunctionRecord{
			ID:  i,
			N:   info.name,
			S:   info.signature,
			D:   docIdx,
			M:   info.module,
			T:   tags,
			Loc: loc,
		}
	}

	modules := buildModules(filtered, idByStable)
	patterns := buildPatterns(filtered, idByStable)
	clusters := buildClusters(filtered, idByStable)

	generatedAt := opts.Now
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	doc := &Document{
		FormatVersion: FormatVersion,
		Generator:     Generator,
		RepoInfo: RepoInfo{
			Name:           opts.Repo.Slug(),
			Version:        opts.Version,
			GeneratedAt:    generatedAt.UTC().Format(time.RFC3339),
			TotalFunctions: len(functions),
		},
		Functions:        functions,
		Modules:          modules,
		Patterns:         patterns,
		SemanticClusters: clusters,
		StringTable:      stringTable.strings,
		CompressionStats: stringTable.stats(),
	}
	return doc, nil
}

// splitImplementationIRI splits "<stable>#<version>" into its two parts.
func splitImplementationIRI(iri string) (stable, version string, ok bool) {
	idx := strings.LastIndexByte(iri, '#')
	if idx < 0 {
		return "", "", false
	}
	return iri[:idx], iri[idx+1:], true
}

// Marshal produces the deterministic MessagePack bytes for doc (spec
// §4.7: "the byte stream is deterministic for a given input"). SortMapKeys
// is required here: semantic_clusters is a Go map, and without it two
// encodes of the same document could iterate its keys in different order.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(doc); err != nil {
		return nil, apperrors.Wrap(apperrors.KindExport, "encoding semantic DNA document", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes MessagePack bytes into a Document.
func Unmarshal(b []byte) (*Document, error) {
	var doc Document
	if err := msgpack.Unmarshal(b, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "decoding semantic DNA document", err)
	}
	return &doc, nil
}
