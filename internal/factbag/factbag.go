// Package factbag defines the contract between the (out-of-scope) parser
// collaborator and the graph builder: an in-memory, unordered bag of
// facts describing one checkout of one (org, repo, version). See spec
// §4.3 and §6.2.
package factbag

import "time"

// FunctionFact is one function definition observed in a checkout.
type FunctionFact struct {
	SimpleName string
	ModulePath string
	Signature  string
	Docstring  string
	Decorators []string
	File       string
	LineStart  int
	LineEnd    int
}

// ClassFact is one class definition observed in a checkout.
type ClassFact struct {
	SimpleName string
	ModulePath string
	Bases      []string
	Members    []string
	File       string
	LineStart  int
	LineEnd    int
}

// ImportFact is one import statement observed in a checkout. Imports are
// carried through the fact bag for downstream dependency-discovery
// collaborators (spec §1); the core itself does not read them.
type ImportFact struct {
	ModulePath string
	File       string
}

// FileFact is one file observed in a checkout, already classified by the
// parser collaborator's filesystem walk (the core reclassifies
// deterministically in internal/builder regardless, per spec §4.3 — this
// raw fact only needs to carry size and path; Kind/Category are derived,
// not trusted from the parser).
type FileFact struct {
	Path string
	Size int64
}

// DirectoryFact is one directory observed in a checkout.
type DirectoryFact struct {
	Path string
}

// GitFact carries the checkout's git metadata, mirroring the
// `.repolex/repo_metadata.json` sidecar of spec §6.1.
type GitFact struct {
	RemoteURL     string
	CurrentBranch string
	CommitSHA     string
	AuthorEmail   string
	AuthorName    string
	CommitDate    time.Time
	CommitMessage string
	Tag           string
}

// FactBag is the complete, unordered output of one parser run over one
// (org, repo, version) checkout.
type FactBag struct {
	Org        string
	Repo       string
	Version    string
	// CheckoutPath is the on-disk root the parser walked. The graph
	// builder joins it with each FileFact.Path to read file content for
	// hashing, preview extraction, and classification (spec §4.3) —
	// the parser only needs to report paths and sizes, not compute
	// per-file derived facts itself.
	CheckoutPath string
	Functions  []FunctionFact
	Classes    []ClassFact
	Imports    []ImportFact
	Files      []FileFact
	Directories []DirectoryFact
	Git        GitFact

	// ParserVersion identifies the parser collaborator build that
	// produced this bag, recorded verbatim into meta/<version> (spec
	// §3.2).
	ParserVersion string
}
