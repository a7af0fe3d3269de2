// Package schema is the pure, stateless mapping from (org, repo, version)
// to the fixed set of named-graph IRIs repolex uses, plus the stable- and
// implementation-function IRI builders and the IRI sanitiser. See spec
// §4.2. Nothing in this package performs I/O; every function is a total,
// deterministic transform of its inputs.
package schema

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/repolex/repolex/internal/model"
)

// IRI is an opaque, already-sanitised IRI string. Constructing one outside
// this package (other than via a typed conversion from a value this
// package produced) is a programmer error: every path component composed
// into an IRI must have gone through Sanitise.
type IRI string

func (i IRI) String() string { return string(i) }

// BaseIRI is the root of every repolex-managed IRI.
const BaseIRI = "http://repolex.org"

// Ontology IRIs. Shared, process-global; loaded once, never rewritten.
const (
	OntologyWOC       IRI = BaseIRI + "/ontology/woc"
	OntologyGit       IRI = BaseIRI + "/ontology/git"
	OntologyEvolution IRI = BaseIRI + "/ontology/evolution"
	OntologyFiles     IRI = BaseIRI + "/ontology/files"
)

// Well-known SPARQL prefixes corresponding to the ontology IRIs above,
// exposed by default on the query surface (spec §6.3).
var WellKnownPrefixes = map[string]IRI{
	"woc":       OntologyWOC,
	"git":       OntologyGit,
	"evolution": OntologyEvolution,
	"files":     OntologyFiles,
}

// Sanitise maps an arbitrary string to a safe IRI path component per spec
// §4.2:
//  1. Replace each of []<>"'{}|\?#&%+= and whitespace with '_', except a
//     '%' that already starts an escape of the form step 2 emits ('%'
//     followed by two upper-case hex digits), which is kept as is.
//  2. Percent-encode any remaining characters outside A-Za-z0-9-_.~.
//  3. Emit empty input as "_".
//
// Sanitise is idempotent: Sanitise(Sanitise(s)) == Sanitise(s) for all s,
// which is exactly what invariant I6 and testable property 6 require.
func Sanitise(s string) string {
	if s == "" {
		return "_"
	}

	const toUnderscore = "[]<>\"'{}|\\?#&%+= \t\n\r\v\f"

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r == '%' && i+2 < len(s) && isUpperHex(s[i+1]) && isUpperHex(s[i+2]):
			b.WriteByte('%')
		case strings.ContainsRune(toUnderscore, r):
			b.WriteByte('_')
		case isUnreserved(r):
			b.WriteRune(r)
		default:
			b.WriteString(percentEncodeRune(r))
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	return out
}

func isUpperHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func isUnreserved(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == '~':
		return true
	default:
		return false
	}
}

func percentEncodeRune(r rune) string {
	// url.QueryEscape percent-encodes everything outside its own
	// unreserved set, which is a superset of ours; strip the '+' it uses
	// for spaces (spaces never reach here, they are replaced upstream)
	// and uppercase the hex digits to match RFC 3986 convention.
	escaped := url.QueryEscape(string(r))
	return strings.ToUpper(escapedHexOnly(escaped))
}

// escapedHexOnly upper-cases only the hex digits following a '%', leaving
// any literal characters url.QueryEscape left alone (it shouldn't leave
// any, given our caller only ever escapes characters outside the
// unreserved set, but this keeps the transform total and obviously safe).
func escapedHexOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			b.WriteByte('%')
			b.WriteByte(upperHex(s[i+1]))
			b.WriteByte(upperHex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func upperHex(c byte) byte {
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 'A'
	}
	return c
}

// RepoBase returns the per-repository IRI base, "/repo/<org>/<repo>".
func RepoBase(repo model.Repository) IRI {
	return IRI(fmt.Sprintf("%s/repo/%s/%s", BaseIRI, Sanitise(repo.Org), Sanitise(repo.Repo)))
}

// Per-repository graph names (no version in IRI). See spec §3.2.
const (
	graphFunctionsStable         = "functions/stable"
	graphFunctionsImplementations = "functions/implementations"
	graphGitCommits              = "git/commits"
	graphGitDevelopers            = "git/developers"
	graphGitBranches              = "git/branches"
	graphGitTags                  = "git/tags"
	graphABCEvents                 = "abc/events"
	graphEvolutionAnalysis          = "evolution/analysis"
	graphEvolutionStatistics        = "evolution/statistics"
	graphEvolutionPatterns           = "evolution/patterns"
)

func FunctionsStableGraph(repo model.Repository) IRI {
	return repoGraph(repo, graphFunctionsStable)
}

func FunctionsImplementationsGraph(repo model.Repository) IRI {
	return repoGraph(repo, graphFunctionsImplementations)
}

func GitCommitsGraph(repo model.Repository) IRI       { return repoGraph(repo, graphGitCommits) }
func GitDevelopersGraph(repo model.Repository) IRI    { return repoGraph(repo, graphGitDevelopers) }
func GitBranchesGraph(repo model.Repository) IRI      { return repoGraph(repo, graphGitBranches) }
func GitTagsGraph(repo model.Repository) IRI          { return repoGraph(repo, graphGitTags) }
func ABCEventsGraph(repo model.Repository) IRI        { return repoGraph(repo, graphABCEvents) }
func EvolutionAnalysisGraph(repo model.Repository) IRI    { return repoGraph(repo, graphEvolutionAnalysis) }
func EvolutionStatisticsGraph(repo model.Repository) IRI  { return repoGraph(repo, graphEvolutionStatistics) }
func EvolutionPatternsGraph(repo model.Repository) IRI    { return repoGraph(repo, graphEvolutionPatterns) }

// FilesGraph is the per-repository-per-version file/directory graph.
func FilesGraph(repo model.Repository, version string) IRI {
	return repoGraph(repo, "files/"+Sanitise(version))
}

// MetaGraph is the per-repository-per-version processing-metadata graph.
func MetaGraph(repo model.Repository, version string) IRI {
	return repoGraph(repo, "meta/"+Sanitise(version))
}

func repoGraph(repo model.Repository, suffix string) IRI {
	return IRI(fmt.Sprintf("%s/%s", RepoBase(repo), suffix))
}

// StableIRI builds the permanent stable-function identity IRI:
// "function:<org>/<repo>/<canonical-name>". It must never be deleted
// while any repository data for that repo exists (invariant I1).
func StableIRI(repo model.Repository, canonicalName string) IRI {
	return functionBase(repo, canonicalName)
}

// ImplementationIRI builds the versioned extension of a stable IRI:
// "<stable-IRI>#<version>". The "#<version>" suffix is the sole
// discriminator between a stable IRI and an implementation IRI — both are
// built from the same functionBase, so nothing else may distinguish them
// (spec §9, resolved open question).
func ImplementationIRI(repo model.Repository, canonicalName, version string) IRI {
	return IRI(fmt.Sprintf("%s#%s", functionBase(repo, canonicalName), Sanitise(version)))
}

func functionBase(repo model.Repository, canonicalName string) IRI {
	return IRI(fmt.Sprintf("function:%s/%s/%s", Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(canonicalName)))
}

// ClassIRI builds the permanent identity IRI for a class.
func ClassIRI(repo model.Repository, canonicalName string) IRI {
	return IRI(fmt.Sprintf("class:%s/%s/%s", Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(canonicalName)))
}

// FileIRI builds the IRI for a file within one version's checkout. File
// IRIs are versioned (invariant I4): they live only in files/<v> and are
// referenced only from meta/<v>, never from ABC/evolution graphs.
func FileIRI(repo model.Repository, version, path string) IRI {
	return IRI(fmt.Sprintf("file:%s/%s/%s/%s", Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(version), Sanitise(path)))
}

// DirectoryIRI builds the IRI for a directory within one version's
// checkout.
func DirectoryIRI(repo model.Repository, version, path string) IRI {
	return IRI(fmt.Sprintf("dir:%s/%s/%s/%s", Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(version), Sanitise(path)))
}

// CommitIRI builds the IRI for a git commit, identified by SHA within the
// repo.
func CommitIRI(repo model.Repository, sha string) IRI {
	return IRI(fmt.Sprintf("commit:%s/%s/%s", Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(sha)))
}

// DeveloperIRI builds the IRI for a developer, identified by email within
// the repo.
func DeveloperIRI(repo model.Repository, email string) IRI {
	return IRI(fmt.Sprintf("developer:%s/%s/%s", Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(email)))
}

// RefIRI builds the IRI for a branch or tag, identified by name within the
// repo.
func RefIRI(repo model.Repository, kind model.RefKind, name string) IRI {
	return IRI(fmt.Sprintf("%s:%s/%s/%s", kind, Sanitise(repo.Org), Sanitise(repo.Repo), Sanitise(name)))
}

// GitHubBlobURL composes a GitHub permalink for a file range on demand.
// It is never stored in the quad store.
func GitHubBlobURL(remoteURL, ref, path string, lines model.LineRange) string {
	repoURL := strings.TrimSuffix(remoteURL, ".git")
	if lines.Start == 0 && lines.End == 0 {
		return fmt.Sprintf("%s/blob/%s/%s", repoURL, ref, path)
	}
	return fmt.Sprintf("%s/blob/%s/%s#L%d-L%d", repoURL, ref, path, lines.Start, lines.End)
}
