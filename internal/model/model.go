// Package model defines the language-agnostic entities repolex extracts
// from a source repository: repositories, releases, stable functions and
// their versioned implementations, classes, files, directories, git
// history, and the synthesized ABC/evolution records. See spec §3.1.
package model

import "time"

// Visibility is a stable-function attribute; see spec §4.3's visibility
// policy.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
)

// FileKind classifies a file by content, extension-first then
// MIME-fallback. See spec §4.3.
type FileKind string

const (
	FileKindSourceCode    FileKind = "source_code"
	FileKindDocumentation FileKind = "documentation"
	FileKindConfiguration FileKind = "configuration"
	FileKindData          FileKind = "data"
	FileKindImage         FileKind = "image"
	FileKindVideo         FileKind = "video"
	FileKindAudio         FileKind = "audio"
	FileKindArchive       FileKind = "archive"
	FileKindBinary        FileKind = "binary"
	FileKindText          FileKind = "text"
	FileKindApplication   FileKind = "application"
	FileKindUnknown       FileKind = "unknown"
)

// FileCategory further classifies a file by name/path heuristics.
type FileCategory string

const (
	CategoryReadme        FileCategory = "readme"
	CategoryLicense       FileCategory = "license"
	CategoryChangelog     FileCategory = "changelog"
	CategoryDependencies  FileCategory = "dependencies"
	CategoryProjectConfig FileCategory = "project_config"
	CategoryDocker        FileCategory = "docker"
	CategoryTest          FileCategory = "test"
	CategoryDocumentation FileCategory = "documentation"
	CategoryExamples      FileCategory = "examples"
	CategoryScripts       FileCategory = "scripts"
	CategoryConfiguration FileCategory = "configuration"
	CategoryGeneral       FileCategory = "general"
)

// LineRange is a 1-indexed, inclusive [start, end] line span.
type LineRange struct {
	Start int
	End   int
}

// Repository identifies a source repository by its org/repo pair.
type Repository struct {
	Org  string
	Repo string
}

// Slug returns the canonical "org/repo" identity string.
func (r Repository) Slug() string { return r.Org + "/" + r.Repo }

// Release is one tagged point in a repository's history.
type Release struct {
	Tag    string
	Commit string
	Date   time.Time
}

// StableFunction is the permanent, cross-version identity of a function.
// Stable functions are created on first sighting and never mutated except
// for Visibility, which may widen (see spec §4.3).
type StableFunction struct {
	CanonicalName string
	ModulePath    string
	Repo          Repository
	Visibility    Visibility
}

// Implementation is the version-scoped facts about one StableFunction in
// one release.
type Implementation struct {
	Stable    StableFunction
	Version   string
	Signature string
	Docstring string
	File      string
	Lines     LineRange
	Decorators []string
}

// Class is the permanent identity of a class definition.
type Class struct {
	CanonicalName string
	ModulePath    string
	Repo          Repository
	Bases         []string
	Members       []string
}

// File describes one file within one version's checkout.
type File struct {
	Path        string
	Size        int64
	Kind        FileKind
	Category    FileCategory
	LineCount   int
	ContentHash string // MD5, hex-lowercase
	Preview     string // first 500 UTF-8 chars, "…"-suffixed if truncated
}

// Directory describes one directory within one version's checkout.
type Directory struct {
	Path      string
	FileCount int
	DirCount  int
}

// Commit is one git commit in a repository's history.
type Commit struct {
	SHA       string
	Author    string // developer email, see Developer
	Timestamp time.Time
	Message   string
}

// Developer is a git committer identity, keyed by email within a repo.
type Developer struct {
	Email       string
	DisplayName string
}

// RefKind distinguishes a branch from a tag.
type RefKind string

const (
	RefKindBranch RefKind = "branch"
	RefKindTag    RefKind = "tag"
)

// Ref is a named, mutable pointer to a commit (branch or tag).
type Ref struct {
	Kind RefKind
	Name string
	Head string
}

// ABCEventKind enumerates the four kinds of inter-version change event.
type ABCEventKind string

const (
	ABCAdded    ABCEventKind = "added"
	ABCRemoved  ABCEventKind = "removed"
	ABCModified ABCEventKind = "modified"
	ABCRenamed  ABCEventKind = "renamed"
)

// ABCEvent is a single cross-version change record. Every ABCEvent names a
// stable IRI that must exist in functions/stable (invariant I3).
type ABCEvent struct {
	Kind            ABCEventKind
	StableFunction  StableFunction
	RenamedToName   string // only set when Kind == ABCRenamed
	FromVersion     string
	ToVersion       string
	Timestamp       time.Time
}

// EvolutionRecord is a derived, per-stable-function view computed on
// demand from the ABC event log.
type EvolutionRecord struct {
	StableFunction StableFunction
	ChangeCount    int
	StabilityScore float64
	CoChange       []StableFunction
}
