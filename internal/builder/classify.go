package builder

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/repolex/repolex/internal/model"
)

var extensionKinds = map[string]model.FileKind{
	".go": model.FileKindSourceCode, ".py": model.FileKindSourceCode, ".js": model.FileKindSourceCode,
	".ts": model.FileKindSourceCode, ".jsx": model.FileKindSourceCode, ".tsx": model.FileKindSourceCode,
	".rs": model.FileKindSourceCode, ".java": model.FileKindSourceCode, ".c": model.FileKindSourceCode,
	".h": model.FileKindSourceCode, ".cpp": model.FileKindSourceCode, ".hpp": model.FileKindSourceCode,
	".rb": model.FileKindSourceCode, ".php": model.FileKindSourceCode, ".cs": model.FileKindSourceCode,
	".sh": model.FileKindSourceCode,

	".md": model.FileKindDocumentation, ".rst": model.FileKindDocumentation, ".txt": model.FileKindText,
	".adoc": model.FileKindDocumentation,

	".yaml": model.FileKindConfiguration, ".yml": model.FileKindConfiguration, ".toml": model.FileKindConfiguration,
	".ini": model.FileKindConfiguration, ".cfg": model.FileKindConfiguration, ".conf": model.FileKindConfiguration,
	".json": model.FileKindData, ".xml": model.FileKindData, ".csv": model.FileKindData,

	".png": model.FileKindImage, ".jpg": model.FileKindImage, ".jpeg": model.FileKindImage, ".gif": model.FileKindImage,
	".svg": model.FileKindImage, ".webp": model.FileKindImage,

	".mp4": model.FileKindVideo, ".mov": model.FileKindVideo, ".webm": model.FileKindVideo,

	".mp3": model.FileKindAudio, ".wav": model.FileKindAudio, ".flac": model.FileKindAudio,

	".zip": model.FileKindArchive, ".tar": model.FileKindArchive, ".gz": model.FileKindArchive, ".tgz": model.FileKindArchive,

	".exe": model.FileKindBinary, ".dll": model.FileKindBinary, ".so": model.FileKindBinary, ".dylib": model.FileKindBinary,

	".pdf": model.FileKindApplication,

	// Kept out of the MIME fallback: host MIME tables may map .mod (as in
	// go.mod) to tracker-module audio.
	".mod": model.FileKindUnknown,
}

// classifyKind classifies path into a FileKind, extension-first then
// MIME-type fallback, per spec §4.3.
func classifyKind(path string) model.FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		switch {
		case strings.HasPrefix(mt, "text/"):
			return model.FileKindText
		case strings.HasPrefix(mt, "image/"):
			return model.FileKindImage
		case strings.HasPrefix(mt, "video/"):
			return model.FileKindVideo
		case strings.HasPrefix(mt, "audio/"):
			return model.FileKindAudio
		case strings.HasPrefix(mt, "application/"):
			return model.FileKindApplication
		}
	}
	return model.FileKindUnknown
}

// categoryExactRules maps a lowercase basename (exact match) to a category.
var categoryExactRules = map[string]model.FileCategory{
	"readme.md": model.CategoryReadme, "readme": model.CategoryReadme, "readme.rst": model.CategoryReadme,
	"readme.txt": model.CategoryReadme,
	"license": model.CategoryLicense, "license.md": model.CategoryLicense, "license.txt": model.CategoryLicense,
	"licence": model.CategoryLicense,
	"changelog.md": model.CategoryChangelog, "changelog": model.CategoryChangelog, "changelog.rst": model.CategoryChangelog,
	"history.md": model.CategoryChangelog,
	"go.mod": model.CategoryDependencies, "go.sum": model.CategoryDependencies,
	"package.json": model.CategoryDependencies, "package-lock.json": model.CategoryDependencies,
	"requirements.txt": model.CategoryDependencies, "pipfile": model.CategoryDependencies,
	"cargo.toml": model.CategoryDependencies, "cargo.lock": model.CategoryDependencies,
	"pyproject.toml": model.CategoryProjectConfig, "setup.py": model.CategoryProjectConfig,
	"makefile": model.CategoryScripts,
	"dockerfile": model.CategoryDocker, "docker-compose.yml": model.CategoryDocker,
	"docker-compose.yaml": model.CategoryDocker,
}

// classifyCategory classifies path into a FileCategory by name/path
// heuristics, per spec §4.3. Deterministic: exact-basename rules first,
// then path-substring rules, then a fallback by kind.
func classifyCategory(path string, kind model.FileKind) model.FileCategory {
	base := strings.ToLower(filepath.Base(path))
	if cat, ok := categoryExactRules[base]; ok {
		return cat
	}

	lowerPath := strings.ToLower(path)
	switch {
	case strings.Contains(lowerPath, "/docs/") || strings.HasPrefix(lowerPath, "docs/"):
		return model.CategoryDocumentation
	case strings.Contains(lowerPath, "/examples/") || strings.HasPrefix(lowerPath, "examples/"):
		return model.CategoryExamples
	case strings.Contains(lowerPath, "/scripts/") || strings.HasPrefix(lowerPath, "scripts/"):
		return model.CategoryScripts
	case strings.Contains(lowerPath, "_test.") || strings.Contains(lowerPath, ".test.") ||
		strings.Contains(lowerPath, "/test/") || strings.Contains(lowerPath, "/tests/"):
		return model.CategoryTest
	}

	switch kind {
	case model.FileKindConfiguration:
		return model.CategoryConfiguration
	case model.FileKindDocumentation:
		return model.CategoryDocumentation
	default:
		return model.CategoryGeneral
	}
}
