// Package builder turns a parser fact bag into the quads the coordinator
// writes. See spec §4.3: stable additions are additive-only, canonical
// names are resolved by (module_path, simple_name) after sanitisation,
// visibility widens monotonically, and every quad batch is emitted in
// canonical (subject, predicate, object) order so dumps compare
// byte-exactly. Grounded on BeadsLog's internal/storage/sqlite/issues.go
// upsert-by-natural-key idiom (see DESIGN.md).
package builder

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/repolex/repolex/internal/factbag"
	"github.com/repolex/repolex/internal/model"
	"github.com/repolex/repolex/internal/quadstore"
	"github.com/repolex/repolex/internal/schema"
)

// Predicate IRIs. Spec §8 scenario S1 fixes woc:hasSignature,
// woc:implementsFunction, woc:canonicalName, and the `a woc:Function` type
// triple as normative; the remainder follow the same ontology's naming
// convention.
const (
	wocNS = "http://rdf.webofcode.org/woc/"

	rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	predFunction           = wocNS + "Function"
	predClass              = wocNS + "Class"
	predCanonicalName      = wocNS + "canonicalName"
	predModulePath         = wocNS + "modulePath"
	predVisibility         = wocNS + "visibility"
	predHasSignature       = wocNS + "hasSignature"
	predHasDocstring       = wocNS + "hasDocstring"
	predHasDecorator       = wocNS + "hasDecorator"
	predDefinedIn          = wocNS + "definedIn"
	predLineStart          = wocNS + "lineStart"
	predLineEnd            = wocNS + "lineEnd"
	predImplementsFunction = wocNS + "implementsFunction"
	predHasBase            = wocNS + "hasBase"
	predHasMember           = wocNS + "hasMember"

	filesNS = "http://repolex.org/ontology/files#"

	predFilePath     = filesNS + "path"
	predFileSize     = filesNS + "size"
	predFileKind     = filesNS + "kind"
	predFileCategory = filesNS + "category"
	predFileHash     = filesNS + "contentHash"
	predFilePreview  = filesNS + "preview"
	predDirPath      = filesNS + "path"

	gitNS = "http://repolex.org/ontology/git#"

	predCommitSHA     = gitNS + "sha"
	predCommitAuthor  = gitNS + "author"
	predCommitDate    = gitNS + "date"
	predCommitMessage = gitNS + "message"
	predDevEmail      = gitNS + "email"
	predDevName       = gitNS + "displayName"
	predRefHead       = gitNS + "head"

	metaNS = "http://repolex.org/ontology/meta#"

	predMetaParserVersion = metaNS + "parserVersion"
	predMetaProcessedAt   = metaNS + "processedAt"
	predMetaFunctionCount = metaNS + "functionCount"
	predMetaClassCount    = metaNS + "classCount"
	predMetaFileCount     = metaNS + "fileCount"
)

const (
	previewMaxBytes = 1 << 20 // 1 MiB; files at or above this are not previewed
	previewMaxRunes = 500
)

// Result is the set of version-scoped quad batches ready to hand to the
// coordinator, per spec §4.3's output contract.
type Result struct {
	StableAdditions      []quadstore.Quad // functions/stable: additive only
	ImplementationQuads  []quadstore.Quad // this version's functions/implementations contribution
	ClassQuads           []quadstore.Quad // folded into functions/stable
	FileQuads            []quadstore.Quad // files/<version>, full replacement
	GitCommitQuads       []quadstore.Quad // git/commits, additive
	GitDeveloperQuads    []quadstore.Quad // git/developers, additive
	GitTagQuads          []quadstore.Quad // git/tags, additive
	MetaQuads            []quadstore.Quad // meta/<version>, full replacement
}

// KnownStableFunction is a previously-seen stable function the builder
// must reconcile against for canonical-name resolution and visibility
// widening (spec §4.3).
type KnownStableFunction struct {
	CanonicalName string
	ModulePath    string
	Visibility    model.Visibility
}

// Build consumes one fact bag and produces the quad batches for its
// version. known is the set of stable functions already recorded for this
// repository (queried from functions/stable by the coordinator before
// calling Build); it is consulted but never mutated here — stable
// additions are computed and returned for the coordinator to insert.
func Build(repo model.Repository, bag *factbag.FactBag, known []KnownStableFunction) (Result, error) {
	seen := make(map[string]KnownStableFunction, len(known))
	for _, k := range known {
		seen[stableKey(k.ModulePath, k.CanonicalName)] = k
	}

	var res Result
	stableVisibility := make(map[string]model.Visibility)
	stableSeenThisBuild := make(map[string]bool)

	// Resolve overloads: group functions by (module_path, simple_name) and
	// pick the implementation with the earliest line in this version when
	// more than one definition maps to the same stable function (spec
	// §4.3's tie-break).
	byKey := make(map[string][]factbag.FunctionFact)
	order := make([]string, 0, len(bag.Functions))
	for _, fn := range bag.Functions {
		key := stableKey(fn.ModulePath, fn.SimpleName)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], fn)
	}

	for _, key := range order {
		defs := byKey[key]
		sort.Slice(defs, func(i, j int) bool { return defs[i].LineStart < defs[j].LineStart })
		chosen := defs[0]

		vis := visibilityOf(chosen.SimpleName)
		if existing, ok := seen[key]; ok {
			vis = widestVisibility(existing.Visibility, vis)
		} else if !stableSeenThisBuild[key] {
			stableIRI := schema.StableIRI(repo, chosen.SimpleName)
			res.StableAdditions = append(res.StableAdditions,
				quadstore.Quad{Subject: string(stableIRI), Predicate: rdfType, Object: quadstore.IRITerm(predFunction)},
				quadstore.Quad{Subject: string(stableIRI), Predicate: predCanonicalName, Object: quadstore.LiteralTerm(chosen.SimpleName)},
				quadstore.Quad{Subject: string(stableIRI), Predicate: predModulePath, Object: quadstore.LiteralTerm(chosen.ModulePath)},
			)
			stableSeenThisBuild[key] = true
		}
		stableVisibility[key] = vis

		implIRI := schema.ImplementationIRI(repo, chosen.SimpleName, bag.Version)
		stableIRI := schema.StableIRI(repo, chosen.SimpleName)
		res.ImplementationQuads = append(res.ImplementationQuads,
			quadstore.Quad{Subject: string(implIRI), Predicate: rdfType, Object: quadstore.IRITerm(predFunction)},
			quadstore.Quad{Subject: string(implIRI), Predicate: predImplementsFunction, Object: quadstore.IRITerm(string(stableIRI))},
			quadstore.Quad{Subject: string(implIRI), Predicate: predHasSignature, Object: quadstore.LiteralTerm(chosen.Signature)},
			quadstore.Quad{Subject: string(implIRI), Predicate: predDefinedIn, Object: quadstore.LiteralTerm(chosen.File)},
			quadstore.Quad{Subject: string(implIRI), Predicate: predLineStart, Object: quadstore.TypedLiteral(fmt.Sprint(chosen.LineStart), "http://www.w3.org/2001/XMLSchema#integer")},
			quadstore.Quad{Subject: string(implIRI), Predicate: predLineEnd, Object: quadstore.TypedLiteral(fmt.Sprint(chosen.LineEnd), "http://www.w3.org/2001/XMLSchema#integer")},
		)
		if chosen.Docstring != "" {
			res.ImplementationQuads = append(res.ImplementationQuads,
				quadstore.Quad{Subject: string(implIRI), Predicate: predHasDocstring, Object: quadstore.LiteralTerm(chosen.Docstring)})
		}
		for _, dec := range chosen.Decorators {
			res.ImplementationQuads = append(res.ImplementationQuads,
				quadstore.Quad{Subject: string(implIRI), Predicate: predHasDecorator, Object: quadstore.LiteralTerm(dec)})
		}
	}

	// Visibility quads belong to functions/stable and must reflect the
	// widest value seen across this build and the known set, including for
	// functions that were already present (no new identity quads, but the
	// visibility predicate may still need to widen).
	for key, vis := range stableVisibility {
		fn := byKey[key][0]
		stableIRI := schema.StableIRI(repo, fn.SimpleName)
		res.StableAdditions = append(res.StableAdditions,
			quadstore.Quad{Subject: string(stableIRI), Predicate: predVisibility, Object: quadstore.LiteralTerm(string(vis))})
	}

	for _, cls := range bag.Classes {
		classIRI := schema.ClassIRI(repo, cls.SimpleName)
		res.ClassQuads = append(res.ClassQuads,
			quadstore.Quad{Subject: string(classIRI), Predicate: rdfType, Object: quadstore.IRITerm(predClass)},
			quadstore.Quad{Subject: string(classIRI), Predicate: predCanonicalName, Object: quadstore.LiteralTerm(cls.SimpleName)},
			quadstore.Quad{Subject: string(classIRI), Predicate: predModulePath, Object: quadstore.LiteralTerm(cls.ModulePath)},
		)
		for _, base := range cls.Bases {
			res.ClassQuads = append(res.ClassQuads,
				quadstore.Quad{Subject: string(classIRI), Predicate: predHasBase, Object: quadstore.LiteralTerm(base)})
		}
		for _, member := range cls.Members {
			res.ClassQuads = append(res.ClassQuads,
				quadstore.Quad{Subject: string(classIRI), Predicate: predHasMember, Object: quadstore.LiteralTerm(member)})
		}
	}

	fileQuads, err := buildFileQuads(repo, bag)
	if err != nil {
		return Result{}, fmt.Errorf("build file quads: %w", err)
	}
	res.FileQuads = fileQuads

	res.GitCommitQuads = buildCommitQuads(repo, bag.Git)
	res.GitDeveloperQuads = buildDeveloperQuads(repo, bag.Git)
	res.GitTagQuads = buildTagQuads(repo, bag.Git)

	res.MetaQuads = buildMetaQuads(repo, bag)

	sortQuads(res.StableAdditions)
	sortQuads(res.ImplementationQuads)
	sortQuads(res.ClassQuads)
	sortQuads(res.FileQuads)
	sortQuads(res.GitCommitQuads)
	sortQuads(res.GitDeveloperQuads)
	sortQuads(res.GitTagQuads)
	sortQuads(res.MetaQuads)

	return res, nil
}

func stableKey(modulePath, simpleName string) string {
	return schema.Sanitise(modulePath) + "\x00" + schema.Sanitise(simpleName)
}

// visibilityOf applies spec §4.3's visibility policy: a single leading
// underscore (and not a dunder) means protected; everything else,
// including dunder names, is public.
func visibilityOf(simpleName string) model.Visibility {
	if strings.HasPrefix(simpleName, "__") && strings.HasSuffix(simpleName, "__") && len(simpleName) > 4 {
		return model.VisibilityPublic
	}
	if strings.HasPrefix(simpleName, "_") {
		return model.VisibilityProtected
	}
	return model.VisibilityPublic
}

// widestVisibility returns the most permissive of two visibility values;
// public is wider than protected.
func widestVisibility(a, b model.Visibility) model.Visibility {
	if a == model.VisibilityPublic || b == model.VisibilityPublic {
		return model.VisibilityPublic
	}
	return model.VisibilityProtected
}

func buildFileQuads(repo model.Repository, bag *factbag.FactBag) ([]quadstore.Quad, error) {
	var quads []quadstore.Quad
	for _, dir := range bag.Directories {
		dirIRI := schema.DirectoryIRI(repo, bag.Version, dir.Path)
		quads = append(quads,
			quadstore.Quad{Subject: string(dirIRI), Predicate: predDirPath, Object: quadstore.LiteralTerm(dir.Path)})
	}

	for _, f := range bag.Files {
		kind := classifyKind(f.Path)
		category := classifyCategory(f.Path, kind)

		fileIRI := schema.FileIRI(repo, bag.Version, f.Path)
		quads = append(quads,
			quadstore.Quad{Subject: string(fileIRI), Predicate: predFilePath, Object: quadstore.LiteralTerm(f.Path)},
			quadstore.Quad{Subject: string(fileIRI), Predicate: predFileSize, Object: quadstore.TypedLiteral(fmt.Sprint(f.Size), "http://www.w3.org/2001/XMLSchema#integer")},
			quadstore.Quad{Subject: string(fileIRI), Predicate: predFileKind, Object: quadstore.LiteralTerm(string(kind))},
			quadstore.Quad{Subject: string(fileIRI), Predicate: predFileCategory, Object: quadstore.LiteralTerm(string(category))},
		)

		hash, preview, err := hashAndPreview(bag.CheckoutPath, f.Path, f.Size)
		if err != nil {
			return nil, err
		}
		if hash != "" {
			quads = append(quads, quadstore.Quad{Subject: string(fileIRI), Predicate: predFileHash, Object: quadstore.LiteralTerm(hash)})
		}
		if preview != "" {
			quads = append(quads, quadstore.Quad{Subject: string(fileIRI), Predicate: predFilePreview, Object: quadstore.LiteralTerm(preview)})
		}
	}
	return quads, nil
}

// hashAndPreview reads the file at checkoutPath/path (skipped entirely
// when checkoutPath is empty, e.g. in tests driving the builder directly
// off a fact bag with no backing checkout) and returns its MD5 hash plus,
// for files under 1 MiB, a preview of the first 500 UTF-8 characters.
func hashAndPreview(checkoutPath, relPath string, size int64) (hash string, preview string, err error) {
	if checkoutPath == "" {
		return "", "", nil
	}
	full := filepath.Join(checkoutPath, relPath)
	f, err := os.Open(full)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", relPath, err)
	}
	defer f.Close()

	h := md5.New()
	var buf []byte
	if size < previewMaxBytes {
		buf = make([]byte, size)
		if _, err := io.ReadFull(io.TeeReader(f, h), buf); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return "", "", fmt.Errorf("read %s: %w", relPath, err)
		}
	} else {
		if _, err := io.Copy(h, f); err != nil {
			return "", "", fmt.Errorf("read %s: %w", relPath, err)
		}
	}
	hash = hex.EncodeToString(h.Sum(nil))

	if size >= previewMaxBytes || !utf8.Valid(buf) {
		return hash, "", nil
	}
	runes := []rune(string(buf))
	if len(runes) <= previewMaxRunes {
		return hash, string(runes), nil
	}
	return hash, string(runes[:previewMaxRunes]) + "…", nil
}

func buildCommitQuads(repo model.Repository, git factbag.GitFact) []quadstore.Quad {
	if git.CommitSHA == "" {
		return nil
	}
	commitIRI := schema.CommitIRI(repo, git.CommitSHA)
	devIRI := schema.DeveloperIRI(repo, git.AuthorEmail)
	return []quadstore.Quad{
		{Subject: string(commitIRI), Predicate: predCommitSHA, Object: quadstore.LiteralTerm(git.CommitSHA)},
		{Subject: string(commitIRI), Predicate: predCommitAuthor, Object: quadstore.IRITerm(string(devIRI))},
		{Subject: string(commitIRI), Predicate: predCommitDate, Object: quadstore.TypedLiteral(git.CommitDate.UTC().Format(time.RFC3339), "http://www.w3.org/2001/XMLSchema#dateTime")},
		{Subject: string(commitIRI), Predicate: predCommitMessage, Object: quadstore.LiteralTerm(git.CommitMessage)},
	}
}

func buildDeveloperQuads(repo model.Repository, git factbag.GitFact) []quadstore.Quad {
	if git.AuthorEmail == "" {
		return nil
	}
	devIRI := schema.DeveloperIRI(repo, git.AuthorEmail)
	return []quadstore.Quad{
		{Subject: string(devIRI), Predicate: predDevEmail, Object: quadstore.LiteralTerm(git.AuthorEmail)},
		{Subject: string(devIRI), Predicate: predDevName, Object: quadstore.LiteralTerm(git.AuthorName)},
	}
}

func buildTagQuads(repo model.Repository, git factbag.GitFact) []quadstore.Quad {
	if git.Tag == "" {
		return nil
	}
	tagIRI := schema.RefIRI(repo, model.RefKindTag, git.Tag)
	return []quadstore.Quad{
		{Subject: string(tagIRI), Predicate: predRefHead, Object: quadstore.LiteralTerm(git.CommitSHA)},
	}
}

func buildMetaQuads(repo model.Repository, bag *factbag.FactBag) []quadstore.Quad {
	metaIRI := fmt.Sprintf("meta:%s/%s/%s", schema.Sanitise(repo.Org), schema.Sanitise(repo.Repo), schema.Sanitise(bag.Version))
	return []quadstore.Quad{
		{Subject: metaIRI, Predicate: predMetaParserVersion, Object: quadstore.LiteralTerm(bag.ParserVersion)},
		{Subject: metaIRI, Predicate: predMetaFunctionCount, Object: quadstore.TypedLiteral(fmt.Sprint(len(bag.Functions)), "http://www.w3.org/2001/XMLSchema#integer")},
		{Subject: metaIRI, Predicate: predMetaClassCount, Object: quadstore.TypedLiteral(fmt.Sprint(len(bag.Classes)), "http://www.w3.org/2001/XMLSchema#integer")},
		{Subject: metaIRI, Predicate: predMetaFileCount, Object: quadstore.TypedLiteral(fmt.Sprint(len(bag.Files)), "http://www.w3.org/2001/XMLSchema#integer")},
	}
}

func sortQuads(quads []quadstore.Quad) {
	sort.Slice(quads, func(i, j int) bool { return quadstore.Less(quads[i], quads[j]) })
}
