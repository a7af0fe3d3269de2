package schema

import "github.com/repolex/repolex/internal/quadstore"

// BootstrapQuads returns the fixed set of rdfs:Class and rdfs:Property
// declarations for repolex's four bundled ontologies (woc, git, files,
// evolution). These describe the vocabulary internal/builder and
// internal/coordinator actually populate instance data with; they carry
// no instance facts of their own. The coordinator's graph-add(v) step 1
// ("ontology graphs are loaded once at process start") is satisfied by a
// caller writing these into OntologyWOC/OntologyGit/OntologyFiles/
// OntologyEvolution once, before any repository mutation — see
// cmd/repolex's root command PersistentPreRunE.
func BootstrapQuads() []quadstore.Quad {
	var quads []quadstore.Quad
	quads = append(quads, classDecl(string(OntologyWOC), wocClass("Function"))...)
	quads = append(quads, classDecl(string(OntologyWOC), wocClass("Class"))...)
	quads = append(quads, propertyDecls(string(OntologyWOC), wocClass("Function"),
		"canonicalName", "modulePath", "visibility", "hasSignature", "hasDocstring",
		"hasDecorator", "definedIn", "lineStart", "lineEnd", "implementsFunction",
	)...)
	quads = append(quads, propertyDecls(string(OntologyWOC), wocClass("Class"),
		"hasBase", "hasMember",
	)...)

	quads = append(quads, classDecl(string(OntologyGit), gitClass("Commit"))...)
	quads = append(quads, classDecl(string(OntologyGit), gitClass("Developer"))...)
	quads = append(quads, classDecl(string(OntologyGit), gitClass("Ref"))...)
	quads = append(quads, propertyDecls(string(OntologyGit), gitClass("Commit"),
		"sha", "author", "date", "message",
	)...)
	quads = append(quads, propertyDecls(string(OntologyGit), gitClass("Developer"), "email", "displayName")...)
	quads = append(quads, propertyDecls(string(OntologyGit), gitClass("Ref"), "head")...)

	quads = append(quads, classDecl(string(OntologyFiles), filesClass("File"))...)
	quads = append(quads, classDecl(string(OntologyFiles), filesClass("Directory"))...)
	quads = append(quads, propertyDecls(string(OntologyFiles), filesClass("File"),
		"path", "size", "kind", "category", "contentHash", "preview",
	)...)

	quads = append(quads, classDecl(string(OntologyEvolution), evolutionClass("Event"))...)
	quads = append(quads, propertyDecls(string(OntologyEvolution), evolutionClass("Event"),
		"kind", "affects", "fromVersion", "toVersion", "renamedTo",
	)...)
	return quads
}

func wocClass(name string) string       { return "http://rdf.webofcode.org/woc/" + name }
func gitClass(name string) string       { return "http://repolex.org/ontology/git#" + name }
func filesClass(name string) string     { return "http://repolex.org/ontology/files#" + name }
func evolutionClass(name string) string { return "http://repolex.org/ontology/evolution#" + name }

const (
	rdfsClass    = "http://www.w3.org/2000/01/rdf-schema#Class"
	rdfsProperty = "http://www.w3.org/2000/01/rdf-schema#Property"
	rdfsDomain   = "http://www.w3.org/2000/01/rdf-schema#domain"
	rdfType      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

func classDecl(graph, iri string) []quadstore.Quad {
	return []quadstore.Quad{
		{Subject: iri, Predicate: rdfType, Object: quadstore.IRITerm(rdfsClass), Graph: graph},
	}
}

func propertyDecls(graph, domainIRI string, names ...string) []quadstore.Quad {
	// Every property in a namespace shares that namespace's prefix, so the
	// domain class's IRI prefix (up to and including the separator) gives
	// us the property's own IRI directly.
	base := domainIRI[:len(domainIRI)-lastSegmentLen(domainIRI)]
	quads := make([]quadstore.Quad, 0, len(names)*2)
	for _, name := range names {
		propIRI := base + name
		quads = append(quads,
			quadstore.Quad{Subject: propIRI, Predicate: rdfType, Object: quadstore.IRITerm(rdfsProperty), Graph: graph},
			quadstore.Quad{Subject: propIRI, Predicate: rdfsDomain, Object: quadstore.IRITerm(domainIRI), Graph: graph},
		)
	}
	return quads
}

func lastSegmentLen(iri string) int {
	for i := len(iri) - 1; i >= 0; i-- {
		if iri[i] == '/' || iri[i] == '#' {
			return len(iri) - i - 1
		}
	}
	return len(iri)
}
