// Package quadstore wraps an embedded RDF quad store and exposes exactly
// the operations the rest of the core needs: bulk insert, atomic graph
// replace, graph delete, SPARQL query with type discrimination, graph-IRI
// enumeration, and per-graph stats. See spec §4.1.
package quadstore

import "fmt"

// TermKind discriminates the three RDF term kinds a Quad's object (and,
// less commonly, subject) can take.
type TermKind string

const (
	TermIRI     TermKind = "uri"
	TermLiteral TermKind = "literal"
	TermBlank   TermKind = "bnode"
)

// Term is a single RDF term: an IRI, a literal (optionally typed or
// language-tagged), or a blank node label.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string // IRI, only meaningful when Kind == TermLiteral
	Lang     string // BCP-47 tag, only meaningful when Kind == TermLiteral
}

// IRITerm is a convenience constructor for an IRI term.
func IRITerm(iri string) Term { return Term{Kind: TermIRI, Value: iri} }

// LiteralTerm is a convenience constructor for a plain string literal.
func LiteralTerm(value string) Term { return Term{Kind: TermLiteral, Value: value} }

// TypedLiteral is a convenience constructor for a datatype-tagged literal.
func TypedLiteral(value, datatype string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

// Quad is a single RDF statement within a named graph: (subject,
// predicate, object, graph). Subject and predicate are always IRIs in
// this system; repolex never produces blank-node subjects.
type Quad struct {
	Subject   string
	Predicate string
	Object    Term
	Graph     string
}

func (q Quad) String() string {
	return fmt.Sprintf("<%s> <%s> %s <%s>", q.Subject, q.Predicate, termString(q.Object), q.Graph)
}

func termString(t Term) string {
	switch t.Kind {
	case TermIRI:
		return fmt.Sprintf("<%s>", t.Value)
	case TermBlank:
		return fmt.Sprintf("_:%s", t.Value)
	default: // TermLiteral
		if t.Datatype != "" {
			return fmt.Sprintf("%q^^<%s>", t.Value, t.Datatype)
		}
		if t.Lang != "" {
			return fmt.Sprintf("%q@%s", t.Value, t.Lang)
		}
		return fmt.Sprintf("%q", t.Value)
	}
}

// Less orders two quads for the canonical ordering spec §4.3 requires:
// subject IRI ascending, then predicate, then object lexicographic. Graph
// is not part of the ordering key since the builder emits quads one graph
// at a time.
func Less(a, b Quad) bool {
	if a.Subject != b.Subject {
		return a.Subject < b.Subject
	}
	if a.Predicate != b.Predicate {
		return a.Predicate < b.Predicate
	}
	return termString(a.Object) < termString(b.Object)
}
