// Package query is the read-only SPARQL executor plus natural-language
// function search (spec §4.5). Grounded on BeadsLog's internal/queries
// package layout (one file per concern: search.go, safety sits alongside
// it the same way BeadsLog keeps FTS and entity-expansion in one package).
package query

import (
	"strings"
	"unicode"

	"github.com/repolex/repolex/internal/apperrors"
)

// MaxQueryLength is spec §4.5's hard length cap.
const MaxQueryLength = 10_000

// dangerousKeywords is the update-family keyword set spec §4.5 rejects.
// Checked against the tokenized, comment-and-string-stripped form of the
// query — never a raw substring match against the original text, so a
// literal like "please DROP by" does not trip a false positive.
var dangerousKeywords = map[string]bool{
	"INSERT": true, "DELETE": true, "DROP": true, "CLEAR": true,
	"CREATE": true, "LOAD": true, "COPY": true, "MOVE": true,
	"ADD": true, "UPDATE": true,
}

// CheckSafety validates sparql against spec §4.5's safety rules. It
// returns a *apperrors.Error with Kind == KindSecurity (or KindValidation
// for the length cap) on rejection, nil otherwise.
//
// The check operates on keyword tokens extracted from the query with
// string and comment literals stripped first — this is the "conservative
// textual prefilter" spec §4.5 explicitly permits as a legitimate
// component of the safety check, rather than a full SPARQL AST parse (no
// pack library implements one; see DESIGN.md). Quoted literals containing
// banned words are never misclassified because they are stripped before
// tokenization.
func CheckSafety(sparql string) error {
	if len(sparql) > MaxQueryLength {
		return apperrors.New(apperrors.KindValidation, "query exceeds maximum length of 10000 characters")
	}

	stripped := stripLiteralsAndComments(sparql)
	for _, tok := range tokenizeKeywords(stripped) {
		if dangerousKeywords[tok] {
			return apperrors.New(apperrors.KindSecurity, "query contains a rejected update-family keyword: "+tok).
				WithSuggestions("use SELECT, ASK, CONSTRUCT, or DESCRIBE", "mutations must go through the coordinator, not the query surface")
		}
	}
	return nil
}

// stripLiteralsAndComments removes SPARQL string literals ('...', "...",
// '''...''', """...""") and '#'-to-end-of-line comments, replacing each
// with a single space so keyword boundaries are preserved without leaking
// literal content into the keyword scan.
func stripLiteralsAndComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '<':
			// An IRI reference has no whitespace before its '>'; copy it
			// through whole so a '#' fragment in it is not read as a comment.
			end := strings.IndexAny(s[i+1:], "> \t\r\n")
			if end >= 0 && s[i+1+end] == '>' {
				b.WriteString(s[i : i+end+2])
				i += end + 2
			} else {
				b.WriteByte(c)
				i++
			}
		case c == '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case (c == '\'' || c == '"') && strings.HasPrefix(s[i:], string([]byte{c, c, c})):
			delim := s[i : i+3]
			end := strings.Index(s[i+3:], delim)
			if end < 0 {
				i = len(s)
			} else {
				i += 3 + end + 3
			}
			b.WriteByte(' ')
		case c == '\'' || c == '"':
			quote := c
			i++
			for i < len(s) && s[i] != quote {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				i++
			}
			i++ // consume closing quote
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// tokenizeKeywords splits on non-alphanumeric runes and upper-cases each
// token, so "dRoP" and "DROP" both classify the same way.
func tokenizeKeywords(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
