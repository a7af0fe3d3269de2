package quadstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sparqlValue is one bound term in a SPARQL-results-JSON binding. This is
// the W3C SPARQL 1.1 Query Results JSON Format, the same wire shape
// evalgo-org-eve's db/rdf4j.go decodes for RDF4J — Oxigraph's /query
// endpoint returns the identical format for SELECT/ASK.
type sparqlValue struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

type sparqlResult struct {
	Bindings []map[string]sparqlValue `json:"bindings"`
}

type sparqlResponse struct {
	Head    map[string][]string `json:"head"`
	Results sparqlResult        `json:"results"`
	Boolean *bool               `json:"boolean,omitempty"`
}

func (v sparqlValue) toTerm() Term {
	switch v.Type {
	case "uri":
		return Term{Kind: TermIRI, Value: v.Value}
	case "bnode":
		return Term{Kind: TermBlank, Value: v.Value}
	default: // "literal", "typed-literal"
		return Term{Kind: TermLiteral, Value: v.Value, Datatype: v.Datatype, Lang: v.Lang}
	}
}

// DefaultTimeout and DefaultRowCap are the spec §4.5 defaults.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRowCap  = 100_000
)

// OxigraphClient talks to a locally-managed Oxigraph server over the
// SPARQL 1.1 Protocol and the Graph Store HTTP Protocol. It is the
// concrete Client implementation; see SPEC_FULL.md §4.1 for the wire
// contract and DESIGN.md for why this is a hand-rolled net/http client
// rather than a library dependency.
type OxigraphClient struct {
	BaseURL    string // e.g. "http://127.0.0.1:7878"
	HTTPClient *http.Client
}

// NewOxigraphClient builds a client against an already-running Oxigraph
// server at baseURL. Process lifecycle (spawning the server, pointing it
// at the on-disk store directory) is the caller's responsibility — see
// Manager in process.go.
func NewOxigraphClient(baseURL string) *OxigraphClient {
	return &OxigraphClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *OxigraphClient) storeURL(graph string) string {
	return fmt.Sprintf("%s/store?graph=%s", c.BaseURL, url.QueryEscape(graph))
}

// InsertQuads serializes quads as N-Triples (no graph IRI, since it is
// carried by the ?graph= query parameter) and POSTs them to the Graph
// Store Protocol endpoint. Oxigraph's default-graph-as-set semantics mean
// re-inserting an existing triple is a no-op, so no client-side dedup
// pass is required.
func (c *OxigraphClient) InsertQuads(ctx context.Context, graph string, quads []Quad) error {
	if len(quads) == 0 {
		return nil
	}
	body := serializeNTriples(quads)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.storeURL(graph), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/n-triples")
	return c.doExpectingSuccess(req, "insert quads into %s", graph)
}

// ReplaceGraph PUTs the entire graph contents in one request. The Graph
// Store Protocol's PUT is replace-or-create and atomic within Oxigraph's
// own transaction boundary, which is what gives this operation the
// all-or-nothing semantics invariant I5 depends on.
func (c *OxigraphClient) ReplaceGraph(ctx context.Context, graph string, quads []Quad) error {
	body := serializeNTriples(quads)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.storeURL(graph), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build replace request: %w", err)
	}
	req.Header.Set("Content-Type", "application/n-triples")
	return c.doExpectingSuccess(req, "replace graph %s", graph)
}

// DeleteGraph removes graph entirely. A 404 from Oxigraph (graph already
// absent) is treated as success.
func (c *OxigraphClient) DeleteGraph(ctx context.Context, graph string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.storeURL(graph), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete graph %s: %w", graph, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete graph %s: status %s: %s", graph, resp.Status, string(b))
	}
	return nil
}

// Query executes sparql against the SPARQL 1.1 Protocol endpoint,
// discriminating the result shape by the query's leading form keyword.
// Safety filtering happens upstream in internal/query; by the time a
// query reaches this client it is assumed already vetted.
func (c *OxigraphClient) Query(ctx context.Context, sparql string, opts QueryOptions) (*Result, error) {
	timeout := DefaultTimeout
	if opts.TimeoutOverride > 0 {
		timeout = time.Duration(opts.TimeoutOverride) * time.Millisecond
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := queryForm(sparql)
	accept := "application/sparql-results+json"
	if form == formConstruct || form == formDescribe {
		accept = "application/n-triples"
	}

	req, err := http.NewRequestWithContext(qctx, http.MethodPost, c.BaseURL+"/query", strings.NewReader(sparql))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", accept)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query failed: status %s: %s", resp.Status, string(body))
	}

	rowCap := DefaultRowCap
	if opts.RowCapOverride > 0 {
		rowCap = opts.RowCapOverride
	}

	switch form {
	case formConstruct, formDescribe:
		quads, err := parseNTriples(body, defaultGraphPlaceholder)
		if err != nil {
			return nil, fmt.Errorf("parse construct/describe response: %w", err)
		}
		return &Result{Kind: ResultGraph, Quads: quads}, nil
	case formAsk:
		var decoded sparqlResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decode ask response: %w", err)
		}
		b := decoded.Boolean != nil && *decoded.Boolean
		return &Result{Kind: ResultBoolean, Boolean: b}, nil
	default: // formSelect
		var decoded sparqlResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decode select response: %w", err)
		}
		rows := make([]Row, 0, len(decoded.Results.Bindings))
		truncated := false
		for i, binding := range decoded.Results.Bindings {
			if i >= rowCap {
				truncated = true
				break
			}
			row := make(Row, len(binding))
			for varName, v := range binding {
				row[varName] = v.toTerm()
			}
			rows = append(rows, row)
		}
		return &Result{Kind: ResultRows, Rows: rows, Truncated: truncated}, nil
	}
}

// IterGraphIRIs enumerates named graphs beginning with prefix. Oxigraph
// exposes no "list graphs" REST endpoint, so this is a SPARQL query
// rather than a store-native call.
func (c *OxigraphClient) IterGraphIRIs(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT ?g WHERE { GRAPH ?g { ?s ?p ?o } FILTER(STRSTARTS(STR(?g), %s)) }`,
		sparqlStringLiteral(prefix),
	)
	result, err := c.Query(ctx, query, QueryOptions{RowCapOverride: 1_000_000})
	if err != nil {
		return nil, fmt.Errorf("iterate graph iris: %w", err)
	}
	iris := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if g, ok := row["g"]; ok {
			iris = append(iris, g.Value)
		}
	}
	return iris, nil
}

// Stats summarizes one graph: an exact quad count via SPARQL COUNT, and
// an approximate byte size estimated from a sampled N-Triples
// serialization (Oxigraph exposes no per-graph byte accounting over
// HTTP).
func (c *OxigraphClient) Stats(ctx context.Context, graph string) (*Stats, error) {
	countQuery := fmt.Sprintf(`SELECT (COUNT(*) AS ?n) WHERE { GRAPH %s { ?s ?p ?o } }`, sparqlIRI(graph))
	result, err := c.Query(ctx, countQuery, QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("stats count for %s: %w", graph, err)
	}
	var count int64
	if len(result.Rows) == 1 {
		if n, ok := result.Rows[0]["n"]; ok {
			count, _ = strconv.ParseInt(n.Value, 10, 64)
		}
	}

	sampleQuery := fmt.Sprintf(`CONSTRUCT { ?s ?p ?o } WHERE { GRAPH %s { ?s ?p ?o } } LIMIT 1000`, sparqlIRI(graph))
	sample, err := c.Query(ctx, sampleQuery, QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("stats sample for %s: %w", graph, err)
	}
	approxBytes := estimateBytes(sample.Quads, count)

	return &Stats{QuadCount: count, ApproxBytes: approxBytes}, nil
}

// DumpGraph fetches every quad in graph via the Graph Store Protocol's GET
// (simpler and cheaper than a CONSTRUCT round-trip through the SPARQL
// endpoint, and exercises the same N-Triples decode path InsertQuads'
// encode path mirrors).
func (c *OxigraphClient) DumpGraph(ctx context.Context, graph string) ([]Quad, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storeURL(graph), nil)
	if err != nil {
		return nil, fmt.Errorf("build dump request: %w", err)
	}
	req.Header.Set("Accept", "application/n-triples")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dump graph %s: %w", graph, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dump response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dump graph %s: status %s: %s", graph, resp.Status, string(body))
	}
	return parseNTriples(body, graph)
}

func (c *OxigraphClient) doExpectingSuccess(req *http.Request, verbFmt string, args ...interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf(verbFmt+": %w", append(args, err)...)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf(verbFmt+": status %s: %s", append(args, resp.Status, string(b))...)
	}
	return nil
}

func estimateBytes(sample []Quad, totalCount int64) int64 {
	if len(sample) == 0 {
		return 0
	}
	sampleBytes := int64(len(serializeNTriples(sample)))
	perQuad := sampleBytes / int64(len(sample))
	return perQuad * totalCount
}

func sparqlStringLiteral(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
	return `"` + escaped + `"`
}

func sparqlIRI(iri string) string { return "<" + iri + ">" }
