package schema

import (
	"strings"
	"testing"

	"github.com/repolex/repolex/internal/model"
)

func TestSanitiseIdempotent(t *testing.T) {
	cases := []string{
		"",
		"foo",
		"foo bar",
		"foo<bar>",
		"../../etc/passwd",
		"a\"b{c}d|e\\f?g#h&i%j+k=l",
		"日本語",
		"_",
		"v0.1.0",
	}
	for _, c := range cases {
		once := Sanitise(c)
		twice := Sanitise(once)
		if once != twice {
			t.Errorf("Sanitise not idempotent for %q: %q != %q", c, once, twice)
		}
		for _, bad := range []string{"<", ">", "\"", "{", "}", "|"} {
			if strings.Contains(once, bad) {
				t.Errorf("Sanitise(%q) = %q still contains forbidden char %q", c, once, bad)
			}
		}
		if strings.ContainsAny(once, " \t\n\r") {
			t.Errorf("Sanitise(%q) = %q still contains whitespace", c, once)
		}
	}
}

func TestSanitiseEmptyIsUnderscore(t *testing.T) {
	if got := Sanitise(""); got != "_" {
		t.Errorf("Sanitise(\"\") = %q, want \"_\"", got)
	}
}

func TestStableAndImplementationIRIShareBase(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	stable := StableIRI(repo, "foo")
	impl := ImplementationIRI(repo, "foo", "v0.1.0")

	if string(stable) != "function:acme/demo/foo" {
		t.Errorf("StableIRI = %q", stable)
	}
	if string(impl) != "function:acme/demo/foo#v0.1.0" {
		t.Errorf("ImplementationIRI = %q", impl)
	}
	if !strings.HasPrefix(string(impl), string(stable)+"#") {
		t.Errorf("implementation IRI %q is not an extension of stable IRI %q", impl, stable)
	}
}

func TestGraphIRIsAreFixedPerRepo(t *testing.T) {
	repo := model.Repository{Org: "acme", Repo: "demo"}
	want := "http://repolex.org/repo/acme/demo/functions/stable"
	if got := FunctionsStableGraph(repo); string(got) != want {
		t.Errorf("FunctionsStableGraph = %q, want %q", got, want)
	}

	v1 := FilesGraph(repo, "v0.1.0")
	v2 := FilesGraph(repo, "v0.2.0")
	if v1 == v2 {
		t.Errorf("FilesGraph should differ by version, got %q for both", v1)
	}
}

func TestGitHubBlobURL(t *testing.T) {
	got := GitHubBlobURL("https://github.com/acme/demo.git", "v0.1.0", "src/a.py", model.LineRange{Start: 10, End: 14})
	want := "https://github.com/acme/demo/blob/v0.1.0/src/a.py#L10-L14"
	if got != want {
		t.Errorf("GitHubBlobURL = %q, want %q", got, want)
	}
}
