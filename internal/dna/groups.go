package dna

import (
	"sort"
	"strconv"
	"strings"
)

// buildModules groups filtered functions by module path, each becoming
// one ModuleRecord with its exports sorted in the same order as
// Document.Functions (ascending by name, since idByStable was assigned
// in that order).
func buildModules(filtered []*implInfo, idByStable map[string]int) []ModuleRecord {
	byModule := make(map[string][]int)
	for _, info := range filtered {
		id := idByStable[info.stableIRI]
		byModule[info.module] = append(byModule[info.module], id)
	}

	names := make([]string, 0, len(byModule))
	for m := range byModule {
		names = append(names, m)
	}
	sort.Strings(names)

	modules := make([]ModuleRecord, len(names))
	for i, name := range names {
		exports := byModule[name]
		sort.Ints(exports)
		modules[i] = ModuleRecord{
			ID:      i,
			Name:    lastPathSegment(name),
			Path:    name,
			Exports: exports,
		}
	}
	return modules
}

// buildPatterns groups implementations by normalized signature template
// (parameter count + return arity, parameter names erased); any template
// shared by >=2 functions becomes one pattern record (SPEC_FULL.md §4.7
// expansion).
func buildPatterns(filtered []*implInfo, idByStable map[string]int) []PatternRecord {
	type group struct {
		template  string
		ids       []int
		modules   map[string]bool
	}
	byTemplate := make(map[string]*group)
	for _, info := range filtered {
		tmpl := signatureTemplate(info.signature)
		g, ok := byTemplate[tmpl]
		if !ok {
			g = &group{template: tmpl, modules: make(map[string]bool)}
			byTemplate[tmpl] = g
		}
		g.ids = append(g.ids, idByStable[info.stableIRI])
		g.modules[info.module] = true
	}

	templates := make([]string, 0, len(byTemplate))
	for tmpl, g := range byTemplate {
		if len(g.ids) >= 2 {
			templates = append(templates, tmpl)
		}
	}
	sort.Strings(templates)

	patterns := make([]PatternRecord, 0, len(templates))
	for _, tmpl := range templates {
		g := byTemplate[tmpl]
		ctx := make([]string, 0, len(g.modules))
		for m := range g.modules {
			ctx = append(ctx, m)
		}
		sort.Strings(ctx)
		ids := append([]int(nil), g.ids...)
		sort.Ints(ids)
		patterns = append(patterns, PatternRecord{
			Name:             tmpl,
			Template:         tmpl,
			Frequency:        len(g.ids),
			Context:          ctx,
			RelatedFunctions: ids,
		})
	}
	return patterns
}

// signatureTemplate erases parameter names from a signature string,
// keeping parameter count and whether a return type is present:
// "foo(x: int, y: int = 0) -> int" -> "(2) -> 1".
func signatureTemplate(signature string) string {
	open := strings.IndexByte(signature, '(')
	shut := strings.IndexByte(signature, ')')
	paramCount := 0
	if open >= 0 && shut > open {
		params := strings.TrimSpace(signature[open+1 : shut])
		if params != "" {
			paramCount = len(strings.Split(params, ","))
		}
	}
	returnArity := 0
	if strings.Contains(signature, "->") {
		returnArity = 1
	}
	return "(" + strconv.Itoa(paramCount) + ") -> " + strconv.Itoa(returnArity)
}

// buildClusters groups functions by module path (the coarsest grouping
// in the fact bag); core_concept is the module's last path segment,
// typical_workflow is the call order implied by ascending line number
// (SPEC_FULL.md §4.7 expansion: no ABC-derived ordering is consulted
// here, so this is always the ascending-line-number fallback).
func buildClusters(filtered []*implInfo, idByStable map[string]int) map[string]ClusterRecord {
	type member struct {
		id        int
		name      string
		lineStart int
	}
	byModule := make(map[string][]member)
	for _, info := range filtered {
		byModule[info.module] = append(byModule[info.module], member{
			id: idByStable[info.stableIRI], name: info.name, lineStart: info.lineStart,
		})
	}

	clusters := make(map[string]ClusterRecord, len(byModule))
	for module, members := range byModule {
		sort.Slice(members, func(i, j int) bool { return members[i].lineStart < members[j].lineStart })

		ids := make([]int, len(members))
		workflow := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.id
			workflow[i] = m.name
		}
		sort.Ints(ids)

		clusters[module] = ClusterRecord{
			Functions:       ids,
			CoreConcept:     lastPathSegment(module),
			TypicalWorkflow: workflow,
		}
	}
	return clusters
}

func lastPathSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
