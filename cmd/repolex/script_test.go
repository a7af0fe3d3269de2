package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"

	"github.com/repolex/repolex/internal/dna"
	"github.com/repolex/repolex/internal/factbag"
	"github.com/vmihailenco/msgpack/v5"
)

// repolexBinary builds the repolex binary once into a temp dir and returns
// its path, so scripts can exec it by name with that dir prepended to PATH.
func repolexBinary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "repolex")
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = "."
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("building repolex binary for script tests: %v\n%s", err, out)
	}
	return bin
}

// TestScripts runs the end-to-end scenarios under testdata/script against
// the built repolex binary, scenarios S1-S6 of spec.md §8. They require a
// real oxigraph binary on PATH (the commands spawn the actual subprocess,
// there is no mocked store here) and are skipped in short mode.
func TestScripts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end CLI scripts in short mode")
	}
	if _, err := exec.LookPath("oxigraph"); err != nil {
		t.Skip("oxigraph binary not found on PATH, skipping end-to-end CLI scripts")
	}

	bin := repolexBinary(t)

	ctx := context.Background()
	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	engine.Cmds["mkfixture"] = mkfixtureCmd()
	engine.Cmds["dnadump"] = dnadumpCmd()
	engine.Cmds["repolex"] = script.Program(bin, nil, 0)

	env := append(os.Environ(), "REPOLEX_HOME=$WORK/home")
	scripttest.Test(t, ctx, engine, env, "testdata/script/*.txtar")
}

// mkfixtureCmd registers a script command that writes a msgpack-encoded
// factbag.FactBag fixture, so scenario scripts can drive `repolex add
// --fixture` without a real parser plugin. Usage:
//
//	mkfixture out.bin name=foo module=a sig='foo(x: int) -> int' file=src/a.py lines=10-14
func mkfixtureCmd() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "write a single-function msgpack factbag fixture",
			Args:    "file name=NAME module=MODULE sig=SIGNATURE file=PATH lines=START-END",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) < 1 {
				return nil, script.ErrUsage
			}
			fn := factbag.FunctionFact{}
			for _, kv := range args[1:] {
				key, val, ok := splitKV(kv)
				if !ok {
					continue
				}
				switch key {
				case "name":
					fn.SimpleName = val
				case "module":
					fn.ModulePath = val
				case "sig":
					fn.Signature = val
				case "file":
					fn.File = val
				case "lines":
					fn.LineStart, fn.LineEnd = splitRange(val)
				case "doc":
					fn.Docstring = val
				}
			}
			path := s.Path(args[0])
			bag := &factbag.FactBag{}
			if existing, err := os.ReadFile(path); err == nil {
				if err := msgpack.Unmarshal(existing, bag); err != nil {
					return nil, err
				}
			}
			bag.Functions = append(bag.Functions, fn)
			data, err := msgpack.Marshal(bag)
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, err
			}
			return nil, nil
		},
	)
}

// dnadumpCmd registers a script command that reads a semantic-DNA
// MessagePack document and prints one line per function ("NAME d=D"),
// then a "strings N" line (string-table size) and a "sorted 1|0" line
// (whether names are in ascending order), so scripts can assert on S4's
// exclusion, ordering and string-table-indexing behavior without parsing binary MessagePack
// themselves.
func dnadumpCmd() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "print a semantic-DNA document's function names and docstring indices", Args: "file"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, script.ErrUsage
			}
			data, err := os.ReadFile(s.Path(args[0]))
			if err != nil {
				return nil, err
			}
			doc, err := dna.Unmarshal(data)
			if err != nil {
				return nil, err
			}
			var out []byte
			prevName := ""
			sorted := true
			for _, fn := range doc.Functions {
				if prevName != "" && fn.N < prevName {
					sorted = false
				}
				prevName = fn.N
				out = append(out, []byte(fn.N+" d="+strconvItoa(fn.D)+"\n")...)
			}
			out = append(out, []byte("strings "+strconvItoa(len(doc.StringTable))+"\n")...)
			out = append(out, []byte("sorted "+strconvItoa(boolToInt(sorted))+"\n")...)
			return func(s *script.State) (string, string, error) {
				return string(out), "", nil
			}, nil
		},
	)
}

func strconvItoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitKV(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func splitRange(s string) (start, end int) {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return atoiOrZero(s[:i]), atoiOrZero(s[i+1:])
		}
	}
	n := atoiOrZero(s)
	return n, n
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
