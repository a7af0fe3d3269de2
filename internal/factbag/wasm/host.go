// Package wasm hosts parser-collaborator plugins compiled to WebAssembly
// (WASI preview 1), using wazero as the embedded runtime. This is the
// concrete realization of the "Parser -> core" collaborator boundary
// (spec §6.2): a plugin is a sandboxed binary that repolex never links
// against, matching BeadsLog's own use of wazero for its extension
// points (see DESIGN.md).
//
// ABI: the guest module exports a function
//
//	extract(path_ptr, path_len uint32) (result_ptr, result_len uint64-packed)
//
// writing a msgpack-encoded factbag.FactBag into its own linear memory
// and returning a pointer/length pair packed into a single uint64
// (ptr<<32 | len), the common tinygo/wazero convention for returning a
// byte slice across the WASM ABI boundary without a second export.
package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/repolex/repolex/internal/factbag"
)

// Host loads and invokes a single compiled parser plugin module.
type Host struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// NewHost compiles wasmBytes under a fresh wazero runtime with WASI
// preview 1 host functions instantiated, so guest modules built with a
// standard toolchain (TinyGo, Rust) can use argv/stdio/fd operations if
// they need them during extraction.
func NewHost(ctx context.Context, wasmBytes []byte) (*Host, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi preview1: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile parser plugin: %w", err)
	}
	return &Host{runtime: rt, compiled: compiled}, nil
}

// Close releases the runtime and any instantiated modules.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Extract instantiates a fresh module instance per call — plugins carry
// no state of their own, so there is no reason to reuse an instance
// across checkouts, and a fresh instance means a leaked allocation in one
// extraction can never affect the next.
func (h *Host) Extract(ctx context.Context, checkoutPath string) (*factbag.FactBag, error) {
	modCfg := wazero.NewModuleConfig().WithStartFunctions("_initialize")
	mod, err := h.runtime.InstantiateModule(ctx, h.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate parser plugin: %w", err)
	}
	defer mod.Close(ctx)

	extractFn := mod.ExportedFunction("extract")
	if extractFn == nil {
		return nil, fmt.Errorf("parser plugin does not export 'extract'")
	}
	malloc := mod.ExportedFunction("malloc")
	if malloc == nil {
		return nil, fmt.Errorf("parser plugin does not export 'malloc'")
	}

	pathBytes := []byte(checkoutPath)
	results, err := malloc.Call(ctx, uint64(len(pathBytes)))
	if err != nil {
		return nil, fmt.Errorf("malloc path buffer: %w", err)
	}
	pathPtr := uint32(results[0])
	if !mod.Memory().Write(pathPtr, pathBytes) {
		return nil, fmt.Errorf("write checkout path into guest memory")
	}

	packed, err := extractFn.Call(ctx, uint64(pathPtr), uint64(len(pathBytes)))
	if err != nil {
		return nil, fmt.Errorf("call extract: %w", err)
	}
	resultPtr := uint32(packed[0] >> 32)
	resultLen := uint32(packed[0])

	raw, ok := mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("read extract result from guest memory")
	}

	var bag factbag.FactBag
	if err := msgpack.Unmarshal(raw, &bag); err != nil {
		return nil, fmt.Errorf("decode plugin factbag: %w", err)
	}
	return &bag, nil
}

var _ factbag.Provider = (*Host)(nil)
