/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package wasmsolc runs the portable (WASM) build of solc in-process via
// wazero, for platforms or versions where the native binary is unavailable
// or failed its probe. It instantiates the module once and invokes exactly
// one exported compile entry point per call, managing the guest's
// malloc/free-backed linear memory itself.
package wasmsolc

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/solidkit/buildcore/pkg/xerrors"
)

// maxOutputSize bounds how much output the evaluator will read out of WASM
// linear memory, mirroring the native runner's memory cap on streamed I/O.
const maxOutputSize = 256 << 20

// limitedWriter caps how much of the module's stdout/stderr is retained,
// the same bounded-capture technique used for extension diagnostics.
type limitedWriter struct {
	limit int
	buf   []byte
}

func newLimitedWriter(limit int) *limitedWriter { return &limitedWriter{limit: limit} }

func (w *limitedWriter) Write(p []byte) (int, error) {
	if len(w.buf)+len(p) > w.limit {
		p = p[:w.limit-len(w.buf)]
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *limitedWriter) String() string { return string(w.buf) }

// Evaluator hosts one instantiated soljson WASM module, exposing the single
// `solidity_compile(inputPtr, inputLen) -> outputPtr` entry point the
// portable build exports.
type Evaluator struct {
	runtime wazero.Runtime
	closer  api.Closer
	module  api.Module

	malloc  api.Function
	free    api.Function
	compile api.Function

	stderr *limitedWriter
}

// NewEvaluator compiles and instantiates wasmBinary. The runtime runs in
// interpreter mode: a solc invocation happens once per job, so paying
// ahead-of-time compilation cost is not worth it.
func NewEvaluator(ctx context.Context, wasmBinary []byte) (*Evaluator, error) {
	rtConf := wazero.NewRuntimeConfigInterpreter().WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, rtConf)

	closer, err := wasi_snapshot_preview1.Instantiate(ctx, rt)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e := &Evaluator{runtime: rt, closer: closer, stderr: newLimitedWriter(1 << 20)}

	cfg := wazero.NewModuleConfig().WithName("soljson").WithStderr(e.stderr).WithRandSource(rand.Reader)
	module, err := rt.InstantiateWithConfig(ctx, wasmBinary, cfg)
	if err != nil {
		e.Close(ctx)
		return nil, fmt.Errorf("instantiate soljson module: %w", err)
	}
	e.module = module

	for name, dst := range map[string]*api.Function{
		"malloc":           &e.malloc,
		"free":             &e.free,
		"solidity_compile": &e.compile,
	} {
		fn := module.ExportedFunction(name)
		if fn == nil {
			e.Close(ctx)
			return nil, xerrors.New(xerrors.KindCompiler, fmt.Sprintf("portable compiler is missing expected export %q", name))
		}
		*dst = fn
	}
	return e, nil
}

// Compile feeds inputJSON (a Standard JSON compiler input document) to the
// WASM module and returns its Standard JSON output.
func (e *Evaluator) Compile(ctx context.Context, inputJSON string) (string, error) {
	mem := e.module.Memory()

	inputBytes := append([]byte(inputJSON), 0)
	inPtr, err := e.alloc(ctx, uint32(len(inputBytes)))
	if err != nil {
		return "", err
	}
	defer e.free.Call(ctx, uint64(inPtr))

	if !mem.Write(inPtr, inputBytes) {
		return "", xerrors.New(xerrors.KindCompiler, "failed writing compiler input into WASM memory")
	}

	results, err := e.compile.Call(ctx, uint64(inPtr), uint64(len(inputJSON)))
	if err != nil {
		return "", xerrors.Wrap(xerrors.KindCompiler, "portable compiler invocation failed", err)
	}
	if len(results) != 1 {
		return "", xerrors.New(xerrors.KindProtocol, "portable compiler returned an unexpected result shape")
	}
	outPtr := uint32(results[0])
	defer e.free.Call(ctx, uint64(outPtr))

	out, err := readCString(mem, outPtr, maxOutputSize)
	if err != nil {
		return "", xerrors.Wrap(xerrors.KindProtocol, "reading portable compiler output", err)
	}
	return out, nil
}

func (e *Evaluator) alloc(ctx context.Context, size uint32) (uint32, error) {
	results, err := e.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, xerrors.Wrap(xerrors.KindCompiler, "portable compiler allocation failed", err)
	}
	return uint32(results[0]), nil
}

func readCString(mem api.Memory, ptr uint32, max int) (string, error) {
	var out []byte
	for i := 0; i < max; i++ {
		b, ok := mem.ReadByte(ptr + uint32(i))
		if !ok {
			return "", fmt.Errorf("out-of-bounds read at offset %d", ptr+uint32(i))
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
	return "", fmt.Errorf("output exceeded %d bytes without a terminator", max)
}

// Close releases the WASM runtime and its instantiated module.
func (e *Evaluator) Close(ctx context.Context) {
	if e.module != nil {
		e.module.Close(ctx)
	}
	if e.closer != nil {
		e.closer.Close(ctx)
	}
	if e.runtime != nil {
		e.runtime.Close(ctx)
	}
}
