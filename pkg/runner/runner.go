/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package runner

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	goutilsexec "github.com/untillpro/goutils/exec"

	"github.com/solidkit/buildcore/pkg/compilerhub"
	"github.com/solidkit/buildcore/pkg/plan"
)

// maxCompilerOutputBytes bounds how much stdout a compiler invocation may
// produce before the runner gives up on it.
const maxCompilerOutputBytes = 256 << 20

// Evaluator runs the portable (WASM) build in-process; pkg/wasmsolc.Evaluator
// satisfies this. Narrowed to just Compile so tests can substitute a fake
// without pulling in wazero.
type Evaluator interface {
	Compile(ctx context.Context, inputJSON string) (string, error)
}

// PortableEvaluatorFactory instantiates the Evaluator for one job's WASM
// binary; the concrete CLI wiring reads the binary from build.CompilerPath
// and hands it to wasmsolc.NewEvaluator, while tests substitute a fake.
type PortableEvaluatorFactory func(ctx context.Context, wasmPath string) (Evaluator, error)

// Runner forms Standard JSON input for a Job and invokes the compiler named
// by a SolcBuild, dispatching to a native subprocess or the portable WASM
// evaluator depending on build.IsPortable.
type Runner struct {
	newEvaluator PortableEvaluatorFactory
}

// New builds a Runner. newEvaluator is used only for portable builds; pass
// nil if the caller never plans to run a portable job.
func New(newEvaluator PortableEvaluatorFactory) *Runner {
	return &Runner{newEvaluator: newEvaluator}
}

// Run forms job's Standard JSON input, invokes build, and parses its output.
// A non-zero exit or unreadable stdout surfaces as Compiler; output that
// fails to parse as JSON surfaces as Protocol.
func (r *Runner) Run(ctx context.Context, job *plan.Job, build compilerhub.SolcBuild) (*Output, error) {
	inputJSON, err := buildInput(job)
	if err != nil {
		return nil, fmt.Errorf("form standard json input: %w", err)
	}

	var raw []byte
	if build.IsPortable {
		raw, err = r.runPortable(ctx, build, inputJSON)
	} else {
		raw, err = runNative(build, inputJSON)
	}
	if err != nil {
		return nil, errCompilerFailed(build.Version, err)
	}

	out, err := parseOutput(raw)
	if err != nil {
		return nil, errMalformedOutput(build.Version, err)
	}
	out.Input = inputJSON
	return out, nil
}

// runNative spawns the acquired compiler binary in standard-JSON mode,
// piping input over stdin and capturing stdout, the same
// PipedExec.Command(...).WorkingDir(...).Run(stdout, stderr) shape used for
// every external tool invocation elsewhere in the corpus.
func runNative(build compilerhub.SolcBuild, inputJSON []byte) ([]byte, error) {
	pe := new(goutilsexec.PipedExec)
	pe.Command(build.CompilerPath, "--standard-json")
	pe.GetCmd(0).Stdin = strings.NewReader(string(inputJSON))

	stdout := newCappedBuffer(maxCompilerOutputBytes)
	var stderr bytes.Buffer
	if err := pe.Run(stdout, &stderr); err != nil {
		return nil, fmt.Errorf("%w (stderr: %s)", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (r *Runner) runPortable(ctx context.Context, build compilerhub.SolcBuild, inputJSON []byte) ([]byte, error) {
	if r.newEvaluator == nil {
		return nil, fmt.Errorf("no portable evaluator configured")
	}
	eval, err := r.newEvaluator(ctx, build.CompilerPath)
	if err != nil {
		return nil, err
	}
	out, err := eval.Compile(ctx, string(inputJSON))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// cappedBuffer stops accepting writes once limit bytes have been written,
// so a runaway compiler cannot exhaust memory streaming its output.
type cappedBuffer struct {
	limit int
	buf   bytes.Buffer
}

func newCappedBuffer(limit int) *cappedBuffer { return &cappedBuffer{limit: limit} }

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.buf.Len()+len(p) > c.limit {
		return 0, fmt.Errorf("compiler output exceeded %d bytes", c.limit)
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) Bytes() []byte { return c.buf.Bytes() }
