/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

// Package runner forms Solidity Standard JSON compiler input from a planned
// Job and invokes the acquired compiler, either as a native subprocess piped
// through stdin/stdout (the untillpro/goutils/exec.PipedExec pattern) or
// in-process through pkg/wasmsolc's WASM evaluator for the portable
// fallback.
package runner

import (
	"encoding/json"
	"strings"

	"github.com/solidkit/buildcore/pkg/plan"
)

// sourceInput is one entry of Standard JSON input's "sources" map.
type sourceInput struct {
	Content string `json:"content"`
}

// standardInput mirrors the Standard JSON compiler input document:
// language, a source-name-keyed sources map, and the job's settings
// passed through verbatim.
type standardInput struct {
	Language string                 `json:"language"`
	Sources  map[string]sourceInput `json:"sources"`
	Settings map[string]any         `json:"settings,omitempty"`
}

// buildInput forms the Standard JSON document for job. Every source_name
// referenced as an import elsewhere in job.Inputs is itself present, since
// the job planner already closed the input set over the dependency graph.
func buildInput(job *plan.Job) ([]byte, error) {
	in := standardInput{
		Language: "Solidity",
		Sources:  make(map[string]sourceInput, len(job.Inputs)),
		Settings: job.Config.Settings,
	}
	for name, file := range job.Inputs {
		in.Sources[string(name)] = sourceInput{Content: file.ContentText}
	}
	return json.Marshal(in)
}

// Diagnostic is one entry of Standard JSON output's "errors" array.
type Diagnostic struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

// IsError reports whether the diagnostic's severity fails the build.
func (d Diagnostic) IsError() bool { return d.Severity == "error" }

// consoleLogWithoutHelperSubstring is the message fragment the compiler uses
// to flag console.log usage without the console helper import; this is
// surfaced as a note and does not itself fail the build.
const consoleLogWithoutHelperSubstring = "console.log"

// IsConsoleLogNote reports whether d is the informational console.log note
// rather than a genuine diagnostic, detected by message substring match.
func (d Diagnostic) IsConsoleLogNote() bool {
	return d.Severity != "error" && strings.Contains(d.Message, consoleLogWithoutHelperSubstring)
}

// SourceOutput is one entry of Standard JSON output's "sources" map.
type SourceOutput struct {
	ID  int             `json:"id"`
	AST json.RawMessage `json:"ast"`
}

// Output is the parsed Standard JSON compiler output document. Input holds
// the request that produced it, for callers that persist a build-info
// record pairing the two; it is never part of the compiler's own JSON.
type Output struct {
	Errors    []Diagnostic                           `json:"errors"`
	Contracts map[string]map[string]json.RawMessage `json:"contracts"`
	Sources   map[string]SourceOutput               `json:"sources"`
	Input     json.RawMessage                       `json:"-"`
}

// HasErrors reports whether any diagnostic has severity "error".
func (o *Output) HasErrors() bool {
	for _, d := range o.Errors {
		if d.IsError() {
			return true
		}
	}
	return false
}

func parseOutput(raw []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
