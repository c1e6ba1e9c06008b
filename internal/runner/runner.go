// Package runner defines the boundary between the orchestrator core and
// whatever drives the actual model/agent process. This is the sole
// remaining external dependency: a production ModelRunner would shell out
// to a CLI (mirroring the teacher's claude.Invoker flag set: --system-prompt,
// -p, --json-schema, --output-format json, --agents, --resume,
// --permission-mode bypassPermissions) but that binary dependency is kept
// out of this module.
package runner

import "context"

// RunOptions configures a single ModelRunner invocation.
type RunOptions struct {
	Prompt            string
	SystemPrompt      string
	AgentJSON         string
	ResumeSessionID   string
	Schema            string
	BypassPermissions bool
}

// RunEvent is a single lifecycle event streamed back from a running agent:
// a tool call, a token of output, or a terminal error.
type RunEvent struct {
	Kind     string
	ToolName string
	Token    string
	Err      error
}

// Result is the outcome of a completed run.
type Result struct {
	RawOutput []byte
	SessionID string
}

// ModelRunner runs a single agent turn to completion, streaming lifecycle
// events to sink as it progresses.
type ModelRunner interface {
	Run(ctx context.Context, opts RunOptions, sink chan<- RunEvent) (*Result, error)
}

// NopRunner is a no-op ModelRunner for tests: it immediately returns a
// fixed result without emitting any events.
type NopRunner struct {
	Result *Result
	Err     error
}

func (r *NopRunner) Run(ctx context.Context, opts RunOptions, sink chan<- RunEvent) (*Result, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Result != nil {
		return r.Result, nil
	}
	return &Result{RawOutput: []byte("{}"), SessionID: "nop-session"}, nil
}
