// Package testutil provides fakes shared by kapsel tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
)

// Call is one recorded Execute invocation.
type Call struct {
	Name string
	Args []string
}

// Response is the canned result of a command.
type Response struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// FakeExecutor implements exec.CommandExecutor with canned responses keyed by
// the command base name. Unknown commands succeed with empty output.
type FakeExecutor struct {
	mu        sync.Mutex
	responses map[string]Response
	hooks     map[string]func(args []string)
	calls     []Call
}

// NewFakeExecutor creates an executor with no canned responses.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		responses: make(map[string]Response),
		hooks:     make(map[string]func(args []string)),
	}
}

// Respond sets the result returned for command name.
func (f *FakeExecutor) Respond(name string, stdout, stderr []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[name] = Response{Stdout: stdout, Stderr: stderr, Err: err}
}

// OnExecute runs hook with the arguments every time name is executed, to
// simulate side effects such as a created directory.
func (f *FakeExecutor) OnExecute(name string, hook func(args []string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[name] = hook
}

// Execute implements exec.CommandExecutor.
func (f *FakeExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	key := filepath.Base(name)
	hook := f.hooks[key]
	resp, ok := f.responses[key]
	f.mu.Unlock()

	if hook != nil {
		hook(args)
	}
	if !ok {
		return []byte{}, []byte{}, nil
	}
	return resp.Stdout, resp.Stderr, resp.Err
}

// Calls returns the recorded invocations.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
