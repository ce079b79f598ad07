package helpers

import (
	"context"
	"slices"
	"sync"

	"github.com/kode4food/relay/internal/executor"
	"github.com/kode4food/relay/pkg/api"
)

// MockExecutor is a scripted executor.Executor for testing. Commands without
// a configured result succeed with their own text as output
type MockExecutor struct {
	results map[string]api.Result
	errors  map[string]error
	hooks   map[string]func(context.Context)
	invoked []string
	mu      sync.Mutex
}

var _ executor.Executor = (*MockExecutor)(nil)

// NewMockExecutor creates a mock executor that allows setting results and
// errors for specific commands
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		results: map[string]api.Result{},
		errors:  map[string]error{},
		hooks:   map[string]func(context.Context){},
		invoked: []string{},
	}
}

// Execute records the invocation and returns the configured result or error
func (m *MockExecutor) Execute(
	ctx context.Context, command string,
) (api.Result, error) {
	m.mu.Lock()
	m.invoked = append(m.invoked, command)
	hook := m.hooks[command]
	err, hasErr := m.errors[command]
	res, hasRes := m.results[command]
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if hasErr {
		return api.Result{}, err
	}
	if hasRes {
		return res, nil
	}
	return api.Result{Output: command + "\n"}, nil
}

// SetResult configures the result returned for a command
func (m *MockExecutor) SetResult(command string, res api.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[command] = res
}

// SetExitCode configures a command to exit with the given code and no output
func (m *MockExecutor) SetExitCode(command string, code int) {
	m.SetResult(command, api.Result{ExitCode: code})
}

// SetError configures the mock to fail a command with err
func (m *MockExecutor) SetError(command string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[command] = err
}

// OnExecute registers a hook called while a command is executing
func (m *MockExecutor) OnExecute(command string, fn func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[command] = fn
}

// Invocations returns the executed commands in order
func (m *MockExecutor) Invocations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invoked)
}

// WasInvoked reports whether a command was executed
func (m *MockExecutor) WasInvoked(command string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.invoked, command)
}
