// Package executor runs step commands and captures their results
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/kode4food/relay/pkg/api"
	"github.com/kode4food/relay/pkg/log"
)

type (
	// Executor runs a command string and reports its standard output and
	// exit status. A command that runs and exits non-zero is a result, not
	// an error
	Executor interface {
		Execute(ctx context.Context, command string) (api.Result, error)
	}

	// ShellExecutor runs commands through a shell with "-c"
	ShellExecutor struct {
		shell   string
		dir     string
		env     []string
		timeout time.Duration
	}

	// Option configures a ShellExecutor
	Option func(*ShellExecutor)
)

const (
	// DefaultShell is the shell used when none is configured
	DefaultShell = "/bin/sh"

	// pipes may be held open by grandchildren after the shell is killed
	waitDelay = 500 * time.Millisecond
)

var (
	ErrExecution    = errors.New("command could not be executed")
	ErrCommandEmpty = errors.New("command empty")
	ErrTimeout      = errors.New("command timed out")
)

var _ Executor = (*ShellExecutor)(nil)

// NewShellExecutor creates an executor using the given shell, falling back
// to DefaultShell when shell is empty
func NewShellExecutor(shell string, opts ...Option) *ShellExecutor {
	if shell == "" {
		shell = DefaultShell
	}
	e := &ShellExecutor{shell: shell}
	for _, o := range opts {
		o(e)
	}
	return e
}

// WithTimeout bounds each command's run time. Zero disables the bound
func WithTimeout(d time.Duration) Option {
	return func(e *ShellExecutor) {
		e.timeout = d
	}
}

// WithDir sets the working directory of executed commands
func WithDir(dir string) Option {
	return func(e *ShellExecutor) {
		e.dir = dir
	}
}

// WithEnv adds KEY=VALUE pairs to the environment commands inherit from
// the process. Later pairs override earlier ones
func WithEnv(env []string) Option {
	return func(e *ShellExecutor) {
		e.env = append(e.env, env...)
	}
}

// Execute runs the command and waits for it to finish. Standard error is
// logged but not captured in the result
func (e *ShellExecutor) Execute(
	ctx context.Context, command string,
) (api.Result, error) {
	if command == "" {
		return api.Result{}, ErrCommandEmpty
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return api.Result{}, err
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Dir = e.dir
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return api.Result{}, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	err := cmd.Wait()
	dur := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && e.timeout > 0 {
			return api.Result{}, fmt.Errorf("%w after %s: %s",
				ErrTimeout, e.timeout, command)
		}
		return api.Result{}, ctxErr
	}

	res := api.Result{Output: stdout.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return api.Result{}, fmt.Errorf("%w: %w", ErrExecution, err)
		}
		res.ExitCode = exitCode(exitErr)
	}

	if stderr.Len() > 0 {
		slog.Debug("Command wrote to stderr",
			log.Command(command),
			slog.String("stderr", stderr.String()))
	}
	slog.Debug("Command finished",
		log.Command(command),
		log.ExitCode(res.ExitCode),
		slog.Duration("duration", dur))
	return res, nil
}

// exitCode reports a signal death as the negated signal number
func exitCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return err.ExitCode()
}
