// Package process spawns external commands and captures their output.
//
// Output is buffered in memory without bound. Callers must not use it for
// commands that can produce unbounded output.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/jakenelson/dockerfixture/internal/logger"
)

// Runner spawns processes. Implementations must be safe for concurrent use.
type Runner interface {
	// Start spawns argv in the background. The process is not tied to any
	// context: it keeps running until it exits on its own.
	Start(argv []string) (Process, error)

	// Run spawns argv, waits for it to exit and returns its buffered output.
	// A non-zero exit code is not an error at this level.
	Run(ctx context.Context, argv []string) (*Result, error)
}

// Process is a handle to a spawned command.
type Process interface {
	// Alive reports whether the process has not exited yet.
	Alive() bool

	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)

	// ExitCode returns the exit code, or -1 while the process is alive.
	ExitCode() int

	Stdout() string
	Stderr() string
}

// Result holds the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecRunner runs real processes through os/exec.
type ExecRunner struct{}

// Start implements Runner.
func (ExecRunner) Start(argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, &SpawnError{Err: errors.New("empty command")}
	}
	logger.Debug().Str("cmd", Format(argv)).Msg("starting")

	p := &execProcess{
		cmd:      exec.Command(argv[0], argv[1:]...),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	p.cmd.Stdout = &p.stdout
	p.cmd.Stderr = &p.stderr

	if err := p.cmd.Start(); err != nil {
		return nil, &SpawnError{Argv: argv, Err: err}
	}
	go p.wait()
	return p, nil
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, &SpawnError{Err: errors.New("empty command")}
	}
	logger.Debug().Str("cmd", Format(argv)).Msg("executing")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, &SpawnError{Argv: argv, Err: err}
}

// RunToCompletion runs argv and fails with *CommandFailedError unless the exit
// code is one of acceptable (defaults to 0).
func RunToCompletion(ctx context.Context, r Runner, argv []string, acceptable ...int) (*Result, error) {
	if len(acceptable) == 0 {
		acceptable = []int{0}
	}
	result, err := r.Run(ctx, argv)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(acceptable, result.ExitCode) {
		return result, &CommandFailedError{
			Argv:     argv,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}

// Format renders argv for logs, quoting tokens that contain spaces.
func Format(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if strings.Contains(a, " ") {
			a = "'" + a + "'"
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout lockedBuffer
	stderr lockedBuffer
	done   chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode = 0
	case errors.As(err, &exitErr):
		p.exitCode = exitErr.ExitCode()
	default:
		p.waitErr = err
	}
	p.mu.Unlock()

	close(p.done)
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.waitErr
}

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *execProcess) Stdout() string { return p.stdout.String() }
func (p *execProcess) Stderr() string { return p.stderr.String() }

// lockedBuffer lets the exec copier goroutine write while callers read.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
