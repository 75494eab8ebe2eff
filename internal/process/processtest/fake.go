// Package processtest provides a scripted process.Runner for tests.
//
// Handlers are matched against the arguments after the binary, joined by a
// single space, using prefix matching in registration order.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jakenelson/dockerfixture/internal/process"
)

// RunFunc produces the result of a blocking command.
type RunFunc func(argv []string) (*process.Result, error)

// StartFunc produces a background process.
type StartFunc func(argv []string) (process.Process, error)

type runHandler struct {
	prefix string
	fn     RunFunc
}

type startHandler struct {
	prefix string
	fn     StartFunc
}

// Runner is a process.Runner whose behaviour is scripted per command prefix.
type Runner struct {
	mu     sync.Mutex
	runs   []runHandler
	starts []startHandler
	calls  [][]string
}

// NewRunner creates an empty scripted runner. Unmatched commands fail.
func NewRunner() *Runner {
	return &Runner{}
}

// OnRun registers fn for blocking commands whose arguments start with prefix.
func (r *Runner) OnRun(prefix string, fn RunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, runHandler{prefix: prefix, fn: fn})
}

// OnStart registers fn for background commands whose arguments start with prefix.
func (r *Runner) OnStart(prefix string, fn StartFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, startHandler{prefix: prefix, fn: fn})
}

// Reply registers a fixed result for blocking commands matching prefix.
func (r *Runner) Reply(prefix string, exitCode int, stdout string) {
	r.OnRun(prefix, func([]string) (*process.Result, error) {
		return &process.Result{ExitCode: exitCode, Stdout: stdout}, nil
	})
}

// Run implements process.Runner.
func (r *Runner) Run(ctx context.Context, argv []string) (*process.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := r.record(argv)

	r.mu.Lock()
	var fn RunFunc
	for _, h := range r.runs {
		if strings.HasPrefix(key, h.prefix) {
			fn = h.fn
			break
		}
	}
	r.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("unexpected command: %s", key)
	}
	return fn(argv)
}

// Start implements process.Runner.
func (r *Runner) Start(argv []string) (process.Process, error) {
	key := r.record(argv)

	r.mu.Lock()
	var fn StartFunc
	for _, h := range r.starts {
		if strings.HasPrefix(key, h.prefix) {
			fn = h.fn
			break
		}
	}
	r.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("unexpected background command: %s", key)
	}
	return fn(argv)
}

func (r *Runner) record(argv []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), argv...))
	if len(argv) == 0 {
		return ""
	}
	return strings.Join(argv[1:], " ")
}

// Calls returns every recorded argv in call order.
func (r *Runner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor counts recorded commands whose arguments start with prefix.
func (r *Runner) CallsFor(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.calls {
		if len(c) > 0 && strings.HasPrefix(strings.Join(c[1:], " "), prefix) {
			count++
		}
	}
	return count
}

// Flag returns the value following name in argv, or "" when absent.
func Flag(argv []string, name string) string {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == name {
			return argv[i+1]
		}
	}
	return ""
}

// Process is a controllable process.Process.
type Process struct {
	mu       sync.Mutex
	alive    bool
	exitCode int
	stdout   string
	stderr   string
	done     chan struct{}
}

// NewProcess returns a process that is alive until Exit is called.
func NewProcess() *Process {
	return &Process{alive: true, exitCode: -1, done: make(chan struct{})}
}

// Exited returns a process that has already finished.
func Exited(code int, stderr string) *Process {
	p := NewProcess()
	p.stderr = stderr
	p.Exit(code)
	return p
}

// Exit marks the process as finished with code. Subsequent calls are ignored.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return
	}
	p.alive = false
	p.exitCode = code
	close(p.done)
}

// SetOutput replaces the captured streams.
func (p *Process) SetOutput(stdout, stderr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stdout, p.stderr = stdout, stderr
}

func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Process) Wait() (int, error) {
	<-p.done
	return p.ExitCode(), nil
}

func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *Process) Stdout() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdout
}

func (p *Process) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stderr
}

var (
	_ process.Runner  = (*Runner)(nil)
	_ process.Process = (*Process)(nil)
)
