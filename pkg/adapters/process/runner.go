// Package process runs allow-listed local commands.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ErrNotRegistered is returned for a name missing from the allow-list.
var ErrNotRegistered = errors.New("process not registered")

// Runner executes local processes.
// It follows a Strict Registry pattern for security (Allow-Listing).
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
}

// Result is the captured outcome of one run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Lines splits Stdout into lines without their terminators.
func (r Result) Lines() []string {
	out := strings.ReplaceAll(r.Stdout, "\r\n", "\n")
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Registered returns the allow-listed names in order.
func (r *Runner) Registered() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the registered process name.
// vars are never passed as command-line flags; each becomes a GOKERNEL_ARG_<KEY>
// environment variable so callers cannot inject arguments.
// A non-zero exit is reported as an error that includes Stderr.
func (r *Runner) Run(ctx context.Context, name string, vars map[string]any) (Result, error) {
	proc, ok := r.registry[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(cmd.Environ(), envVars(vars)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if err != nil {
		return res, fmt.Errorf("execution of %s failed: %w. Stderr: %s", name, err, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

func envVars(vars map[string]any) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			if b, err := json.Marshal(v); err == nil {
				val = string(b)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, fmt.Sprintf("GOKERNEL_ARG_%s=%s", strings.ToUpper(k), val))
	}
	sort.Strings(env)
	return env
}
