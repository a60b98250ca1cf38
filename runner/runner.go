// Package runner executes external commands with output capture, environment
// injection and bounded retry. It is the seam between the release pipeline
// and the build tool it drives.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Result holds the captured output and exit state of one invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Tail returns the last n bytes of combined output, for log excerpts in
// error reports.
func (r *Result) Tail(n int) string {
	combined := r.Stdout + r.Stderr
	if len(combined) <= n {
		return combined
	}
	return combined[len(combined)-n:]
}

// Runner invokes one program. Implementations must be safe for concurrent
// use; the release pipeline fans builds out across components.
type Runner interface {
	// Run executes the program with the given arguments and returns the
	// captured result. A non-zero exit is an error; the Result is still
	// populated so callers can report output.
	Run(ctx context.Context, args []string, opts ...Option) (*Result, error)
}

// Options configures one invocation.
type Options struct {
	// WorkingDir is the directory the command runs in.
	WorkingDir string

	// Env holds extra environment variables appended to the current
	// process environment.
	Env map[string]string

	// MaxAttempts bounds retries for transiently failing invocations.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// Stdout, when set, receives the command's stdout in addition to
	// capture (for live build log streaming).
	Stdout io.Writer
}

// Option mutates Options.
type Option func(*Options)

// InDir sets the working directory.
func InDir(dir string) Option {
	return func(o *Options) { o.WorkingDir = dir }
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithAttempts bounds retries.
func WithAttempts(n int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxAttempts = n
		o.RetryDelay = delay
	}
}

// WithStdout streams stdout to w while still capturing it.
func WithStdout(w io.Writer) Option {
	return func(o *Options) { o.Stdout = w }
}

// Command runs a fixed program via os/exec.
type Command struct {
	program string
}

// New returns a Runner for the named program.
func New(program string) *Command {
	return &Command{program: program}
}

// Run implements Runner.
func (c *Command) Run(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	options := Options{MaxAttempts: 1}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}

	var result *Result
	var err error
	for attempt := 1; attempt <= options.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("cancelled while waiting to retry %s: %w", c.program, ctx.Err())
			case <-time.After(options.RetryDelay):
			}
		}
		result, err = c.runOnce(ctx, args, &options)
		if err == nil {
			return result, nil
		}
	}
	return result, err
}

func (c *Command) runOnce(ctx context.Context, args []string, options *Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.program, args...)
	cmd.Dir = options.WorkingDir

	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	if options.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, options.Stdout)
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result.ExitCode = 0
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	if runErr != nil {
		return result, fmt.Errorf("%s exited with code %d: %w", c.program, result.ExitCode, runErr)
	}
	return result, nil
}
