package catt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode selects how an invocation is run.
type Mode int

const (
	// Blocking runs catt to completion and returns its trimmed stdout.
	Blocking Mode = iota
	// DetachedLocalCast starts catt in its own process group and only
	// reports failure if it exits within the grace window.
	DetachedLocalCast
)

const (
	// DefaultGrace is how long a detached local cast must survive
	// before it is considered started.
	DefaultGrace = 3 * time.Second
	// DetachedStartedMsg is the result text of a detached local cast
	// that outlived its grace window.
	DetachedStartedMsg = "Casting local file in background..."

	defaultBinary   = "catt"
	terminateGrace  = 2 * time.Second
	stderrTailLimit = 64 * 1024
)

// Result is the outcome of a successful invocation. Process is only set
// for DetachedLocalCast.
type Result struct {
	Output  string
	Process Process
}

// Runner invokes the catt executable.
type Runner struct {
	Path        string
	Grace       time.Duration
	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// NewRunner returns a Runner for the catt binary at path. An empty path
// resolves "catt" through PATH.
func NewRunner(path string) *Runner {
	return &Runner{
		Path:  path,
		Grace: DefaultGrace,
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (r *Runner) Log() *zerolog.Logger {
	if r.LogOutput != nil {
		r.initLogOnce.Do(func() {
			r.Logger = zerolog.New(r.LogOutput).With().Timestamp().Logger()
		})
	}
	return &r.Logger
}

func (r *Runner) binary() string {
	if r.Path == "" {
		return defaultBinary
	}
	return r.Path
}

func (r *Runner) grace() time.Duration {
	if r.Grace <= 0 {
		return DefaultGrace
	}
	return r.Grace
}

// LookPath resolves the catt executable.
func (r *Runner) LookPath() (string, error) {
	p, err := exec.LookPath(r.binary())
	if err != nil {
		return "", ErrToolMissing
	}
	return p, nil
}

// Invoke dispatches args in the requested mode.
func (r *Runner) Invoke(ctx context.Context, args []string, mode Mode) (Result, error) {
	switch mode {
	case DetachedLocalCast:
		p, err := r.StartDetached(ctx, args)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: DetachedStartedMsg, Process: p}, nil
	default:
		out, err := r.Run(ctx, args)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: out}, nil
	}
}

// Run executes catt with args and waits for it to exit.
func (r *Runner) Run(ctx context.Context, args []string) (string, error) {
	bin, err := r.LookPath()
	if err != nil {
		r.Log().Error().Str("Method", "Run").Strs("Args", args).Err(err).Msg("catt lookup failed")
		return "", err
	}

	quiet := Verb(args) == "status"
	if !quiet {
		r.Log().Debug().Str("Method", "Run").Strs("Args", args).Msg("running catt")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr := &CommandError{
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
			if !quiet {
				r.Log().Error().Str("Method", "Run").Strs("Args", args).Int("ExitCode", cerr.ExitCode).Str("Stderr", cerr.Stderr).Msg("catt failed")
			}
			return "", cerr
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrToolMissing
		}
		return "", fmt.Errorf("catt %s: %w", Verb(args), err)
	}

	out := strings.TrimSpace(stdout.String())
	if !quiet && out != "" {
		r.Log().Debug().Str("Method", "Run").Str("Stdout", out).Msg("catt finished")
	}
	return out, nil
}

// StartDetached starts catt in a new process group. If the process exits
// before the grace window elapses the invocation is a failure carrying its
// stderr; otherwise the running process is returned.
func (r *Runner) StartDetached(ctx context.Context, args []string) (Process, error) {
	bin, err := r.LookPath()
	if err != nil {
		r.Log().Error().Str("Method", "StartDetached").Strs("Args", args).Err(err).Msg("catt lookup failed")
		return nil, err
	}

	r.Log().Debug().Str("Method", "StartDetached").Strs("Args", args).Dur("Grace", r.grace()).Msg("starting detached catt")

	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd := exec.Command(bin, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = terminateGrace

	p, err := StartGroup(cmd, terminateGrace)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrToolMissing
		}
		return nil, fmt.Errorf("start detached catt: %w", err)
	}

	timer := time.NewTimer(r.grace())
	defer timer.Stop()

	select {
	case <-p.Done():
		cerr := &CommandError{
			Args:      args,
			ExitCode:  p.ExitCode(),
			Stderr:    strings.TrimSpace(stderr.String()),
			EarlyExit: true,
		}
		r.Log().Error().Str("Method", "StartDetached").Int("ExitCode", cerr.ExitCode).Str("Stderr", cerr.Stderr).Msg("local cast exited early")
		return nil, cerr
	case <-ctx.Done():
		_ = p.Terminate()
		return nil, ctx.Err()
	case <-timer.C:
		r.Log().Debug().Str("Method", "StartDetached").Int("Pid", p.Pid()).Msg("local cast running in background")
		return p, nil
	}
}

// Verb returns the catt sub-command named in args, skipping the device flag.
func Verb(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-d" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}

// tailBuffer keeps the last limit bytes written to it. exec copies stderr
// from its own goroutine so access is serialized.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
