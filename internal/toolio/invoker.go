// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolio executes the external predictor programs. Every stage of
// the pipeline funnels its tool runs through Invoker, which provides the
// pipeline's sole memoization mechanism: when an invocation's output
// artifact already exists and is non-empty, the tool is not executed and
// the artifact is reused. This makes every stage idempotent across
// controller restarts against the same workspace.
package toolio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Invocation describes one external tool run. Arguments are always passed
// as a vector; no shell is involved anywhere.
type Invocation struct {
	// Stage and Prefix identify the pipeline step and target (job id or
	// job-id.offset) for logging and the run ledger.
	Stage  string
	Prefix string

	// Tool is the binary name or path; Args is its argument vector.
	Tool string
	Args []string

	// StdinPath, when set, feeds the named file to the tool's stdin.
	StdinPath string

	// Output is the artifact path gating the cache. A non-empty file at
	// this path short-circuits execution. When RedirectStdout is set the
	// tool's stdout is written here on success; tools that write Output
	// themselves leave RedirectStdout unset.
	Output         string
	RedirectStdout bool

	// DisableCache forces execution even when Output is already present.
	DisableCache bool

	// IgnoreExitError treats a non-zero exit as success.
	IgnoreExitError bool

	// Timeout, when non-zero, bounds the wall-clock time of the run.
	// Hitting the ceiling is not an error: Output is truncated to empty
	// and the result reports TimedOut.
	Timeout time.Duration
}

// Result is the outcome of an invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	CacheHit bool
	TimedOut bool
}

// ToolError reports an external tool that exited non-zero without being
// the tolerated timeout case. It carries the full command line and the
// captured stderr for the diagnostic message.
type ToolError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("tool failed (exit %d): %s", e.ExitCode, e.Command)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

// Record is one ledger entry describing an invocation, including cache hits.
type Record struct {
	Stage     string
	Prefix    string
	Tool      string
	Args      []string
	ExitCode  int
	CacheHit  bool
	TimedOut  bool
	Duration  time.Duration
	StartedAt time.Time
}

// Recorder receives one Record per invocation. The workspace run ledger
// implements it; a nil Recorder disables recording.
type Recorder interface {
	Record(rec Record) error
}

// executor abstracts process execution for testing.
type executor interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Invoker runs external tools with caching, redirection, and timeout
// handling. The zero value is not usable; construct with NewInvoker.
type Invoker struct {
	exec executor
	rec  Recorder
	log  io.Writer
}

// NewInvoker returns an Invoker executing real processes. rec may be nil;
// log receives one status line per invocation.
func NewInvoker(rec Recorder, log io.Writer) *Invoker {
	if log == nil {
		log = io.Discard
	}
	return &Invoker{exec: osExecutor{}, rec: rec, log: log}
}

// newInvoker injects a fake executor for tests.
func newInvoker(exec executor, rec Recorder, log io.Writer) *Invoker {
	if log == nil {
		log = io.Discard
	}
	return &Invoker{exec: exec, rec: rec, log: log}
}

// Run executes inv. A cached artifact is returned without executing
// anything; a timeout on a bounded invocation yields an empty artifact and
// a TimedOut result; any other non-zero exit (unless ignored) returns a
// *ToolError.
func (v *Invoker) Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Output != "" && !inv.DisableCache {
		if info, err := os.Stat(inv.Output); err == nil && info.Size() > 0 {
			data, err := os.ReadFile(inv.Output)
			if err != nil {
				return Result{}, fmt.Errorf("reading cached %s: %w", inv.Output, err)
			}
			fmt.Fprintf(v.log, "skipped: %s %s (cached %s)\n",
				inv.Stage, inv.Prefix, filepath.Base(inv.Output))
			res := Result{Stdout: string(data), CacheHit: true}
			v.record(inv, res, 0, time.Now())
			return res, nil
		}
	}

	runCtx := ctx
	cancel := func() {}
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	fmt.Fprintf(v.log, "running: %s %s\n", inv.Tool, strings.Join(inv.Args, " "))

	var stdin io.Reader
	if inv.StdinPath != "" {
		f, err := os.Open(inv.StdinPath)
		if err != nil {
			return Result{}, fmt.Errorf("opening stdin file %s: %w", inv.StdinPath, err)
		}
		defer f.Close()
		stdin = f
	}

	var stdout, stderr bytes.Buffer
	started := time.Now()
	code, err := v.exec.Run(runCtx, inv.Tool, inv.Args, stdin, &stdout, &stderr)
	elapsed := time.Since(started)

	if inv.Timeout > 0 && runCtx.Err() == context.DeadlineExceeded {
		if inv.Output != "" {
			if werr := writeAtomic(inv.Output, nil); werr != nil {
				return Result{}, werr
			}
		}
		fmt.Fprintf(v.log, "timeout: %s %s after %v (continuing with empty output)\n",
			inv.Stage, inv.Prefix, inv.Timeout)
		res := Result{TimedOut: true, ExitCode: code}
		v.record(inv, res, elapsed, started)
		return res, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("starting %s: %w", inv.Tool, err)
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: code,
	}
	if code != 0 && !inv.IgnoreExitError {
		return res, &ToolError{
			Command:  inv.Tool + " " + strings.Join(inv.Args, " "),
			ExitCode: code,
			Stderr:   stderr.String(),
		}
	}

	if inv.Output != "" && inv.RedirectStdout {
		if werr := writeAtomic(inv.Output, stdout.Bytes()); werr != nil {
			return Result{}, werr
		}
	}
	v.record(inv, res, elapsed, started)
	return res, nil
}

func (v *Invoker) record(inv Invocation, res Result, d time.Duration, started time.Time) {
	if v.rec == nil {
		return
	}
	rec := Record{
		Stage:     inv.Stage,
		Prefix:    inv.Prefix,
		Tool:      inv.Tool,
		Args:      inv.Args,
		ExitCode:  res.ExitCode,
		CacheHit:  res.CacheHit,
		TimedOut:  res.TimedOut,
		Duration:  d,
		StartedAt: started,
	}
	if err := v.rec.Record(rec); err != nil {
		fmt.Fprintf(v.log, "warning: ledger record failed: %v\n", err)
	}
}

// writeAtomic writes data to path via a temp file and rename, so a partial
// write never looks like a complete cached artifact.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".toolio-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
