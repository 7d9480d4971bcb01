// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package toolio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor returns canned output without running a process.
type fakeExecutor struct {
	stdout   string
	stderr   string
	exitCode int
	calls    int

	// blockUntilCancel simulates a tool that never finishes: Run waits
	// for context cancellation and reports a killed process.
	blockUntilCancel bool
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	f.calls++
	if f.blockUntilCancel {
		<-ctx.Done()
		return -1, nil
	}
	io.WriteString(stdout, f.stdout)
	io.WriteString(stderr, f.stderr)
	return f.exitCode, nil
}

// memRecorder collects ledger records in memory.
type memRecorder struct {
	recs []Record
}

func (m *memRecorder) Record(rec Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

func TestRunRedirectsStdoutToOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "query.ss2")
	exec := &fakeExecutor{stdout: "ss2 content\n"}
	rec := &memRecorder{}
	inv := newInvoker(exec, rec, nil)

	res, err := inv.Run(context.Background(), Invocation{
		Stage:          "psipred",
		Prefix:         "query",
		Tool:           "psipred",
		Args:           []string{"query.mtx"},
		Output:         out,
		RedirectStdout: true,
	})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, "ss2 content\n", res.Stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ss2 content\n", string(data))

	require.Len(t, rec.recs, 1)
	assert.Equal(t, "psipred", rec.recs[0].Stage)
	assert.False(t, rec.recs[0].CacheHit)
}

func TestRunReusesNonEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "query.ss2")
	require.NoError(t, os.WriteFile(out, []byte("cached content\n"), 0o644))

	exec := &fakeExecutor{stdout: "fresh content\n"}
	rec := &memRecorder{}
	inv := newInvoker(exec, rec, nil)

	res, err := inv.Run(context.Background(), Invocation{
		Stage:          "psipred",
		Prefix:         "query",
		Tool:           "psipred",
		Output:         out,
		RedirectStdout: true,
	})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Equal(t, "cached content\n", res.Stdout)
	assert.Equal(t, 0, exec.calls, "cache hit must not execute the tool")

	require.Len(t, rec.recs, 1)
	assert.True(t, rec.recs[0].CacheHit)
}

func TestRunIgnoresEmptyCacheFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "query.psicov")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	exec := &fakeExecutor{stdout: "scores\n"}
	inv := newInvoker(exec, nil, nil)

	res, err := inv.Run(context.Background(), Invocation{
		Tool:           "psicov",
		Output:         out,
		RedirectStdout: true,
	})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 1, exec.calls, "empty file is not a cache hit")
}

func TestRunDisableCacheForcesExecution(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "query.aln")
	require.NoError(t, os.WriteFile(out, []byte("old\n"), 0o644))

	exec := &fakeExecutor{stdout: "new\n"}
	inv := newInvoker(exec, nil, nil)

	res, err := inv.Run(context.Background(), Invocation{
		Tool:           "hhblits",
		Output:         out,
		RedirectStdout: true,
		DisableCache:   true,
	})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 1, exec.calls)

	data, _ := os.ReadFile(out)
	assert.Equal(t, "new\n", string(data))
}

func TestRunNonZeroExitReturnsToolError(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "query.a3m")
	exec := &fakeExecutor{exitCode: 2, stderr: "database not found"}
	inv := newInvoker(exec, nil, nil)

	_, err := inv.Run(context.Background(), Invocation{
		Tool:           "hhblits",
		Args:           []string{"-i", "query.fasta"},
		Output:         out,
		RedirectStdout: true,
	})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 2, toolErr.ExitCode)
	assert.Contains(t, toolErr.Error(), "hhblits -i query.fasta")
	assert.Contains(t, toolErr.Error(), "database not found")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed run must not leave an output artifact")
}

func TestRunIgnoreExitError(t *testing.T) {
	exec := &fakeExecutor{exitCode: 1, stdout: "partial\n"}
	inv := newInvoker(exec, nil, nil)

	res, err := inv.Run(context.Background(), Invocation{Tool: "grep", IgnoreExitError: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "partial\n", res.Stdout)
}

func TestRunTimeoutYieldsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "query.ccmpred")
	exec := &fakeExecutor{blockUntilCancel: true}
	rec := &memRecorder{}
	var log bytes.Buffer
	inv := newInvoker(exec, rec, &log)

	res, err := inv.Run(context.Background(), Invocation{
		Stage:   "ccmpred",
		Prefix:  "query",
		Tool:    "ccmpred",
		Output:  out,
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err, "a timed-out bounded run is not a failure")
	assert.True(t, res.TimedOut)

	info, statErr := os.Stat(out)
	require.NoError(t, statErr)
	assert.Equal(t, int64(0), info.Size(), "timeout leaves an empty artifact")

	require.Len(t, rec.recs, 1)
	assert.True(t, rec.recs[0].TimedOut)
	assert.Contains(t, log.String(), "timeout:")
}
