// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbio/contact-engine/internal/toolio"
)

func TestOpenMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), "query")
	require.ErrorIs(t, err, ErrMissing)
}

func TestOpenExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "t42")
	require.NoError(t, err)
	assert.Equal(t, "t42", w.JobID)
	assert.Equal(t, filepath.Join(dir, "t42.40.fasta"), w.Fasta(w.DomainPrefix(40)))
	assert.Equal(t, filepath.Join(dir, "t42.metapsicov.stage3"), w.Stage3())
	assert.Equal(t, filepath.Join(dir, "t42.mtx"), w.Mtx())
}

func TestHasArtifact(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	assert.False(t, HasArtifact(filepath.Join(dir, "missing")))
	assert.False(t, HasArtifact(empty), "empty files are incomplete artifacts")
	assert.True(t, HasArtifact(full))
}

func TestRemoveIntermediatesKeepsFinals(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "query")
	require.NoError(t, err)

	keep := []string{w.Aln("query"), w.SS2("query"), w.Stage2("query"), w.Stage3()}
	drop := []string{w.A3M("query"), w.HHbAln("query"), w.HitTable("query"), w.Stage2Raw("query")}
	for _, p := range append(append([]string{}, keep...), drop...) {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	require.NoError(t, w.RemoveIntermediates([]string{"query"}))
	for _, p := range keep {
		assert.True(t, HasArtifact(p), "kept artifact %s", p)
	}
	for _, p := range drop {
		assert.False(t, HasArtifact(p), "removed artifact %s", p)
	}
}

func TestManifestRoundtrip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "query")
	require.NoError(t, err)

	m := Manifest{
		JobID:          "query",
		SequenceID:     "T1042",
		SequenceLength: 280,
		AlignmentDepth: 4600,
		SecondaryUsed:  true,
		Domains: []DomainRecord{
			{Start: 41, End: 120, Offset: 40, Depth: 6100, Contacts: 812},
		},
		Contacts:   4107,
		Elapsed:    90 * time.Minute,
		FinishedAt: time.Date(2026, 2, 11, 4, 30, 0, 0, time.UTC),
	}
	require.NoError(t, WriteManifest(m, w.Manifest()))

	got, err := ReadManifest(w.Manifest())
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestLedgerRecordAndList(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "query")
	require.NoError(t, err)

	ledger, err := OpenLedger(w)
	require.NoError(t, err)
	defer ledger.Close()

	recs := []toolio.Record{
		{Stage: "hhblits", Prefix: "query", Tool: "hhblits", Args: []string{"-i", "query.fasta"},
			Duration: 3 * time.Second, StartedAt: time.Now()},
		{Stage: "psicov", Prefix: "query.40", Tool: "psicov", TimedOut: true,
			Duration: 24 * time.Hour, StartedAt: time.Now()},
		{Stage: "hhblits", Prefix: "query", Tool: "hhblits", CacheHit: true, StartedAt: time.Now()},
	}
	for _, r := range recs {
		require.NoError(t, ledger.Record(r))
	}

	entries, err := ledger.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "hhblits", entries[0].Tool)
	assert.Equal(t, "-i query.fasta", entries[0].Args)
	assert.True(t, entries[1].TimedOut)
	assert.Equal(t, "query.40", entries[1].Prefix)
	assert.True(t, entries[2].CacheHit)
}
