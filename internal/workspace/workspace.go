// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace manages the job directory holding every intermediate
// and final artifact of a pipeline run. Artifacts are keyed by a prefix:
// the job id for the full-sequence run, "<job>.<offset>" for domain runs.
// The directory is reusable across controller invocations; a non-empty
// artifact is treated as complete and is never recomputed.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// ErrMissing reports that the designated workspace directory does not
// exist. The caller must create it beforehand.
var ErrMissing = fmt.Errorf("workspace directory does not exist")

// Workspace is one job's artifact directory.
type Workspace struct {
	Dir   string
	JobID string
}

// Open validates that dir exists and returns a Workspace for jobID.
func Open(dir, jobID string) (*Workspace, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, dir)
		}
		return nil, fmt.Errorf("checking workspace %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace path %s is not a directory", dir)
	}
	return &Workspace{Dir: dir, JobID: jobID}, nil
}

// Path joins an artifact name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// DomainPrefix returns the artifact prefix for a domain run at the given
// global offset.
func (w *Workspace) DomainPrefix(offset int) string {
	return fmt.Sprintf("%s.%d", w.JobID, offset)
}

// Per-prefix artifacts.

func (w *Workspace) Fasta(prefix string) string     { return w.Path(prefix + ".fasta") }
func (w *Workspace) A3M(prefix string) string       { return w.Path(prefix + ".a3m") }
func (w *Workspace) A3MBackup(prefix string) string { return w.Path(prefix + ".a3m.pre") }
func (w *Workspace) HHbAln(prefix string) string    { return w.Path(prefix + ".hhbaln") }
func (w *Workspace) JackA3M(prefix string) string   { return w.Path(prefix + ".jack.a3m") }
func (w *Workspace) JackAln(prefix string) string   { return w.Path(prefix + ".jackaln") }
func (w *Workspace) Aln(prefix string) string       { return w.Path(prefix + ".aln") }
func (w *Workspace) HitTable(prefix string) string  { return w.Path(prefix + ".tbl") }
func (w *Workspace) HitIDs(prefix string) string    { return w.Path(prefix + ".ids") }
func (w *Workspace) Fetched(prefix string) string   { return w.Path(prefix + ".fetch.fasta") }
func (w *Workspace) SeqDir(prefix string) string    { return w.Path(prefix + "_seqs") }
func (w *Workspace) Library(prefix string) string   { return w.Path(prefix + "_lib") }
func (w *Workspace) SSRaw(prefix string) string     { return w.Path(prefix + ".ss") }
func (w *Workspace) SSPass1(prefix string) string   { return w.Path(prefix + ".ss1") }
func (w *Workspace) SS2(prefix string) string       { return w.Path(prefix + ".ss2") }
func (w *Workspace) Solv(prefix string) string      { return w.Path(prefix + ".solv") }
func (w *Workspace) ColStats(prefix string) string  { return w.Path(prefix + ".colstats") }
func (w *Workspace) PairStats(prefix string) string { return w.Path(prefix + ".pairstats") }
func (w *Workspace) Psicov(prefix string) string    { return w.Path(prefix + ".psicov") }
func (w *Workspace) Evfold(prefix string) string    { return w.Path(prefix + ".evfold") }
func (w *Workspace) CCMpred(prefix string) string   { return w.Path(prefix + ".ccmpred") }
func (w *Workspace) Stage1(prefix string) string    { return w.Path(prefix + ".metapsicov.stage1") }
func (w *Workspace) Stage2Raw(prefix string) string { return w.Path(prefix + ".metapsicov.stage2raw") }
func (w *Workspace) Stage2(prefix string) string    { return w.Path(prefix + ".metapsicov.stage2") }

// Job-level artifacts. Profile files are keyed by job id and shared by
// every domain run of the job.

func (w *Workspace) Chk() string      { return w.Path(w.JobID + ".chk") }
func (w *Workspace) Mtx() string      { return w.Path(w.JobID + ".mtx") }
func (w *Workspace) HHR() string      { return w.Path(w.JobID + ".hhr") }
func (w *Workspace) Stage3() string   { return w.Path(w.JobID + ".metapsicov.stage3") }
func (w *Workspace) Manifest() string { return w.Path(w.JobID + ".manifest.yaml") }

// HasArtifact reports whether path exists with non-zero size, the
// completeness criterion used by the cache everywhere.
func HasArtifact(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// RemoveIntermediates deletes the transient artifacts of the given
// prefixes, keeping the alignment, feature profiles, fusion outputs, the
// final report, and the manifest. Called after a successful run unless the
// keep-temporary-files flag is set.
func (w *Workspace) RemoveIntermediates(prefixes []string) error {
	var firstErr error
	for _, p := range prefixes {
		paths := []string{
			w.A3M(p), w.A3MBackup(p), w.HHbAln(p), w.JackA3M(p), w.JackAln(p),
			w.HitTable(p), w.HitIDs(p), w.Fetched(p), w.SSRaw(p), w.SSPass1(p), w.Stage2Raw(p),
			w.Library(p) + ".ffdata", w.Library(p) + ".ffindex",
		}
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = fmt.Errorf("removing %s: %w", path, err)
			}
		}
		if err := os.RemoveAll(w.SeqDir(p)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("removing %s: %w", w.SeqDir(p), err)
		}
	}
	return firstErr
}
