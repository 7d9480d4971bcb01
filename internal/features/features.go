// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package features runs the per-target predictor chain: secondary
// structure, solvent accessibility, alignment statistics, the three
// contact scorers, and the two fusion passes. Every step is cached on its
// output artifact; a scorer hitting its wall-clock ceiling contributes an
// empty score source and the fusion stage proceeds without it.
package features

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/meshbio/contact-engine/internal/align"
	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

// Output is the result of one feature-stage run over a target.
type Output struct {
	// Contacts is the ranked stage-2 contact list in the target's local
	// coordinate frame, capped at types.MaxStage2Contacts.
	Contacts []types.Contact

	// Depth is the canonical alignment depth.
	Depth int

	// Secondary reports that the jackhmmer-derived alignment was selected.
	Secondary bool
}

// Runner drives the predictor chain for one workspace.
type Runner struct {
	inv     *toolio.Invoker
	ws      *workspace.Workspace
	builder *align.Builder
	tc      types.ToolchainConfig
	threads int
	log     io.Writer
}

// NewRunner wires a Runner to a workspace and toolchain.
func NewRunner(inv *toolio.Invoker, ws *workspace.Workspace, tc types.ToolchainConfig, dbs types.Databases, threads int, log io.Writer) *Runner {
	if threads < 1 {
		threads = 1
	}
	if log == nil {
		log = io.Discard
	}
	return &Runner{
		inv:     inv,
		ws:      ws,
		builder: align.NewBuilder(inv, ws, tc, dbs, threads),
		tc:      tc,
		threads: threads,
		log:     log,
	}
}

// Run executes the full chain for prefix against seqFile. The profile is
// always built from the job's own sequence and shared across domain runs.
func (r *Runner) Run(ctx context.Context, prefix, seqFile string) (Output, error) {
	if err := r.builder.Profile(ctx, r.ws.Fasta(r.ws.JobID)); err != nil {
		return Output{}, err
	}

	aln, err := r.builder.Build(ctx, prefix, seqFile)
	if err != nil {
		return Output{}, err
	}

	if err := r.secondaryStructure(ctx, prefix); err != nil {
		return Output{}, err
	}
	if err := r.solvent(ctx, prefix); err != nil {
		return Output{}, err
	}
	if err := r.alignStats(ctx, prefix, aln.Path); err != nil {
		return Output{}, err
	}
	if err := r.contactScores(ctx, prefix, aln); err != nil {
		return Output{}, err
	}

	contacts, err := r.fuse(ctx, prefix)
	if err != nil {
		return Output{}, err
	}
	return Output{Contacts: contacts, Depth: aln.Depth, Secondary: aln.Secondary}, nil
}

// secondaryStructure runs the raw predictor and two smoothing passes to
// produce the per-residue SS profile.
func (r *Runner) secondaryStructure(ctx context.Context, prefix string) error {
	data := func(name string) string { return filepath.Join(r.tc.DataDir, name) }

	raw := r.ws.SSRaw(prefix)
	if _, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:  "psipred",
		Prefix: prefix,
		Tool:   r.tc.Psipred,
		Args: []string{
			r.ws.Mtx(),
			data("weights.dat"), data("weights.dat2"), data("weights.dat3"),
		},
		Output:         raw,
		RedirectStdout: true,
	}); err != nil {
		return err
	}

	pass1 := r.ws.SSPass1(prefix)
	if _, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:          "psipass2",
		Prefix:         prefix,
		Tool:           r.tc.Psipass2,
		Args:           []string{data("weights_p2.dat"), "1", "1.0", "1.0", raw},
		Output:         pass1,
		RedirectStdout: true,
	}); err != nil {
		return err
	}

	_, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:          "psipass2",
		Prefix:         prefix,
		Tool:           r.tc.Psipass2,
		Args:           []string{data("weights_p2.dat"), "1", "1.0", "1.0", pass1},
		Output:         r.ws.SS2(prefix),
		RedirectStdout: true,
	})
	return err
}

func (r *Runner) solvent(ctx context.Context, prefix string) error {
	_, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:          "solvpred",
		Prefix:         prefix,
		Tool:           r.tc.Solvpred,
		Args:           []string{r.ws.Mtx(), filepath.Join(r.tc.DataDir, "weights_solv.dat")},
		Output:         r.ws.Solv(prefix),
		RedirectStdout: true,
	})
	return err
}

// alignStats produces the column and pair statistics. The tool writes both
// outputs itself, so the cache check covers the pair of artifacts.
func (r *Runner) alignStats(ctx context.Context, prefix, alnPath string) error {
	col := r.ws.ColStats(prefix)
	pair := r.ws.PairStats(prefix)
	if workspace.HasArtifact(col) && workspace.HasArtifact(pair) {
		fmt.Fprintf(r.log, "skipped: alnstats %s (cached)\n", prefix)
		return nil
	}
	_, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:        "alnstats",
		Prefix:       prefix,
		Tool:         r.tc.Alnstats,
		Args:         []string{alnPath, col, pair},
		DisableCache: true,
	})
	return err
}

// contactScores runs the three independent scorers when the alignment is
// deep enough, or synthesizes empty placeholders so the fusion stage
// always has well-formed inputs.
func (r *Runner) contactScores(ctx context.Context, prefix string, aln align.Result) error {
	psicov := r.ws.Psicov(prefix)
	evfold := r.ws.Evfold(prefix)
	ccmpred := r.ws.CCMpred(prefix)

	if aln.Depth < types.MinAlignmentDepth {
		fmt.Fprintf(r.log, "shallow alignment (%d < %d): skipping contact scorers for %s\n",
			aln.Depth, types.MinAlignmentDepth, prefix)
		for _, path := range []string{psicov, evfold, ccmpred} {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if werr := os.WriteFile(path, nil, 0o644); werr != nil {
					return fmt.Errorf("writing placeholder %s: %w", path, werr)
				}
			}
		}
		return nil
	}

	if _, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:          "psicov",
		Prefix:         prefix,
		Tool:           r.tc.Psicov,
		Args:           []string{"-z", strconv.Itoa(r.threads), "-o", "-d", "0.03", aln.Path},
		Output:         psicov,
		RedirectStdout: true,
		Timeout:        r.tc.ScoreTimeout,
	}); err != nil {
		return err
	}

	if _, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:          "freecontact",
		Prefix:         prefix,
		Tool:           r.tc.Freecontact,
		StdinPath:      aln.Path,
		Output:         evfold,
		RedirectStdout: true,
	}); err != nil {
		return err
	}

	_, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:   "ccmpred",
		Prefix:  prefix,
		Tool:    r.tc.CCMpred,
		Args:    []string{"-t", strconv.Itoa(r.threads), aln.Path, ccmpred},
		Output:  ccmpred,
		Timeout: r.tc.ScoreTimeout,
	})
	return err
}

// fuse runs the two fusion passes and returns the final ranked contact
// list. Stage 2's raw output is re-ranked in process and capped at
// MaxStage2Contacts.
func (r *Runner) fuse(ctx context.Context, prefix string) ([]types.Contact, error) {
	data := func(name string) string { return filepath.Join(r.tc.DataDir, name) }

	stage1 := r.ws.Stage1(prefix)
	args := []string{
		r.ws.ColStats(prefix), r.ws.PairStats(prefix),
		r.ws.Psicov(prefix), r.ws.Evfold(prefix), r.ws.CCMpred(prefix),
		r.ws.SS2(prefix), r.ws.Solv(prefix),
	}
	for _, band := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"} {
		args = append(args, data("weights_rr"+band+".dat"))
	}
	if _, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:          "fusion1",
		Prefix:         prefix,
		Tool:           r.tc.Stage1,
		Args:           args,
		Output:         stage1,
		RedirectStdout: true,
	}); err != nil {
		return nil, err
	}

	stage2raw := r.ws.Stage2Raw(prefix)
	if _, err := r.inv.Run(ctx, toolio.Invocation{
		Stage:  "fusion2",
		Prefix: prefix,
		Tool:   r.tc.Stage2,
		Args: []string{
			stage1, r.ws.ColStats(prefix), r.ws.SS2(prefix), r.ws.Solv(prefix),
			data("weights_pass2.dat"),
		},
		Output:         stage2raw,
		RedirectStdout: true,
	}); err != nil {
		return nil, err
	}

	stage2 := r.ws.Stage2(prefix)
	if workspace.HasArtifact(stage2) {
		return ReadContacts(stage2)
	}

	contacts, err := ReadContacts(stage2raw)
	if err != nil {
		return nil, err
	}
	contacts = TopK(contacts, types.MaxStage2Contacts)
	if err := WriteContacts(stage2, contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// TopK returns the k highest-probability contacts, ranked descending.
// The sort is stable so reruns over the same input emit identical bytes.
func TopK(contacts []types.Contact, k int) []types.Contact {
	sorted := make([]types.Contact, len(contacts))
	copy(sorted, contacts)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Prob > sorted[b].Prob
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// ReadContacts parses a contact list file of whitespace-separated
// "i j 0 8 probability" lines. An empty file yields no contacts.
func ReadContacts(path string) ([]types.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var contacts []types.Contact
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("%s: malformed contact line %q", path, line)
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: parsing %q: %w", path, line, err)
		}
		j, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s: parsing %q: %w", path, line, err)
		}
		prob, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: parsing %q: %w", path, line, err)
		}
		contacts = append(contacts, types.Contact{I: i, J: j, Prob: prob})
	}
	return contacts, scanner.Err()
}

// WriteContacts writes contacts in the "i j 0 8 probability" line format.
func WriteContacts(path string, contacts []types.Contact) error {
	var b strings.Builder
	for _, c := range contacts {
		fmt.Fprintf(&b, "%d %d 0 8 %.6f\n", c.I, c.J, c.Prob)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
