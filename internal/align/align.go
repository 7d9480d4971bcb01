// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package align builds the canonical multiple-sequence alignment for a
// target. A primary hhblits alignment is always built; when it is shallow,
// a looser jackhmmer-seeded search against the depth database builds a
// competing alignment, and whichever is strictly deeper wins (ties keep
// the primary).
package align

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/meshbio/contact-engine/internal/fasta"
	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

// Result describes the canonical alignment chosen for a target.
type Result struct {
	// Path is the canonical aligned-columns-only alignment file.
	Path string

	// Depth is its number of aligned sequences.
	Depth int

	// Secondary reports that the jackhmmer-derived alignment won.
	Secondary bool
}

// Builder runs the alignment tool chain for one workspace.
type Builder struct {
	inv     *toolio.Invoker
	ws      *workspace.Workspace
	tc      types.ToolchainConfig
	dbs     types.Databases
	threads int
}

// NewBuilder wires a Builder to a workspace and toolchain.
func NewBuilder(inv *toolio.Invoker, ws *workspace.Workspace, tc types.ToolchainConfig, dbs types.Databases, threads int) *Builder {
	if threads < 1 {
		threads = 1
	}
	return &Builder{inv: inv, ws: ws, tc: tc, dbs: dbs, threads: threads}
}

// Profile builds the job-level sequence profile (.chk checkpoint and .mtx
// matrix) from seqFile against the profile database. The profile is keyed
// by job id and shared by every domain run.
func (b *Builder) Profile(ctx context.Context, seqFile string) error {
	chk := b.ws.Chk()
	if _, err := b.inv.Run(ctx, toolio.Invocation{
		Stage:  "profile",
		Prefix: b.ws.JobID,
		Tool:   b.tc.Blastpgp,
		Args: []string{
			"-a", strconv.Itoa(b.threads),
			"-b", "0", "-j", "3", "-h", "0.001", "-v", "5000",
			"-d", b.dbs.Uniref90,
			"-i", seqFile,
			"-C", chk,
		},
		Output: chk,
	}); err != nil {
		return err
	}

	_, err := b.inv.Run(ctx, toolio.Invocation{
		Stage:  "profile",
		Prefix: b.ws.JobID,
		Tool:   b.tc.Makemat,
		Args:   []string{"-P", strings.TrimSuffix(chk, ".chk")},
		Output: b.ws.Mtx(),
	})
	return err
}

// Build produces the canonical alignment for prefix from seqFile and
// returns its path and depth. Every tool step is cached on its output
// artifact, so a rerun against a populated workspace executes nothing.
func (b *Builder) Build(ctx context.Context, prefix, seqFile string) (Result, error) {
	a3m := b.ws.A3M(prefix)
	if _, err := b.inv.Run(ctx, toolio.Invocation{
		Stage:  "hhblits",
		Prefix: prefix,
		Tool:   b.tc.HHBlits,
		Args: []string{
			"-i", seqFile,
			"-d", b.dbs.HHBlitsSeq,
			"-oa3m", a3m,
			"-n", "3", "-e", "0.001", "-diff", "inf", "-cov", "20",
			"-cpu", strconv.Itoa(b.threads),
		},
		Output: a3m,
	}); err != nil {
		return Result{}, err
	}

	depthPrimary, err := stripInserts(a3m, b.ws.HHbAln(prefix))
	if err != nil {
		return Result{}, err
	}

	depthSecondary := 0
	if depthPrimary < types.DeepAlignmentDepth {
		depthSecondary, err = b.deepen(ctx, prefix, seqFile)
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{Path: b.ws.Aln(prefix), Depth: depthPrimary}
	source := b.ws.HHbAln(prefix)
	if depthSecondary > depthPrimary {
		source = b.ws.JackAln(prefix)
		res.Depth = depthSecondary
		res.Secondary = true
	}
	if !workspace.HasArtifact(res.Path) {
		if err := copyFile(source, res.Path); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// deepen runs the fallback iterative search and returns the depth of the
// resulting secondary alignment.
func (b *Builder) deepen(ctx context.Context, prefix, seqFile string) (int, error) {
	tbl := b.ws.HitTable(prefix)
	if _, err := b.inv.Run(ctx, toolio.Invocation{
		Stage:  "jackhmmer",
		Prefix: prefix,
		Tool:   b.tc.Jackhmmer,
		Args: []string{
			"--tblout", tbl,
			"-N", "3", "-E", "10",
			"--cpu", strconv.Itoa(b.threads),
			seqFile, b.dbs.Uniref100,
		},
		Output: tbl,
	}); err != nil {
		return 0, err
	}

	ids, err := parseHitTable(tbl)
	if err != nil {
		return 0, err
	}
	idsPath := b.ws.HitIDs(prefix)
	if !workspace.HasArtifact(idsPath) {
		if err := os.WriteFile(idsPath, []byte(strings.Join(ids, "\n")+"\n"), 0o644); err != nil {
			return 0, fmt.Errorf("writing %s: %w", idsPath, err)
		}
	}

	fetched := b.ws.Fetched(prefix)
	if _, err := b.inv.Run(ctx, toolio.Invocation{
		Stage:          "sfetch",
		Prefix:         prefix,
		Tool:           b.tc.EslSfetch,
		Args:           []string{"-f", b.dbs.Uniref100, idsPath},
		Output:         fetched,
		RedirectStdout: true,
	}); err != nil {
		return 0, err
	}

	hits, err := fasta.ReadAll(fetched)
	if err != nil {
		return 0, err
	}
	query, err := fasta.ReadSingle(seqFile)
	if err != nil {
		return 0, err
	}
	combined := fasta.EnsureQuery(hits, query)

	lib := b.ws.Library(prefix)
	if !workspace.HasArtifact(lib + ".ffdata") {
		if _, err := fasta.Split(b.ws.SeqDir(prefix), combined); err != nil {
			return 0, err
		}
		if _, err := b.inv.Run(ctx, toolio.Invocation{
			Stage:  "ffindex",
			Prefix: prefix,
			Tool:   b.tc.FFIndex,
			Args:   []string{"-s", lib + ".ffdata", lib + ".ffindex", b.ws.SeqDir(prefix)},
			Output: lib + ".ffdata",
		}); err != nil {
			return 0, err
		}
	}

	// The primary a3m seeds the re-search. The backup copy persists the
	// seed so a resumed run can tell the re-search already happened.
	pre := b.ws.A3MBackup(prefix)
	if !workspace.HasArtifact(pre) {
		if err := copyFile(b.ws.A3M(prefix), pre); err != nil {
			return 0, err
		}
	}
	jackA3M := b.ws.JackA3M(prefix)
	if _, err := b.inv.Run(ctx, toolio.Invocation{
		Stage:  "reseed",
		Prefix: prefix,
		Tool:   b.tc.HHBlits,
		Args: []string{
			"-i", pre,
			"-d", lib,
			"-oa3m", jackA3M,
			"-n", "2", "-e", "0.001", "-diff", "inf",
			"-cpu", strconv.Itoa(b.threads),
		},
		Output: jackA3M,
	}); err != nil {
		return 0, err
	}

	return stripInserts(jackA3M, b.ws.JackAln(prefix))
}

// stripInserts converts an a3m file into an aligned-columns-only alignment
// at outPath: header lines are dropped and lowercase insert characters are
// removed. Returns the alignment depth. When outPath already holds a
// non-empty alignment it is reused and only counted.
func stripInserts(a3mPath, outPath string) (int, error) {
	if workspace.HasArtifact(outPath) {
		return countLines(outPath)
	}

	in, err := os.Open(a3mPath)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", a3mPath, err)
	}
	defer in.Close()

	var out bytes.Buffer
	depth := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '>' {
			continue
		}
		for _, c := range line {
			if c < 'a' || c > 'z' {
				out.WriteByte(c)
			}
		}
		out.WriteByte('\n')
		depth++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading %s: %w", a3mPath, err)
	}

	if err := os.WriteFile(outPath, out.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", outPath, err)
	}
	return depth, nil
}

// countLines returns the number of lines in an alignment file.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// parseHitTable extracts target identifiers from a jackhmmer tabular hit
// file (comment lines start with '#'; the first column is the target).
func parseHitTable(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !seen[fields[0]] {
			seen[fields[0]] = true
			ids = append(ids, fields[0])
		}
	}
	return ids, scanner.Err()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
