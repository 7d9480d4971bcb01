// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package template searches the structure-template database for
// high-confidence matches to the query and masks the matched residue
// ranges, leaving the complement as candidate novel domains.
package template

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

// Hit is one row of the hhsearch hit table: rank, template identifier,
// sequence identity (percent), e-value, and the aligned query range
// (1-based inclusive).
type Hit struct {
	Rank       int
	Template   string
	Identity   float64
	EValue     float64
	QueryStart int
	QueryEnd   int
}

// ParseHits reads the hit-table header region of an hhsearch report. The
// table starts after the "No Hit" header line; rows are consumed while
// they begin with an integer rank. The first alignment block (or any
// non-row line) ends parsing — only the header region is consulted.
func ParseHits(r io.Reader) ([]Hit, error) {
	var hits []Hit
	inTable := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			if strings.HasPrefix(line, "No Hit") {
				inTable = true
			}
			continue
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		rank, err := strconv.Atoi(fields[0])
		if err != nil {
			break
		}
		if len(fields) < 5 {
			return nil, fmt.Errorf("malformed hit row %q", line)
		}

		ident, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("hit %d: parsing identity %q: %w", rank, fields[2], err)
		}
		evalue, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("hit %d: parsing e-value %q: %w", rank, fields[3], err)
		}
		qstart, qend, err := parseRange(fields[4])
		if err != nil {
			return nil, fmt.Errorf("hit %d: %w", rank, err)
		}

		hits = append(hits, Hit{
			Rank:       rank,
			Template:   fields[1],
			Identity:   ident,
			EValue:     evalue,
			QueryStart: qstart,
			QueryEnd:   qend,
		})
	}
	return hits, scanner.Err()
}

func parseRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("parsing query range %q", s)
	}
	start, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing query range %q: %w", s, err)
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing query range %q: %w", s, err)
	}
	return start, end, nil
}

// Mask overwrites the aligned query range of every hit with identity >=
// minIdentity with blanks in a working copy of residues. Ranges are
// 1-based inclusive and clamped to the sequence.
func Mask(residues string, hits []Hit, minIdentity float64) string {
	out := []byte(residues)
	for _, h := range hits {
		if h.Identity < minIdentity {
			continue
		}
		start := h.QueryStart - 1
		end := h.QueryEnd
		if start < 0 {
			start = 0
		}
		if end > len(out) {
			end = len(out)
		}
		for p := start; p < end; p++ {
			out[p] = types.MaskBlank
		}
	}
	return string(out)
}

// Masker runs the template search for one workspace.
type Masker struct {
	inv     *toolio.Invoker
	ws      *workspace.Workspace
	tc      types.ToolchainConfig
	dbs     types.Databases
	threads int
}

// NewMasker wires a Masker to a workspace and toolchain.
func NewMasker(inv *toolio.Invoker, ws *workspace.Workspace, tc types.ToolchainConfig, dbs types.Databases, threads int) *Masker {
	if threads < 1 {
		threads = 1
	}
	return &Masker{inv: inv, ws: ws, tc: tc, dbs: dbs, threads: threads}
}

// Run searches the template database for s (read from seqFile, cached on
// the report artifact) and returns the masked sequence.
func (m *Masker) Run(ctx context.Context, seqFile string, s types.Sequence) (types.MaskedSequence, error) {
	hhr := m.ws.HHR()
	if _, err := m.inv.Run(ctx, toolio.Invocation{
		Stage:  "hhsearch",
		Prefix: m.ws.JobID,
		Tool:   m.tc.HHSearch,
		Args: []string{
			"-i", seqFile,
			"-d", m.dbs.HHBlitsTemplate,
			"-o", hhr,
			"-hittab",
			"-cpu", strconv.Itoa(m.threads),
		},
		Output: hhr,
	}); err != nil {
		return types.MaskedSequence{}, err
	}

	f, err := os.Open(hhr)
	if err != nil {
		return types.MaskedSequence{}, fmt.Errorf("opening %s: %w", hhr, err)
	}
	defer f.Close()

	hits, err := ParseHits(f)
	if err != nil {
		return types.MaskedSequence{}, fmt.Errorf("parsing %s: %w", hhr, err)
	}

	return types.MaskedSequence{
		Sequence: s,
		Masked:   Mask(s.Residues, hits, types.TemplateIdentity),
	}, nil
}
