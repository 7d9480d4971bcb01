// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences a full prediction run: template masking, the
// full-sequence feature stage, one feature stage per unmatched domain,
// the merge into the global contact matrix, and the final report.
// Execution is strictly sequential; parallelism exists only inside the
// external tools via their thread-count argument.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/meshbio/contact-engine/internal/domains"
	"github.com/meshbio/contact-engine/internal/fasta"
	"github.com/meshbio/contact-engine/internal/features"
	"github.com/meshbio/contact-engine/internal/template"
	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

// RunSummary reports what a completed run did.
type RunSummary struct {
	SequenceID     string
	SequenceLength int
	AlignmentDepth int
	SecondaryUsed  bool
	Domains        []workspace.DomainRecord
	Contacts       int
	Elapsed        time.Duration
}

// Controller owns one prediction run over one workspace.
type Controller struct {
	cfg    types.PipelineConfig
	ws     *workspace.Workspace
	masker *template.Masker
	runner *features.Runner
	log    io.Writer
}

// New wires a Controller. log receives per-stage status lines.
func New(cfg types.PipelineConfig, ws *workspace.Workspace, inv *toolio.Invoker, log io.Writer) *Controller {
	if log == nil {
		log = io.Discard
	}
	return &Controller{
		cfg:    cfg,
		ws:     ws,
		masker: template.NewMasker(inv, ws, cfg.Toolchain, cfg.Databases, cfg.Threads),
		runner: features.NewRunner(inv, ws, cfg.Toolchain, cfg.Databases, cfg.Threads, log),
		log:    log,
	}
}

// Run executes the pipeline for the query sequence at queryPath. On any
// unrecovered tool failure the error carries the failing command line and
// no final report is written.
func (c *Controller) Run(ctx context.Context, queryPath string) (RunSummary, error) {
	started := time.Now()

	query, err := fasta.ReadSingle(queryPath)
	if err != nil {
		return RunSummary{}, err
	}

	jobFasta := c.ws.Fasta(c.ws.JobID)
	if !workspace.HasArtifact(jobFasta) {
		if err := fasta.Write(jobFasta, query); err != nil {
			return RunSummary{}, err
		}
	}

	fmt.Fprintf(c.log, "masking: %s against template database\n", query.ID)
	masked, err := c.masker.Run(ctx, jobFasta, query)
	if err != nil {
		return RunSummary{}, err
	}

	fmt.Fprintf(c.log, "predicting: %s full sequence (%d residues)\n", query.ID, query.Len())
	full, err := c.runner.Run(ctx, c.ws.JobID, jobFasta)
	if err != nil {
		return RunSummary{}, err
	}

	matrix := types.NewContactMatrix()
	domains.Seed(matrix, full.Contacts)

	summary := RunSummary{
		SequenceID:     query.ID,
		SequenceLength: query.Len(),
		AlignmentDepth: full.Depth,
		SecondaryUsed:  full.Secondary,
	}

	doms := domains.Extract(masked.Masked, types.MinDomainLength)
	prefixes := []string{c.ws.JobID}
	for _, d := range doms {
		prefix := c.ws.DomainPrefix(d.Offset())
		prefixes = append(prefixes, prefix)
		fmt.Fprintf(c.log, "predicting: domain [%d,%d] as %s\n", d.Start, d.End, prefix)

		domFasta := c.ws.Fasta(prefix)
		if !workspace.HasArtifact(domFasta) {
			sub := types.Sequence{
				ID:       fmt.Sprintf("%s_%d-%d", query.ID, d.Start, d.End),
				Residues: d.Residues(query.Residues),
			}
			if err := fasta.Write(domFasta, sub); err != nil {
				return RunSummary{}, err
			}
		}

		out, err := c.runner.Run(ctx, prefix, domFasta)
		if err != nil {
			return RunSummary{}, err
		}
		domains.Merge(matrix, d, out.Contacts)

		summary.Domains = append(summary.Domains, workspace.DomainRecord{
			Start:    d.Start,
			End:      d.End,
			Offset:   d.Offset(),
			Depth:    out.Depth,
			Contacts: len(out.Contacts),
		})
	}

	var report strings.Builder
	count, err := domains.EmitReport(&report, matrix)
	if err != nil {
		return RunSummary{}, err
	}
	if err := writeReport(c.ws.Stage3(), report.String()); err != nil {
		return RunSummary{}, err
	}
	summary.Contacts = count
	summary.Elapsed = time.Since(started)
	fmt.Fprintf(c.log, "report: %d contacts for %d domain(s) + full sequence\n", count, len(doms))

	manifest := workspace.Manifest{
		JobID:          c.ws.JobID,
		SequenceID:     summary.SequenceID,
		SequenceLength: summary.SequenceLength,
		AlignmentDepth: summary.AlignmentDepth,
		SecondaryUsed:  summary.SecondaryUsed,
		Domains:        summary.Domains,
		Contacts:       summary.Contacts,
		Elapsed:        summary.Elapsed,
		FinishedAt:     time.Now().UTC(),
	}
	if err := workspace.WriteManifest(manifest, c.ws.Manifest()); err != nil {
		return RunSummary{}, err
	}

	if !c.cfg.KeepTemp {
		if err := c.ws.RemoveIntermediates(prefixes); err != nil {
			fmt.Fprintf(c.log, "warning: cleanup: %v\n", err)
		}
	}
	return summary, nil
}

func writeReport(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
