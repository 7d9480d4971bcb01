// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshbio/contact-engine/internal/align"
	"github.com/meshbio/contact-engine/internal/fasta"
	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

var alignCmd = &cobra.Command{
	Use:   "align QUERY_SEQUENCE UNIREF90_DB UNIREF100_DB HHBLITS_SEQUENCE_DB",
	Short: "Build the canonical alignment for a sequence",
	Long: `Align runs only the profile and alignment-building stage: the hhblits
primary alignment, the conditional jackhmmer deepening, and the depth-based
selection. Artifacts land in the workspace and are reused by a later
predict run against the same job.`,
	Args: cobra.ExactArgs(4),
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().String("job-id", types.DefaultJobID, "job identifier prefixing all output files")
	alignCmd.Flags().String("work-dir", ".", "reusable workspace directory (must exist)")
	alignCmd.Flags().Int("threads", 1, "thread count passed through to the external tools")

	rootCmd.AddCommand(alignCmd)
}

func runAlign(cmd *cobra.Command, args []string) error {
	jobID, _ := cmd.Flags().GetString("job-id")
	workDir, _ := cmd.Flags().GetString("work-dir")
	threads, _ := cmd.Flags().GetInt("threads")

	ws, err := workspace.Open(workDir, jobID)
	if err != nil {
		return err
	}
	ledger, err := workspace.OpenLedger(ws)
	if err != nil {
		return err
	}
	defer ledger.Close()

	query, err := fasta.ReadSingle(args[0])
	if err != nil {
		return err
	}
	jobFasta := ws.Fasta(jobID)
	if !workspace.HasArtifact(jobFasta) {
		if err := fasta.Write(jobFasta, query); err != nil {
			return err
		}
	}

	dbs := types.Databases{
		Uniref90:   args[1],
		Uniref100:  args[2],
		HHBlitsSeq: args[3],
	}
	inv := toolio.NewInvoker(ledger, os.Stderr)
	builder := align.NewBuilder(inv, ws, toolchainConfig(), dbs, threads)

	ctx := context.Background()
	if err := builder.Profile(ctx, jobFasta); err != nil {
		return err
	}
	res, err := builder.Build(ctx, jobID, jobFasta)
	if err != nil {
		return err
	}

	source := "primary"
	if res.Secondary {
		source = "secondary"
	}
	fmt.Printf("%s: depth %d (%s) -> %s\n", query.ID, res.Depth, source, res.Path)
	return nil
}
