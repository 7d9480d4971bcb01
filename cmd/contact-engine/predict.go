// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshbio/contact-engine/internal/pipeline"
	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

var predictCmd = &cobra.Command{
	Use:   "predict QUERY_SEQUENCE UNIREF90_DB UNIREF100_DB HHBLITS_SEQUENCE_DB HHBLITS_TEMPLATE_DB",
	Short: "Run the full contact prediction pipeline",
	Long: `Predict masks template-matched regions of the query, predicts contacts
for the full sequence and for each unmatched domain, and merges everything
into <job>.metapsicov.stage3 in the workspace directory.

Every stage caches on its output file: rerunning against the same workspace
skips completed work, so an aborted run is safe to resume.`,
	Args: cobra.ExactArgs(5),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().String("job-id", types.DefaultJobID, "job identifier prefixing all output files")
	predictCmd.Flags().String("work-dir", ".", "reusable workspace directory (must exist)")
	predictCmd.Flags().Int("threads", 1, "thread count passed through to the external tools")
	predictCmd.Flags().Bool("keep-temp", false, "retain intermediate files after a successful run")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	jobID, _ := cmd.Flags().GetString("job-id")
	workDir, _ := cmd.Flags().GetString("work-dir")
	threads, _ := cmd.Flags().GetInt("threads")
	keepTemp, _ := cmd.Flags().GetBool("keep-temp")

	cfg := types.PipelineConfig{
		Toolchain: toolchainConfig(),
		Databases: types.Databases{
			Uniref90:        args[1],
			Uniref100:       args[2],
			HHBlitsSeq:      args[3],
			HHBlitsTemplate: args[4],
		},
		JobID:    jobID,
		WorkDir:  workDir,
		Threads:  threads,
		KeepTemp: keepTemp,
	}

	ws, err := workspace.Open(workDir, jobID)
	if err != nil {
		return err
	}
	ledger, err := workspace.OpenLedger(ws)
	if err != nil {
		return err
	}
	defer ledger.Close()

	inv := toolio.NewInvoker(ledger, os.Stderr)
	ctrl := pipeline.New(cfg, ws, inv, os.Stdout)

	summary, err := ctrl.Run(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("\n%s: %d residues, alignment depth %d", summary.SequenceID, summary.SequenceLength, summary.AlignmentDepth)
	if summary.SecondaryUsed {
		fmt.Print(" (secondary)")
	}
	fmt.Printf("\n%d domain(s) predicted, %d contacts written to %s (%.0fs)\n",
		len(summary.Domains), summary.Contacts, ws.Stage3(), summary.Elapsed.Seconds())
	return nil
}
