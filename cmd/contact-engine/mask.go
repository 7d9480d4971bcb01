// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshbio/contact-engine/internal/domains"
	"github.com/meshbio/contact-engine/internal/fasta"
	"github.com/meshbio/contact-engine/internal/template"
	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

var maskCmd = &cobra.Command{
	Use:   "mask QUERY_SEQUENCE HHBLITS_TEMPLATE_DB",
	Short: "Mask template-matched regions of a sequence",
	Long: `Mask searches the structure-template database for high-confidence
matches to the query and prints the masked sequence together with the
unmatched domains the predict stage would process independently.`,
	Args: cobra.ExactArgs(2),
	RunE: runMask,
}

func init() {
	maskCmd.Flags().String("job-id", types.DefaultJobID, "job identifier prefixing all output files")
	maskCmd.Flags().String("work-dir", ".", "reusable workspace directory (must exist)")
	maskCmd.Flags().Int("threads", 1, "thread count passed through to the external tools")

	rootCmd.AddCommand(maskCmd)
}

func runMask(cmd *cobra.Command, args []string) error {
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

	inv := toolio.NewInvoker(ledger, os.Stderr)
	masker := template.NewMasker(inv, ws, toolchainConfig(),
		types.Databases{HHBlitsTemplate: args[1]}, threads)

	masked, err := masker.Run(context.Background(), jobFasta, query)
	if err != nil {
		return err
	}

	fmt.Printf(">%s masked\n%s\n", masked.ID, masked.Masked)
	doms := domains.Extract(masked.Masked, types.MinDomainLength)
	if len(doms) == 0 {
		fmt.Println("no unmatched domains")
		return nil
	}
	for _, d := range doms {
		fmt.Printf("domain [%d,%d] length %d offset %d\n", d.Start, d.End, d.Len(), d.Offset())
	}
	return nil
}
