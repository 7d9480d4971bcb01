// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List the recorded tool invocations for a job",
	Long: `Ledger prints every external tool invocation recorded for a job in
execution order, including cache hits, exit codes, and wall-clock durations.`,
	Args: cobra.NoArgs,
	RunE: runLedger,
}

func init() {
	ledgerCmd.Flags().String("job-id", types.DefaultJobID, "job identifier to list")
	ledgerCmd.Flags().String("work-dir", ".", "workspace directory holding the job ledger")

	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	jobID, _ := cmd.Flags().GetString("job-id")
	workDir, _ := cmd.Flags().GetString("work-dir")

	ws, err := workspace.Open(workDir, jobID)
	if err != nil {
		return err
	}
	ledger, err := workspace.OpenLedger(ws)
	if err != nil {
		return err
	}
	defer ledger.Close()

	entries, err := ledger.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no invocations recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tPREFIX\tTOOL\tEXIT\tCACHE\tTIMEOUT\tDURATION\tSTARTED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\t%t\t%s\t%s\n",
			e.ID, e.Stage, e.Prefix, e.Tool, e.ExitCode, e.CacheHit, e.TimedOut,
			e.Duration, e.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
