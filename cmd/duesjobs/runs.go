package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs",
	Long:  "Prints the most recent fetch log records, newest first.",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, _ := mustLoad()
	ctx := context.Background()

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logs, err := st.ListFetchLogs(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-20s %-8s %-8s %-9s %-10s %s\n", "Completed", "Status", "Fetched", "Inserted", "Duration", "Run")
	fmt.Println(strings.Repeat("─", 80))
	for _, l := range logs {
		fmt.Printf("%-20s %-8s %-8d %-9d %-10s %s\n",
			l.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			l.Status,
			l.JobsFetched,
			l.JobsInserted,
			l.CompletedAt.Sub(l.StartedAt).Round(time.Second),
			l.RunID,
		)
		if l.Details != "" {
			fmt.Printf("  %s\n", l.Details)
		}
	}
	return nil
}
