package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/api"
)

func newStatusCommand(client *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := client.get(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:   running (pid %d)\n", status.PID)
			fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)
			fmt.Fprintf(out, "Queue:    %d active, %d pending (capacity %d), %d processed (%d failed)\n",
				status.Queue.Active,
				status.Queue.Pending,
				status.Queue.QueueSize,
				status.Queue.TotalProcessed,
				status.Queue.Failed)
			fmt.Fprintf(out, "Cache:    %d entries, %s, hit rate %.0f%%\n",
				status.Cache.Entries,
				humanize.Bytes(uint64(status.Cache.TotalBytes)),
				status.Cache.HitRate*100)
			fmt.Fprintf(out, "Jobs:     %d total (%d processing, %d completed, %d failed)\n",
				status.Jobs.Total,
				status.Jobs.Processing,
				status.Jobs.Completed,
				status.Jobs.Failed)
			for _, dep := range status.Dependencies {
				if !dep.Available {
					fmt.Fprintf(out, "Warning:  %s unavailable (%s)\n", dep.Name, dep.Detail)
				}
			}
			return nil
		},
	}
}
