package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/api"
)

func newCacheCommand(client *client) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the transcript cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(client))
	cacheCmd.AddCommand(newCacheEvictCommand(client))
	cacheCmd.AddCommand(newCacheRunCommand(client))
	cacheCmd.AddCommand(newCacheClearCommand(client))

	return cacheCmd
}

func newCacheStatsCommand(client *client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.CacheStatsResponse
			if err := client.get(cmd.Context(), "/api/cache/stats", &resp); err != nil {
				return err
			}
			stats := resp.Stats

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entries:       %d\n", stats.Entries)
			fmt.Fprintf(out, "Size:          %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
			fmt.Fprintf(out, "Hit rate:      %.0f%%\n", stats.HitRate*100)
			if stats.Entries > 0 {
				fmt.Fprintf(out, "Oldest access: %s\n", stats.OldestAccess.Local().Format(time.RFC1123))
				fmt.Fprintf(out, "Newest access: %s\n", stats.NewestAccess.Local().Format(time.RFC1123))
				fmt.Fprintf(out, "Most accessed: %s (%d reads)\n", stats.MostAccessedID, stats.MostAccessedCount)
			}
			return nil
		},
	}
}

func newCacheEvictCommand(client *client) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict the least-recently-accessed entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			var resp api.EvictResponse
			if err := client.post(cmd.Context(), "/api/cache/evict?count="+strconv.Itoa(count), nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d entries\n", resp.Evicted)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 100, "Number of entries to evict")
	return cmd
}

func newCacheRunCommand(client *client) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one full eviction policy pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.EvictionRunResponse
			if err := client.post(cmd.Context(), "/api/cache/eviction/run", nil, &resp); err != nil {
				return err
			}
			report := resp.Report
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d entries (%d by age, %d by count, %d by size)\n",
				report.Total(), report.TTL, report.Count, report.Size)
			return nil
		},
	}
}

func newCacheClearCommand(client *client) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("cache clear is destructive; pass --force to confirm")
			}
			var resp api.ClearCacheResponse
			if err := client.post(cmd.Context(), "/api/cache/clear", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", resp.Removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm the destructive wipe")
	return cmd
}
