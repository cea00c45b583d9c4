package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/api"
)

func newJobsCommand(client *client) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Submit and inspect extraction jobs",
	}

	jobsCmd.AddCommand(newJobsSubmitCommand(client))
	jobsCmd.AddCommand(newJobsListCommand(client))
	jobsCmd.AddCommand(newJobsShowCommand(client))
	jobsCmd.AddCommand(newJobsResultsCommand(client))
	jobsCmd.AddCommand(newJobsSummaryCommand(client))
	jobsCmd.AddCommand(newJobsPruneCommand(client))

	return jobsCmd
}

func newJobsSubmitCommand(client *client) *cobra.Command {
	var jobType string

	cmd := &cobra.Command{
		Use:   "submit <url>...",
		Short: "Submit video URLs for extraction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.SubmitJobResponse
			err := client.post(cmd.Context(), "/api/jobs", api.SubmitJobRequest{
				Type: jobType,
				URLs: args,
			}, &resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%d items)\n", resp.Job.ID, resp.Job.TotalItems)
			return nil
		},
	}

	cmd.Flags().StringVarP(&jobType, "type", "t", "batch", "Job type (batch or playlist)")
	return cmd
}

func newJobsListCommand(client *client) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if status != "" {
				query.Set("status", status)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/jobs"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			var resp api.JobListResponse
			if err := client.get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					job.ID,
					job.Type,
					job.Status,
					fmt.Sprintf("%d/%d", job.ProcessedItems, job.TotalItems),
					strconv.Itoa(job.FailedItems),
					humanize.Time(job.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "TYPE", "STATUS", "PROGRESS", "FAILED", "CREATED"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	return cmd
}

func newJobsShowCommand(client *client) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.JobResponse
			if err := client.get(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			job := resp.Job

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:       %s (%s)\n", job.ID, job.Type)
			fmt.Fprintf(out, "Status:    %s\n", job.Status)
			fmt.Fprintf(out, "Progress:  %d/%d (%d ok, %d failed)\n",
				job.ProcessedItems, job.TotalItems, job.SuccessfulItems, job.FailedItems)
			fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt.Local().Format(time.RFC1123))
			if job.CompletedAt != nil {
				fmt.Fprintf(out, "Completed: %s\n", job.CompletedAt.Local().Format(time.RFC1123))
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
			}
			return nil
		},
	}
}

func newJobsResultsCommand(client *client) *cobra.Command {
	return &cobra.Command{
		Use:   "results <job-id>",
		Short: "Show a job's per-item results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.JobResultsResponse
			if err := client.get(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/results", &resp); err != nil {
				return err
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results recorded.")
				return nil
			}

			rows := make([][]string, 0, len(resp.Results))
			for _, result := range resp.Results {
				outcome := "ok"
				detail := ""
				if !result.Success {
					outcome = "failed"
					detail = result.ErrorCode
				}
				elapsed := ""
				if result.ProcessingTimeMs != nil {
					elapsed = fmt.Sprintf("%dms", *result.ProcessingTimeMs)
				}
				rows = append(rows, []string{result.VideoID, outcome, detail, elapsed})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"VIDEO", "OUTCOME", "ERROR", "TIME"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newJobsSummaryCommand(client *client) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.JobSummaryResponse
			if err := client.get(cmd.Context(), "/api/jobs/summary", &resp); err != nil {
				return err
			}
			s := resp.Summary
			rows := [][]string{
				{"pending", strconv.Itoa(s.Pending)},
				{"processing", strconv.Itoa(s.Processing)},
				{"completed", strconv.Itoa(s.Completed)},
				{"failed", strconv.Itoa(s.Failed)},
				{"aborted", strconv.Itoa(s.Aborted)},
				{"total", strconv.Itoa(s.Total)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"STATUS", "COUNT"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newJobsPruneCommand(client *client) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			var resp api.PruneJobsResponse
			if err := client.post(cmd.Context(), "/api/jobs/prune?days="+strconv.Itoa(days), nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d jobs older than %d days\n", resp.Deleted, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Delete jobs completed more than this many days ago")
	return cmd
}
