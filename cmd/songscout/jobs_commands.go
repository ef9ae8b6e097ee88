package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"songscout/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect enrichment jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List enrichment jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.ListJobs(cmd.Context(), statusFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					string(job.Status),
					strconv.Itoa(job.TotalTracks),
					strconv.Itoa(job.EnrichedTracks),
					strconv.Itoa(job.FailedTracks),
					fmt.Sprintf("%d%%", job.Progress),
					job.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Tracks", "Enriched", "Failed", "Progress", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (queued, running, completed, failed)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, job)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %d (%s)\n", job.ID, job.Status)
			fmt.Fprintf(out, "  Tracks:   %d total, %d enriched, %d failed\n", job.TotalTracks, job.EnrichedTracks, job.FailedTracks)
			fmt.Fprintf(out, "  Progress: %d%%\n", job.Progress)
			fmt.Fprintf(out, "  Created:  %s\n", job.CreatedAt.Local().Format(time.DateTime))
			if job.StartedAt != nil {
				fmt.Fprintf(out, "  Started:  %s\n", job.StartedAt.Local().Format(time.DateTime))
			}
			if job.CompletedAt != nil {
				fmt.Fprintf(out, "  Finished: %s\n", job.CompletedAt.Local().Format(time.DateTime))
			}
			if len(job.LogLines) > 0 {
				fmt.Fprintln(out, "  Log:")
				for _, line := range job.LogLines {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	return cmd
}

func jobStatusCounts(jobs []*store.Job) map[store.JobStatus]int {
	counts := make(map[store.JobStatus]int)
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts
}
