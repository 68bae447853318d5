package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"komf/internal/api"
	"komf/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect metadata jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsFollowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		status   string
		page     int
		pageSize int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := jobs.ListOptions{Page: page, PageSize: pageSize}
			if strings.TrimSpace(status) != "" {
				parsed, err := jobs.ParseStatus(status)
				if err != nil {
					return err
				}
				opts.Status = parsed
			}
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.ListJobs(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				printJobPage(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running, completed, failed)")
	cmd.Flags().IntVar(&page, "page", 0, "Zero based page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Jobs per page (server default when zero)")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func printJobPage(out io.Writer, page api.JobPageResponse) {
	if len(page.Content) == 0 {
		fmt.Fprintln(out, "No jobs")
		return
	}
	rows := make([][]string, 0, len(page.Content))
	for _, job := range page.Content {
		rows = append(rows, []string{job.ID, job.SeriesID, job.Status, job.StartedAt, job.FinishedAt, job.Message})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "ID"},
		{Header: "Series"},
		{Header: "Status"},
		{Header: "Started"},
		{Header: "Finished"},
		{Header: "Message", MaxWidth: 48},
	}, rows))
	fmt.Fprintf(out, "Page %d of %d (%d jobs)\n", page.Page+1, max(page.TotalPages, 1), page.TotalElements)
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					if api.IsNotFound(err) {
						return fmt.Errorf("job %s not found", args[0])
					}
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				printJob(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func printJob(out io.Writer, job api.JobResponse) {
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Series:   %s\n", job.SeriesID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Started:  %s\n", job.StartedAt)
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "Finished: %s\n", job.FinishedAt)
	}
	if job.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", job.Message)
	}
}

func newJobsFollowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <job-id>",
		Short: "Stream the events of a job until it completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return followJob(cmd, client, args[0])
			})
		},
	}
}

// followJob prints every event of id and then the final job record. A failed
// job is reported as an error.
func followJob(cmd *cobra.Command, client *api.Client, id string) error {
	out := cmd.OutOrStdout()
	err := client.FollowJob(cmd.Context(), id, func(record jobs.Record) error {
		fmt.Fprintln(out, formatEvent(record))
		return nil
	})
	if err != nil {
		if api.IsNotFound(err) {
			return fmt.Errorf("no event stream for job %s (unknown or expired)", id)
		}
		return err
	}
	job, err := client.GetJob(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Job %s %s", job.ID, job.Status)
	if job.Message != "" {
		fmt.Fprintf(out, ": %s", job.Message)
	}
	fmt.Fprintln(out)
	if job.Status == string(jobs.StatusFailed) {
		return errors.New("job failed")
	}
	return nil
}

func formatEvent(record jobs.Record) string {
	var detail string
	switch evt := record.Event.(type) {
	case jobs.ProviderSeriesEvent:
		detail = fmt.Sprintf("%s: fetching series", evt.Provider)
	case jobs.ProviderBookEvent:
		detail = fmt.Sprintf("%s: book %d/%d", evt.Provider, evt.Progress, evt.TotalBooks)
	case jobs.ProviderCompletedEvent:
		detail = fmt.Sprintf("%s: done", evt.Provider)
	case jobs.ProviderErrorEvent:
		detail = fmt.Sprintf("%s: error: %s", evt.Provider, evt.Message)
	case jobs.PostProcessingStartEvent:
		detail = "writing metadata"
	case jobs.ProcessingErrorEvent:
		detail = "error: " + evt.Message
	case jobs.CompletionEvent:
		detail = "completed"
	default:
		detail = string(record.Event.Type())
	}
	return fmt.Sprintf("[%3d] %s %s", record.Sequence, record.Timestamp.Local().Format("15:04:05"), detail)
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the job history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.ClearJobs(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job history cleared")
				return nil
			})
		},
	}
}
