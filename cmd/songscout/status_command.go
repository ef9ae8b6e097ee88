package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"songscout/internal/store"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if err := client.Health(cmd.Context()); err != nil {
				fmt.Fprintf(out, "Daemon:  %s\n", paint("unreachable", ansiRed, colorize))
				fmt.Fprintf(out, "         %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "Daemon:  %s\n", paint("running", ansiGreen, colorize))

			jobs, err := client.ListJobs(cmd.Context(), "")
			if err != nil {
				return err
			}
			counts := jobStatusCounts(jobs)
			fmt.Fprintf(out, "Jobs:    %d queued, %d running, %d completed, %s\n",
				counts[store.JobQueued],
				counts[store.JobRunning],
				counts[store.JobCompleted],
				paintFailed(counts[store.JobFailed], colorize))

			playlists, err := client.ListPlaylists(cmd.Context())
			if err != nil {
				return err
			}
			incomplete := 0
			for _, playlist := range playlists {
				if playlist.LastFetchAt != nil && !playlist.LastFetchComplete {
					incomplete++
				}
			}
			line := fmt.Sprintf("%d monitored", len(playlists))
			if incomplete > 0 {
				line += ", " + paint(fmt.Sprintf("%d with incomplete last fetch", incomplete), ansiYellow, colorize)
			}
			fmt.Fprintf(out, "Playlists: %s\n", line)
			return nil
		},
	}
}

func paint(text, color string, colorize bool) string {
	if !colorize {
		return text
	}
	return color + text + ansiReset
}

func paintFailed(count int, colorize bool) string {
	text := fmt.Sprintf("%d failed", count)
	if count == 0 {
		return text
	}
	return paint(text, ansiRed, colorize)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
