package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Fetch all monitored playlists now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.TriggerScan(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scan for week %s: %d succeeded, %d failed\n", result.Week, result.Succeeded, result.Failed)

			rows := make([][]string, 0, len(result.Playlists))
			for _, summary := range result.Playlists {
				state := "ok"
				if summary.Error != "" {
					state = summary.Error
				} else if !summary.Complete {
					state = "incomplete"
				}
				rows = append(rows, []string{
					summary.Playlist,
					summary.Provider,
					strconv.Itoa(summary.Fetched),
					strconv.Itoa(summary.NewTracks),
					state,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Playlist", "Provider", "Fetched", "New", "Result"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))

			if result.JobID != 0 {
				fmt.Fprintf(out, "Enrichment job %d queued for the new tracks.\n", result.JobID)
			} else {
				fmt.Fprintln(out, "No new tracks; nothing queued.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	return cmd
}
