package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var weekFlag string
	var statusFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List fetched tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			tracks, err := client.ListTracks(cmd.Context(), weekFlag, statusFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, tracks)
			}
			if len(tracks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracks found.")
				return nil
			}

			rows := make([][]string, 0, len(tracks))
			for _, track := range tracks {
				rows = append(rows, []string{
					strconv.FormatInt(track.ID, 10),
					track.Week,
					track.Title,
					track.Artist,
					string(track.Enrichment),
					strconv.Itoa(track.Score),
					track.FetchedVia,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Week", "Title", "Artist", "Status", "Score", "Via"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&weekFlag, "week", "", "Filter by ISO week (e.g. 2026-W36)")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by enrichment status (pending, success, error, not_found)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	return cmd
}
