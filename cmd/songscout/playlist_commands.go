package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newPlaylistsCommand(ctx *commandContext) *cobra.Command {
	playlistsCmd := &cobra.Command{
		Use:   "playlists",
		Short: "Manage monitored playlists",
	}
	playlistsCmd.AddCommand(newPlaylistsListCommand(ctx))
	playlistsCmd.AddCommand(newPlaylistsAddCommand(ctx))
	return playlistsCmd
}

func newPlaylistsListCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored playlists",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			playlists, err := client.ListPlaylists(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, playlists)
			}
			if len(playlists) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No playlists monitored. Add one with: songscout playlists add <provider-id>")
				return nil
			}

			rows := make([][]string, 0, len(playlists))
			for _, playlist := range playlists {
				lastFetch := "never"
				if playlist.LastFetchAt != nil {
					lastFetch = playlist.LastFetchAt.Local().Format(time.DateTime)
				}
				fetchState := "-"
				if playlist.LastFetchAt != nil {
					if playlist.LastFetchComplete {
						fetchState = fmt.Sprintf("complete (%d tracks)", playlist.LastFetchCount)
					} else {
						fetchState = "incomplete"
					}
				}
				rows = append(rows, []string{
					strconv.FormatInt(playlist.ID, 10),
					playlist.Name,
					playlist.ProviderID,
					string(playlist.Kind()),
					lastFetch,
					fetchState,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Provider ID", "Kind", "Last Fetch", "Result"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	return cmd
}

func newPlaylistsAddCommand(ctx *commandContext) *cobra.Command {
	var nameFlag string
	var editorialFlag bool

	cmd := &cobra.Command{
		Use:   "add <provider-id>",
		Short: "Start monitoring a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			playlist, err := client.AddPlaylist(cmd.Context(), args[0], nameFlag, editorialFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monitoring playlist %d (%s, %s)\n", playlist.ID, playlist.Name, playlist.Kind())
			return nil
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "Display name for the playlist")
	cmd.Flags().BoolVar(&editorialFlag, "editorial", false, "Mark as an editorial playlist (scrape fallback allowed)")
	return cmd
}
