package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSongwritersCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "songwriters",
		Short: "List resolved songwriter profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			writers, err := client.ListSongwriters(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, writers)
			}
			if len(writers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No songwriter profiles yet.")
				return nil
			}

			rows := make([][]string, 0, len(writers))
			for _, writer := range writers {
				score, collaborations, stage := "-", "-", "-"
				if writer.Contact != nil {
					score = strconv.Itoa(writer.Contact.Score)
					collaborations = strconv.Itoa(writer.Contact.Collaborations)
					if writer.Contact.Stage != "" {
						stage = writer.Contact.Stage
					}
				}
				rows = append(rows, []string{
					strconv.FormatInt(writer.ID, 10),
					writer.Name,
					score,
					collaborations,
					stage,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Score", "Collabs", "Stage"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	cmd.AddCommand(newSongwriterStageCommand(ctx))
	return cmd
}

func newSongwriterStageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <songwriter-id> <prospect|contacted|signed|passed>",
		Short: "Move a songwriter through the outreach funnel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid songwriter id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			contact, err := client.SetSongwriterStage(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Songwriter %d moved to stage %s\n", id, contact.Stage)
			return nil
		},
	}
}
