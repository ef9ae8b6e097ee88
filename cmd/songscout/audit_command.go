package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"songscout/internal/audit"
	"songscout/internal/logging"
	"songscout/internal/store"
)

// newAuditCommand runs the duplicate-profile report against the database
// directly rather than through the daemon, so it works offline.
func newAuditCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report likely duplicate songwriter profiles",
		Long: "Scans songwriter profiles for likely duplicates and prints them for " +
			"manual review. Profiles are never merged automatically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			report, err := audit.New(st, logging.NewNop()).Run(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d profiles, %d duplicate groups.\n", report.ProfilesScanned, len(report.Groups))
			for _, group := range report.Groups {
				fmt.Fprintf(out, "\n%s\n", group.Reason)
				rows := make([][]string, 0, len(group.Profiles))
				for _, profile := range group.Profiles {
					externalID := profile.ExternalID
					if externalID == "" {
						externalID = "-"
					}
					rows = append(rows, []string{
						strconv.FormatInt(profile.ID, 10),
						profile.Name,
						externalID,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "External ID"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	return cmd
}
