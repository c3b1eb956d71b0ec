package cli

import (
	"newsdesk/internal/store"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check board positions, attendance rows and database integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.Close()

			rep, err := b.st.Doctor(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			hints := []string{}
			for _, it := range rep.Issues {
				if it.Code == "position_gap" || it.Code == "position_duplicate" {
					hints = append(hints, "newsdesk resequence")
					break
				}
			}
			if err := writeOut(cmd, app, map[string]any{"data": rep, "_hints": hints}); err != nil {
				return err
			}
			if rep.HasErrors() {
				return store.ErrDoctorIssuesFound
			}
			return nil
		},
	}
}
