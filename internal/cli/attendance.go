package cli

import (
	"context"
	"fmt"
	"strconv"

	"newsdesk/internal/mutate"

	"github.com/spf13/cobra"
)

func newAttendanceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Meeting attendance grid",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "matrix",
			Short: "Show members against meetings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
					m, err := svc.Matrix(ctx)
					if err != nil {
						return nil, err
					}
					return tabular(app, m, matrixTable(m)), nil
				})
			},
		},
		&cobra.Command{
			Use:   "add-member <name>",
			Short: "Add a member row",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
					return svc.AddMember(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "remove-member <id>",
			Short: "Remove a member and their cells",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
					id, err := parseID(args[0])
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "id": id}, svc.RemoveMember(ctx, id)
				})
			},
		},
		&cobra.Command{
			Use:   "add-meeting <label>",
			Short: "Add a meeting column",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
					return svc.AddMeeting(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "remove-meeting <id>",
			Short: "Remove a meeting and its cells",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
					id, err := parseID(args[0])
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "id": id}, svc.RemoveMeeting(ctx, id)
				})
			},
		},
		newAttendanceToggleCmd(app),
	)
	return cmd
}

func newAttendanceToggleCmd(app *App) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "toggle <member-id> <meeting-id>",
		Short: "Flip one cell, or set it with --set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				memberID, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				meetingID, err := parseID(args[1])
				if err != nil {
					return nil, err
				}
				var value *bool
				if cmd.Flags().Changed("set") {
					v, err := strconv.ParseBool(set)
					if err != nil {
						return nil, mutate.ValidationError{Field: "set", Reason: fmt.Sprintf("not a boolean: %q", set)}
					}
					value = &v
				}
				v, err := svc.SetOrToggle(ctx, memberID, meetingID, value)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "memberId": memberID, "meetingId": meetingID, "value": v}, nil
			})
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "Explicit value (true|false)")
	return cmd
}
