package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"newsdesk/internal/config"
	"newsdesk/internal/format"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath string
	DBPath     string
	PrettyJSON bool
	Format     string

	cfg *config.Config
	log *slog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "newsdesk",
		Short:        "Editorial board: live article order and meeting attendance",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the board server
  newsdesk serve --addr 127.0.0.1:8080

  # Scriptable commands against the same database
  newsdesk articles list --format text
  newsdesk articles reorder 3 1 2

  # Direct article lookup (shortcut for: newsdesk articles get 42)
  newsdesk 42
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigPath)
		if err != nil {
			return writeErr(cmd, err)
		}
		if strings.TrimSpace(app.DBPath) != "" {
			cfg.DBPath = app.DBPath
		}
		app.cfg = cfg
		app.log = newLogger(cmd.ErrOrStderr(), cfg.Log)
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("NEWSDESK_CONFIG", ""), "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&app.DBPath, "db", "", "Path to the SQLite database (overrides db_path)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("NEWSDESK_FORMAT", "json"), "Output format (json|text)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newArticlesCmd(app))
	cmd.AddCommand(newAttendanceCmd(app))
	cmd.AddCommand(newResequenceCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newWatchCmd(app))

	return cmd
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
