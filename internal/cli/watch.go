package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"newsdesk/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	watchSeqStyle    = lipgloss.NewStyle().Faint(true)
	watchTypeStyle   = lipgloss.NewStyle().Bold(true)
	watchOrderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	watchRemoveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	watchAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

func newWatchCmd(app *App) *cobra.Command {
	var addr string
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow board events from a running server",
		Long: strings.TrimSpace(`
Connect to a running server's WebSocket and print the snapshot followed by
every board event. With --format json each frame is printed as one JSON line.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(addr)
			if target == "" {
				target = app.cfg.Addr
			}
			u, err := wsURL(target)
			if err != nil {
				return writeErr(cmd, err)
			}
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u, nil)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("connect %s: %w", u, err))
			}
			defer conn.Close()
			go func() {
				<-cmd.Context().Done()
				_ = conn.Close()
			}()

			out := cmd.OutOrStdout()
			for n := 0; limit <= 0 || n < limit; n++ {
				_, data, err := conn.ReadMessage()
				if err != nil {
					var ce *websocket.CloseError
					if errors.As(err, &ce) && ce.Text == "resync" {
						return writeErr(cmd, errors.New("watch: fell behind the server; reconnect to resync"))
					}
					if cmd.Context().Err() != nil {
						return nil
					}
					return writeErr(cmd, err)
				}
				if app.Format == "text" {
					err = printFrame(out, data)
				} else {
					_, err = fmt.Fprintln(out, string(data))
				}
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Server address or URL (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Exit after this many frames (0 = run until interrupted)")
	return cmd
}

func wsURL(target string) (string, error) {
	if !strings.Contains(target, "://") {
		target = "ws://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func printFrame(w io.Writer, data []byte) error {
	var head struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Type == "snapshot" {
		var snap model.Snapshot
		if err := json.Unmarshal(head.Data, &snap); err != nil {
			return err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n", watchTypeStyle.Render("snapshot"), watchOrderStyle.Render(fmt.Sprint(snap.Order)))
		for _, a := range snap.Articles {
			fmt.Fprintf(&b, "  %2d. [%d] %s (%s, %s)\n", a.Position+1, a.ID, a.Title, a.Author, a.Status)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
	if head.Type == "error" {
		_, err := fmt.Fprintf(w, "%s %s\n", watchRemoveStyle.Render("error"), string(data))
		return err
	}

	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	ev, err := env.Decode()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s %s\n", watchSeqStyle.Render(fmt.Sprintf("#%d", env.Seq)), watchTypeStyle.Render(string(env.Type)), describeEvent(ev))
	return err
}

func describeEvent(ev model.Event) string {
	switch e := ev.(type) {
	case model.OrderChanged:
		return watchOrderStyle.Render(fmt.Sprint(e.Order))
	case model.ArticleAdded:
		return watchAddStyle.Render(fmt.Sprintf("[%d] %s", e.Article.ID, e.Article.Title))
	case model.ArticleActivated:
		return watchAddStyle.Render(fmt.Sprintf("[%d] %s", e.Article.ID, e.Article.Title))
	case model.ArticleUpdated:
		return fmt.Sprintf("[%d] %s (%s)", e.Article.ID, e.Article.Title, e.Article.Status)
	case model.ArticleDeleted:
		return watchRemoveStyle.Render(fmt.Sprintf("[%d]", e.ID))
	case model.ArticleArchived:
		return watchRemoveStyle.Render(fmt.Sprintf("[%d]", e.ID))
	case model.CellChanged:
		return fmt.Sprintf("member %d meeting %d = %t", e.MemberID, e.MeetingID, e.Value)
	case model.MemberAdded:
		return watchAddStyle.Render(e.Member.Name)
	case model.MeetingAdded:
		return watchAddStyle.Render(e.Meeting.Label)
	case model.MemberRemoved:
		return watchRemoveStyle.Render(fmt.Sprintf("member %d", e.ID))
	case model.MeetingRemoved:
		return watchRemoveStyle.Render(fmt.Sprintf("meeting %d", e.ID))
	}
	return ""
}
