package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"newsdesk/internal/hub"
	"newsdesk/internal/mutate"
	"newsdesk/internal/relay"
	"newsdesk/internal/session"
	"newsdesk/internal/store"
	"newsdesk/internal/web"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board server (HTTP, WebSocket and SSE)",
		Long: strings.TrimSpace(`
Run the board server. Every committed change is pushed to connected clients
over /ws (WebSocket) and /events (Datastar SSE).

With redis.addr configured, servers sharing an instance name relay events to
each other and share sessions, so several processes can serve one board.
`),
		Example: strings.TrimSpace(`
# Serve on localhost
newsdesk serve --addr 127.0.0.1:8080

# Two servers behind a load balancer
NEWSDESK_REDIS_ADDR=localhost:6379 newsdesk serve --addr :8081
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = cfg.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, cfg.DBPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			nodeID := uuid.NewString()
			h := hub.New(hub.Config{Buffer: cfg.Hub.Buffer, NodeID: nodeID, Logger: app.log})
			defer h.Close()
			svc := mutate.NewService(st, h, mutate.Options{Logger: app.log})

			var rdb *redis.Client
			var rl *relay.Relay
			sessions := session.Store(session.NewMemoryStore(cfg.Session.TTL))
			if cfg.Redis.Enabled() {
				rdb = newRedisClient(app)
				defer rdb.Close()
				if err := rdb.Ping(ctx).Err(); err != nil {
					return writeErr(cmd, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err))
				}
				rl, err = relay.New(rdb, relay.Config{Instance: cfg.Instance, NodeID: nodeID, Logger: app.log})
				if err != nil {
					return writeErr(cmd, err)
				}
				if cfg.Session.Backend == "redis" {
					rs, err := session.NewRedisStore(rdb, cfg.Instance, cfg.Session.TTL)
					if err != nil {
						return writeErr(cmd, err)
					}
					sessions = rs
				}
			}

			srv, err := web.NewServer(svc, h, sessions, web.ServerConfig{
				WriteTimeout:    cfg.WS.WriteTimeout,
				FramesPerSecond: cfg.WS.FramesPerSecond,
				Burst:           cfg.WS.Burst,
				Logger:          app.log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"db":        st.Path(),
					"instance":  cfg.Instance,
					"node":      nodeID,
					"relay":     rl != nil,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"newsdesk watch --addr " + actualAddr},
			})
			app.log.Info("serving", "addr", actualAddr, "db", st.Path(), "relay", rl != nil)

			httpSrv := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			if rl != nil {
				g.Go(func() error { return rl.Run(gctx, h) })
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				// Close subscriptions first so streaming handlers return.
				h.Close()
				return httpSrv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default from config)")
	return cmd
}
