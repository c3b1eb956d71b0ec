package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/model"
	"newsdesk/internal/mutate"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header (non-browser tools) and
// browsers whose Origin host matches the request host exactly.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// wsFrame is what clients send: {"type":"reorder","order":[...]} or {"type":"ping"}.
type wsFrame struct {
	Type  string `json:"type"`
	Order idList `json:"order"`
}

// Server-originated frames that are not board events.
type wsSnapshotFrame struct {
	Type string         `json:"type"`
	Data model.Snapshot `json:"data"`
}

type wsErrorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// wsPeer serializes writes; gorilla connections allow one writer at a time.
type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (p *wsPeer) send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	return p.conn.WriteJSON(v)
}

func (p *wsPeer) close(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(p.timeout))
}

// handleWS streams every board event to the client. The first frame is a
// snapshot taken after the subscription is attached, so nothing published in
// between is missed. Clients may send reorder frames on the same socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.hub.Subscribe()
	defer sub.Close()

	peer := &wsPeer{conn: conn, timeout: s.cfg.WriteTimeout}
	log := s.log.With("subscriber", sub.ID)

	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		_ = peer.send(wsErrorFrame{Type: "error", Code: mutate.Code(err), Error: err.Error()})
		return
	}
	if err := peer.send(wsSnapshotFrame{Type: "snapshot", Data: snap}); err != nil {
		return
	}
	log.Debug("websocket client attached")

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- s.pumpHubToWS(ctx, sub.C, peer)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- s.pumpWSToService(ctx, peer)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Debug("websocket closed", "error", err)
		}
	}
	cancel()
	// Unblock the reader.
	_ = conn.SetReadDeadline(time.Now())
	wg.Wait()
}

func (s *Server) pumpHubToWS(ctx context.Context, events <-chan model.Envelope, peer *wsPeer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-events:
			if !ok {
				// Evicted for falling behind: ask the client to reconnect and resync.
				peer.close(websocket.CloseTryAgainLater, "resync")
				return nil
			}
			if err := peer.send(env); err != nil {
				return err
			}
		}
	}
}

func (s *Server) pumpWSToService(ctx context.Context, peer *wsPeer) error {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.FramesPerSecond), s.cfg.Burst)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			return err
		}
		if !limiter.Allow() {
			_ = peer.send(wsErrorFrame{Type: "error", Code: "rate_limited", Error: "too many frames"})
			continue
		}

		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil {
			_ = peer.send(wsErrorFrame{Type: "error", Code: "validation", Error: "malformed frame"})
			continue
		}
		switch strings.ToLower(strings.TrimSpace(f.Type)) {
		case "reorder":
			// The resulting order comes back through the hub like for everyone else.
			if _, err := s.svc.Reorder(ctx, f.Order); err != nil {
				_ = peer.send(wsErrorFrame{Type: "error", Code: mutate.Code(err), Error: err.Error()})
			}
		case "ping":
			_ = peer.send(map[string]string{"type": "pong"})
		default:
			_ = peer.send(wsErrorFrame{Type: "error", Code: "validation", Error: "unknown frame type " + f.Type})
		}
	}
}
