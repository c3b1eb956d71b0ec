package web

import (
	"net/http"
	"time"

	"newsdesk/internal/model"

	"github.com/starfederation/datastar-go/datastar"
)

// handleEvents serves the board as Datastar signals: {order, seq, lastEvent}.
// Clients patch their local order from the order signal and refetch an
// article when lastEvent names one they display.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sub := s.hub.Subscribe()
	defer sub.Close()

	sse := datastar.NewSSE(w, r)

	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		_ = sse.MarshalAndPatchSignals(map[string]any{"error": err.Error()})
		return
	}
	_ = sse.MarshalAndPatchSignals(map[string]any{
		"order":     snap.Order,
		"seq":       0,
		"lastEvent": "snapshot",
	})

	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case env, ok := <-sub.C:
			if !ok {
				// Evicted; the browser reconnects and gets a fresh snapshot.
				return
			}
			sig := map[string]any{
				"seq":       env.Seq,
				"lastEvent": string(env.Type),
			}
			if env.Type == model.EventOrderChanged {
				ev, err := env.Decode()
				if err != nil {
					s.log.Warn("undecodable order event", "error", err)
					continue
				}
				sig["order"] = ev.(model.OrderChanged).Order
			}
			if err := sse.MarshalAndPatchSignals(sig); err != nil {
				return
			}
		}
	}
}
