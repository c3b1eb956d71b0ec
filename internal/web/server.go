package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsdesk/internal/hub"
	"newsdesk/internal/model"
	"newsdesk/internal/mutate"
	"newsdesk/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sessionCookie = "newsdesk_session"
	maxBodyBytes  = 1 << 20
)

type ServerConfig struct {
	// WriteTimeout bounds each WebSocket frame write.
	WriteTimeout time.Duration
	// FramesPerSecond and Burst limit inbound WebSocket frames per connection.
	FramesPerSecond float64
	Burst           int
	// KeepAlive is the SSE keepalive interval.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

type Server struct {
	cfg      ServerConfig
	svc      *mutate.Service
	hub      *hub.Hub
	sessions session.Store
	log      *slog.Logger
}

func NewServer(svc *mutate.Service, h *hub.Hub, sessions session.Store, cfg ServerConfig) (*Server, error) {
	if svc == nil || h == nil {
		return nil, errors.New("web: service and hub are required")
	}
	if sessions == nil {
		sessions = session.NewMemoryStore(0)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.FramesPerSecond <= 0 {
		cfg.FramesPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 25 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		svc:      svc,
		hub:      h,
		sessions: sessions,
		log:      log.With("component", "web"),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /articles", s.handleSnapshot)
	mux.HandleFunc("GET /articles/archived", s.handleArchived)
	mux.HandleFunc("GET /articles/{id}", s.handleGetArticle)
	mux.HandleFunc("POST /articles", s.handleInsert)
	mux.HandleFunc("DELETE /articles/{id}", s.handleDelete)
	mux.HandleFunc("POST /articles/{id}/archive", s.handleArchive)
	mux.HandleFunc("POST /articles/{id}/activate", s.handleActivate)
	mux.HandleFunc("POST /articles/{id}/update", s.handleUpdate)
	mux.HandleFunc("POST /articles/{id}/status", s.handleSetStatus)
	mux.HandleFunc("POST /articles/{id}/status_color", s.handleSetStatusColor)
	mux.HandleFunc("POST /articles/{id}/category", s.handleSetCategory)
	mux.HandleFunc("POST /articles/{id}/editor", s.handleSetEditor)
	mux.HandleFunc("GET /articles/{id}/status_history", s.handleStatusHistory)
	mux.HandleFunc("POST /order", s.handleReorder)
	mux.HandleFunc("POST /operations", s.handleOperation)

	mux.HandleFunc("GET /attendance", s.handleMatrix)
	mux.HandleFunc("POST /attendance/members", s.handleAddMember)
	mux.HandleFunc("DELETE /attendance/members/{id}", s.handleRemoveMember)
	mux.HandleFunc("POST /attendance/meetings", s.handleAddMeeting)
	mux.HandleFunc("DELETE /attendance/meetings/{id}", s.handleRemoveMeeting)
	mux.HandleFunc("POST /attendance/toggle", s.handleToggle)

	mux.HandleFunc("POST /session", s.handleSessionStart)
	mux.HandleFunc("DELETE /session", s.handleSessionEnd)

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /events", s.handleEvents)

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"node":        s.hub.NodeID(),
		"subscribers": s.hub.Len(),
	})
}

// Articles.

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Archived(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": items})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	a, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var in mutate.NewArticle
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusCreated)(s.svc.Insert(r.Context(), in))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.byID(w, r, s.svc.Delete)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.byID(w, r, s.svc.Archive)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.byID(w, r, s.svc.Reactivate)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var p mutate.ArticlePatch
	if err := decodeJSON(r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(s.svc.Update(r.Context(), id, p))
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Status model.Status `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(s.svc.SetStatus(r.Context(), id, body.Status, s.identity(r)))
}

func (s *Server) handleSetStatusColor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Color model.StatusColor `json:"color"`
	}
	if err := decodeOptionalJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(s.svc.SetStatusColor(r.Context(), id, body.Color))
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Category model.Category `json:"category"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(s.svc.SetCategory(r.Context(), id, body.Category))
}

func (s *Server) handleSetEditor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Editor string `json:"editor"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(s.svc.SetEditor(r.Context(), id, body.Editor))
}

func (s *Server) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	h, err := s.svc.StatusHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": h})
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Order idList `json:"order"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(s.svc.Reorder(r.Context(), body.Order))
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind    string             `json:"kind"`
		ID      flexID             `json:"id"`
		Order   idList             `json:"order"`
		Article *mutate.NewArticle `json:"article"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	op := mutate.Op{
		Kind:    mutate.OpKind(body.Kind),
		ID:      int64(body.ID),
		Order:   body.Order,
		Article: body.Article,
	}
	s.writeResult(w, http.StatusOK)(s.svc.Apply(r.Context(), op))
}

func (s *Server) byID(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (mutate.Result, error)) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, http.StatusOK)(fn(r.Context(), id))
}

// Attendance.

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Matrix(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.AddMember(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "member": m})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.RemoveMember(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAddMeeting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.AddMeeting(r.Context(), body.Label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "meeting": m})
}

func (s *Server) handleRemoveMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.RemoveMeeting(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MemberID  flexID `json:"memberId"`
		MeetingID flexID `json:"meetingId"`
		Value     *bool  `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	v, err := s.svc.SetOrToggle(r.Context(), int64(body.MemberID), int64(body.MeetingID), body.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"memberId":  int64(body.MemberID),
		"meetingId": int64(body.MeetingID),
		"value":     v,
	})
}

// Sessions.

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var who model.Identity
	if err := decodeJSON(r, &who); err != nil {
		s.writeError(w, err)
		return
	}
	who.Name = strings.TrimSpace(who.Name)
	who.Email = strings.TrimSpace(who.Email)
	if who.Name == "" && who.Email == "" {
		s.writeError(w, mutate.ValidationError{Field: "name", Reason: "name or email is required"})
		return
	}
	id := session.NewID()
	if err := s.sessions.Put(r.Context(), id, who); err != nil {
		s.writeError(w, mutate.StorageError{Op: "session", Err: err})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "identity": who})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if err := s.sessions.Evict(r.Context(), c.Value); err != nil {
			s.writeError(w, mutate.StorageError{Op: "session", Err: err})
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// identity returns the caller's session identity, or the zero identity.
func (s *Server) identity(r *http.Request) model.Identity {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return model.Identity{}
	}
	who, err := s.sessions.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.log.Warn("session lookup failed", "error", err)
		}
		return model.Identity{}
	}
	return who
}

// Helpers.

func (s *Server) writeResult(w http.ResponseWriter, okStatus int) func(mutate.Result, error) {
	return func(res mutate.Result, err error) {
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, okStatus, res)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := mutate.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "conflict":
		status = http.StatusConflict
	case "validation":
		status = http.StatusBadRequest
	default:
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"error":   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return mutate.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := decodeJSON(r, v)
	var ve mutate.ValidationError
	if errors.As(err, &ve) && ve.Reason == io.EOF.Error() {
		return nil
	}
	return err
}

func pathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, mutate.ValidationError{Field: "id", Reason: fmt.Sprintf("not a valid id: %q", raw)}
	}
	return id, nil
}
