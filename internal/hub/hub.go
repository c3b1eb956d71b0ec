package hub

import (
	"log/slog"
	"sync"

	"newsdesk/internal/model"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultBuffer = 64

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsdesk_hub_subscribers",
		Help: "Subscribers currently attached to the broadcast hub",
	})
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_hub_published_total",
		Help: "Envelopes delivered into the hub by event type",
	}, []string{"type"})
	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_hub_evictions_total",
		Help: "Subscribers dropped because their buffer was full",
	})
)

// Subscription is one receiver attached to the hub. C is closed when the
// subscription is cancelled or the hub evicts it; an evicted subscriber should
// fetch a fresh snapshot before subscribing again.
type Subscription struct {
	ID string
	C  <-chan model.Envelope

	h       *Hub
	ch      chan model.Envelope
	evicted bool
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	s.h.detachLocked(s)
}

// Evicted reports whether the hub dropped this subscriber for falling behind.
func (s *Subscription) Evicted() bool {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	return s.evicted
}

// Hub fans events out to every subscriber attached at publish time.
// Publishing never blocks on a subscriber.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	seq    uint64
	nodeID string
	buffer int
	log    *slog.Logger
}

type Config struct {
	// Buffer is the per-subscriber queue length. Zero means DefaultBuffer.
	Buffer int
	// NodeID stamps envelopes published here. Empty means a random id.
	NodeID string
	Logger *slog.Logger
}

func New(cfg Config) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{
		subs:   map[*Subscription]struct{}{},
		nodeID: cfg.NodeID,
		buffer: cfg.Buffer,
		log:    cfg.Logger.With("component", "hub"),
	}
}

func (h *Hub) NodeID() string { return h.nodeID }

// Subscribe attaches a receiver. It sees only events published after this call.
func (h *Hub) Subscribe() *Subscription {
	return h.SubscribeBuffer(h.buffer)
}

// SubscribeBuffer is Subscribe with an explicit queue length.
func (h *Hub) SubscribeBuffer(n int) *Subscription {
	if n <= 0 {
		n = h.buffer
	}
	ch := make(chan model.Envelope, n)
	s := &Subscription{ID: uuid.NewString(), C: ch, h: h, ch: ch}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	subscribersGauge.Inc()
	return s
}

// Len returns the number of attached subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish stamps ev with this node's id and the next sequence number and
// delivers it. It implements mutate.Publisher.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	env, err := model.NewEnvelope(ev, h.nodeID, h.seq)
	if err != nil {
		h.log.Error("dropping unencodable event", "type", ev.Type(), "error", err)
		return
	}
	h.deliverLocked(env)
}

// Deliver hands an already stamped envelope (typically from another node) to
// local subscribers unchanged.
func (h *Hub) Deliver(env model.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(env)
}

func (h *Hub) deliverLocked(env model.Envelope) {
	publishedTotal.WithLabelValues(string(env.Type)).Inc()
	for s := range h.subs {
		select {
		case s.ch <- env:
		default:
			s.evicted = true
			h.detachLocked(s)
			evictionsTotal.Inc()
			h.log.Warn("evicted slow subscriber", "subscriber", s.ID, "type", env.Type, "seq", env.Seq)
		}
	}
}

func (h *Hub) detachLocked(s *Subscription) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
	subscribersGauge.Dec()
}

// Close detaches every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		h.detachLocked(s)
	}
}
