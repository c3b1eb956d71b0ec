package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"newsdesk/internal/hub"
	"newsdesk/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// localBuffer is the hub queue the relay reads local events from.
const localBuffer = 1024

// Channel returns the pub/sub channel shared by every node of an instance.
func Channel(instance string) string {
	return fmt.Sprintf("newsdesk:%s:board_events", instance)
}

// Relay carries board events between server processes over Redis pub/sub.
// Delivery is at most once; clients recover from gaps through the full order
// carried by the next order_changed event or a snapshot.
type Relay struct {
	rdb     *redis.Client
	channel string
	nodeID  string
	seq     atomic.Uint64
	log     *slog.Logger
	ready   chan struct{}
}

type Config struct {
	Instance string
	// NodeID stamps envelopes sent through Publish. Empty means a random id.
	NodeID string
	Logger *slog.Logger
}

func New(rdb *redis.Client, cfg Config) (*Relay, error) {
	if rdb == nil {
		return nil, errors.New("relay: redis client is required")
	}
	if cfg.Instance == "" {
		return nil, errors.New("relay: instance name cannot be empty")
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		rdb:     rdb,
		channel: Channel(cfg.Instance),
		nodeID:  cfg.NodeID,
		log:     cfg.Logger.With("component", "relay", "channel", Channel(cfg.Instance)),
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once Run is subscribed to Redis.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Send publishes an envelope to every node.
func (r *Relay) Send(ctx context.Context, env model.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Publish stamps ev as coming from this relay's node and sends it
// synchronously. It lets a process without a hub (the CLI) notify running
// servers. It implements mutate.Publisher.
func (r *Relay) Publish(ev model.Event) {
	env, err := model.NewEnvelope(ev, r.nodeID, r.seq.Add(1))
	if err != nil {
		r.log.Error("dropping unencodable event", "type", ev.Type(), "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Send(ctx, env); err != nil {
		r.log.Warn("relay publish failed", "type", env.Type, "error", err)
	}
}

// Run bridges h and Redis until ctx is done: events that originate on h are
// sent out, and events from other nodes are delivered into h. Envelopes that
// carry h's own node id are never delivered back.
func (r *Relay) Run(ctx context.Context, h *hub.Hub) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	remote := pubsub.Channel()

	local := h.SubscribeBuffer(localBuffer)
	defer func() { local.Close() }()
	close(r.ready)
	r.log.Info("relay started", "node", h.NodeID())

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-local.C:
			if !ok {
				// Closed without eviction means the hub shut down.
				if ctx.Err() != nil || !local.Evicted() {
					return nil
				}
				// Fell behind the hub. Reattach and keep going; the next
				// order_changed resynchronizes peers.
				r.log.Warn("relay fell behind local hub; resubscribing")
				local = h.SubscribeBuffer(localBuffer)
				continue
			}
			if env.Origin != h.NodeID() {
				continue
			}
			if err := r.Send(ctx, env); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn("relay send failed", "type", env.Type, "seq", env.Seq, "error", err)
			}
		case msg, ok := <-remote:
			if !ok {
				return errors.New("relay: redis subscription closed")
			}
			var env model.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("skipping malformed relay message", "error", err)
				continue
			}
			if env.Origin == h.NodeID() {
				continue
			}
			h.Deliver(env)
		}
	}
}
