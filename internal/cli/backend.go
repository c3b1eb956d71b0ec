package cli

import (
	"context"
	"fmt"

	"newsdesk/internal/mutate"
	"newsdesk/internal/relay"
	"newsdesk/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// backend is what one-shot commands write through.
type backend struct {
	st  *store.Store
	svc *mutate.Service
	rdb *redis.Client
}

func (b *backend) Close() {
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
	_ = b.st.Close()
}

func newRedisClient(app *App) *redis.Client {
	rc := app.cfg.Redis
	return redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
}

// openBackend opens the board database. With Redis configured, committed
// changes are relayed to running servers so their clients see CLI edits live.
func openBackend(ctx context.Context, app *App) (*backend, error) {
	st, err := store.Open(ctx, app.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	b := &backend{st: st}

	var pub mutate.Publisher
	if app.cfg.Redis.Enabled() {
		b.rdb = newRedisClient(app)
		r, err := relay.New(b.rdb, relay.Config{
			Instance: app.cfg.Instance,
			NodeID:   "cli-" + uuid.NewString(),
			Logger:   app.log,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("relay: %w", err)
		}
		pub = r
	}
	b.svc = mutate.NewService(st, pub, mutate.Options{Logger: app.log})
	return b, nil
}
