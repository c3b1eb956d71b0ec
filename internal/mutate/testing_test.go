package mutate

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"newsdesk/internal/model"
	"newsdesk/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) take() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func newTestService(t *testing.T) (*Service, *recorder, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "board.sqlite"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	rec := &recorder{}
	return NewService(st, rec, Options{}), rec, st
}

func mustInsert(t *testing.T, svc *Service, title string) model.Article {
	t.Helper()
	res, err := svc.Insert(context.Background(), NewArticle{Title: title, Author: "Ada"})
	if err != nil {
		t.Fatalf("Insert %q: %v", title, err)
	}
	return *res.Article
}

func types(evs []model.Event) []model.EventType {
	out := make([]model.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type())
	}
	return out
}

func assertDense(t *testing.T, svc *Service) []int64 {
	t.Helper()
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for i, a := range snap.Articles {
		if a.Position != i {
			t.Fatalf("position gap at %d: %+v", i, a)
		}
		if !a.Active {
			t.Fatalf("archived article in snapshot: %+v", a)
		}
	}
	return snap.Order
}
