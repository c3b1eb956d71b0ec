package mutate

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"newsdesk/internal/model"
	"newsdesk/internal/store"
)

func TestInsertAppendsAndPublishes(t *testing.T) {
	svc, rec, _ := newTestService(t)
	a := mustInsert(t, svc, "a")
	b := mustInsert(t, svc, "b")

	if a.Position != 0 || b.Position != 1 {
		t.Fatalf("positions a=%d b=%d", a.Position, b.Position)
	}
	got := types(rec.take())
	want := []model.EventType{
		model.EventArticleAdded, model.EventOrderChanged,
		model.EventArticleAdded, model.EventOrderChanged,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events=%v want %v", got, want)
	}
	if order := assertDense(t, svc); !reflect.DeepEqual(order, []int64{a.ID, b.ID}) {
		t.Fatalf("order=%v", order)
	}
}

func TestInsertValidation(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Insert(ctx, NewArticle{Title: "   ", Author: "Ada"})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
	if _, err := svc.Insert(ctx, NewArticle{Title: "t", Author: "a", Deadline: "next week"}); !errors.As(err, &ve) {
		t.Fatalf("expected deadline validation error, got %v", err)
	}
	if _, err := svc.Insert(ctx, NewArticle{Title: "t", Author: "a", Category: "X"}); !errors.As(err, &ve) {
		t.Fatalf("expected category validation error, got %v", err)
	}
	if evs := rec.take(); len(evs) != 0 {
		t.Fatalf("validation failure published %v", types(evs))
	}
}

func TestReorderConvergesForAllClients(t *testing.T) {
	svc, rec, _ := newTestService(t)
	a := mustInsert(t, svc, "1")
	b := mustInsert(t, svc, "2")
	c := mustInsert(t, svc, "3")
	rec.take()

	res, err := svc.Reorder(context.Background(), []int64{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	want := []int64{c.ID, a.ID, b.ID}
	if !reflect.DeepEqual(res.Order, want) {
		t.Fatalf("result order=%v want %v", res.Order, want)
	}
	evs := rec.take()
	if len(evs) != 1 {
		t.Fatalf("expected one event, got %v", types(evs))
	}
	oc, ok := evs[0].(model.OrderChanged)
	if !ok || !reflect.DeepEqual(oc.Order, want) {
		t.Fatalf("event=%#v", evs[0])
	}
	if order := assertDense(t, svc); !reflect.DeepEqual(order, want) {
		t.Fatalf("stored order=%v", order)
	}
}

func TestReorderToleratesStaleIDs(t *testing.T) {
	svc, rec, _ := newTestService(t)
	a := mustInsert(t, svc, "a")
	b := mustInsert(t, svc, "b")
	c := mustInsert(t, svc, "c")
	if _, err := svc.Delete(context.Background(), b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rec.take()

	// Client still shows b; it also omits a.
	res, err := svc.Reorder(context.Background(), []int64{c.ID, b.ID, 12345})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if want := []int64{c.ID, a.ID}; !reflect.DeepEqual(res.Order, want) {
		t.Fatalf("order=%v want %v", res.Order, want)
	}
	if evs := rec.take(); len(evs) != 1 || evs[0].Type() != model.EventOrderChanged {
		t.Fatalf("events=%v", types(evs))
	}

	// Entirely stale submission still broadcasts the canonical order.
	res, err = svc.Reorder(context.Background(), []int64{b.ID})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no position changes")
	}
	if evs := rec.take(); len(evs) != 1 {
		t.Fatalf("expected order broadcast, got %v", types(evs))
	}
}

func TestArchiveReactivateRoundTrip(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	a := mustInsert(t, svc, "a")
	b := mustInsert(t, svc, "b")
	c := mustInsert(t, svc, "c")
	rec.take()

	if _, err := svc.Archive(ctx, b.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if got := types(rec.take()); !reflect.DeepEqual(got, []model.EventType{model.EventArticleArchived, model.EventOrderChanged}) {
		t.Fatalf("archive events=%v", got)
	}
	if order := assertDense(t, svc); !reflect.DeepEqual(order, []int64{a.ID, c.ID}) {
		t.Fatalf("order after archive=%v", order)
	}

	// Archiving again is a silent no-op.
	res, err := svc.Archive(ctx, b.ID)
	if err != nil {
		t.Fatalf("Archive no-op: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected changed=false")
	}
	if evs := rec.take(); len(evs) != 0 {
		t.Fatalf("no-op archive published %v", types(evs))
	}

	archived, err := svc.Archived(ctx)
	if err != nil {
		t.Fatalf("Archived: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != b.ID {
		t.Fatalf("archived=%+v", archived)
	}

	res, err = svc.Reactivate(ctx, b.ID)
	if err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if res.Article == nil || res.Article.Position != 2 || !res.Article.Active {
		t.Fatalf("reactivated article=%+v", res.Article)
	}
	evs := rec.take()
	if got := types(evs); !reflect.DeepEqual(got, []model.EventType{model.EventArticleActivated, model.EventOrderChanged}) {
		t.Fatalf("reactivate events=%v", got)
	}
	if act := evs[0].(model.ArticleActivated); act.Article.Title != "b" {
		t.Fatalf("activated event lacks article state: %+v", act)
	}
	if order := assertDense(t, svc); !reflect.DeepEqual(order, []int64{a.ID, c.ID, b.ID}) {
		t.Fatalf("order after reactivate=%v", order)
	}

	if res, err := svc.Reactivate(ctx, b.ID); err != nil || res.Changed {
		t.Fatalf("reactivate active: res=%+v err=%v", res, err)
	}
	if evs := rec.take(); len(evs) != 0 {
		t.Fatalf("no-op reactivate published %v", types(evs))
	}
}

func TestMissingIDsFailWithoutBroadcast(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	mustInsert(t, svc, "a")
	rec.take()

	var nf NotFoundError
	if _, err := svc.Delete(ctx, 9999); !errors.As(err, &nf) || nf.ID != 9999 {
		t.Fatalf("Delete: expected NotFoundError, got %v", err)
	}
	if _, err := svc.Archive(ctx, 9999); !errors.As(err, &nf) {
		t.Fatalf("Archive: expected NotFoundError, got %v", err)
	}
	if _, err := svc.Reactivate(ctx, 9999); !errors.As(err, &nf) {
		t.Fatalf("Reactivate: expected NotFoundError, got %v", err)
	}
	if Code(nf) != "not_found" {
		t.Fatalf("code=%s", Code(nf))
	}
	if evs := rec.take(); len(evs) != 0 {
		t.Fatalf("failed operations published %v", types(evs))
	}
}

func TestDensityUnderRandomOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	r := rand.New(rand.NewSource(42))

	var ids []int64
	for i := 0; i < 8; i++ {
		ids = append(ids, mustInsert(t, svc, "seed").ID)
	}
	for step := 0; step < 120; step++ {
		id := ids[r.Intn(len(ids))]
		var err error
		switch r.Intn(5) {
		case 0:
			a := mustInsert(t, svc, "new")
			ids = append(ids, a.ID)
		case 1:
			_, err = svc.Delete(ctx, id)
		case 2:
			_, err = svc.Archive(ctx, id)
		case 3:
			_, err = svc.Reactivate(ctx, id)
		case 4:
			perm := r.Perm(len(ids))
			sub := make([]int64, 0, len(perm)/2)
			for _, p := range perm[:len(perm)/2] {
				sub = append(sub, ids[p])
			}
			_, err = svc.Reorder(ctx, sub)
		}
		var nf NotFoundError
		if err != nil && !errors.As(err, &nf) {
			t.Fatalf("step %d: %v", step, err)
		}
		assertDense(t, svc)
	}

	plan, err := svc.Resequence(ctx)
	if err != nil {
		t.Fatalf("Resequence: %v", err)
	}
	if plan.Changed() {
		t.Fatalf("resequence after clean operations moved rows: %+v", plan.Changes)
	}
}

func TestConcurrentWritersShareOneDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "board.sqlite")

	// Each handle has its own pool and mutex, like a separate process.
	var svcs []*Service
	for i := 0; i < 2; i++ {
		st, err := store.Open(ctx, path)
		if err != nil {
			t.Fatalf("store.Open #%d: %v", i, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		svcs = append(svcs, NewService(st, &recorder{}, Options{}))
	}

	var mu sync.Mutex
	var ids []int64
	for i := 0; i < 6; i++ {
		ids = append(ids, mustInsert(t, svcs[i%2], "seed").ID)
	}
	pick := func(r *rand.Rand) int64 {
		mu.Lock()
		defer mu.Unlock()
		return ids[r.Intn(len(ids))]
	}

	const workers, steps = 8, 25
	errs := make(chan error, workers*steps)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			svc := svcs[w%len(svcs)]
			r := rand.New(rand.NewSource(int64(w) + 1))
			for step := 0; step < steps; step++ {
				id := pick(r)
				var err error
				switch r.Intn(5) {
				case 0:
					var res Result
					res, err = svc.Insert(ctx, NewArticle{Title: "new", Author: "Ada"})
					if err == nil {
						mu.Lock()
						ids = append(ids, res.Article.ID)
						mu.Unlock()
					}
				case 1:
					_, err = svc.Delete(ctx, id)
				case 2:
					_, err = svc.Archive(ctx, id)
				case 3:
					_, err = svc.Reactivate(ctx, id)
				case 4:
					// 9999 never exists and must be ignored.
					_, err = svc.Reorder(ctx, []int64{id, 9999, pick(r)})
				}
				if Code(err) == "storage" {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("storage error under concurrency: %v", err)
	}

	first := assertDense(t, svcs[0])
	if second := assertDense(t, svcs[1]); !reflect.DeepEqual(first, second) {
		t.Fatalf("handles disagree on order: %v vs %v", first, second)
	}
	plan, err := svcs[0].Resequence(ctx)
	if err != nil {
		t.Fatalf("Resequence: %v", err)
	}
	if plan.Changed() {
		t.Fatalf("concurrent writers left rows to resequence: %+v", plan.Changes)
	}
}

func TestApplyDispatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Apply(ctx, Op{Kind: OpInsert, Article: &NewArticle{Title: "x", Author: "y"}})
	if err != nil || !res.Success || len(res.Order) != 1 {
		t.Fatalf("insert via Apply: res=%+v err=%v", res, err)
	}
	id := res.Order[0]

	if res, err := svc.Apply(ctx, Op{Kind: "archive", ID: id}); err != nil || len(res.Order) != 0 {
		t.Fatalf("archive via Apply: res=%+v err=%v", res, err)
	}
	if res, err := svc.Apply(ctx, Op{Kind: "activate", ID: id}); err != nil || len(res.Order) != 1 {
		t.Fatalf("activate via Apply: res=%+v err=%v", res, err)
	}

	var ve ValidationError
	if _, err := svc.Apply(ctx, Op{Kind: "explode"}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Apply(ctx, Op{Kind: OpDelete}); !errors.As(err, &ve) || ve.Field != "id" {
		t.Fatalf("expected id validation error, got %v", err)
	}
	if _, err := svc.Apply(ctx, Op{Kind: OpInsert}); !errors.As(err, &ve) {
		t.Fatalf("expected article validation error, got %v", err)
	}
}
