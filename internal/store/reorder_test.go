package store

import (
	"math/rand"
	"reflect"
	"testing"

	"newsdesk/internal/model"
)

func art(id int64, pos int) model.Article {
	return model.Article{ID: id, Position: pos, Active: true}
}

func TestPlanOrder_CompactsGapsAndDuplicates(t *testing.T) {
	items := []model.Article{art(5, 7), art(2, 3), art(9, 3), art(1, 0)}
	p := PlanOrder(items, nil)

	if want := []int64{1, 2, 9, 5}; !reflect.DeepEqual(p.Order, want) {
		t.Fatalf("order=%v want %v", p.Order, want)
	}
	// 1 already sits at 0, everything else moves.
	if len(p.Changes) != 3 {
		t.Fatalf("expected 3 changes, got %+v", p.Changes)
	}
	for _, c := range p.Changes {
		if c.ID == 1 {
			t.Fatalf("unchanged row reported: %+v", c)
		}
	}
}

func TestPlanOrder_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		n := r.Intn(12)
		items := make([]model.Article, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, art(int64(i+1), r.Intn(20)))
		}
		first := PlanOrder(items, nil)
		second := PlanOrder(first.Apply(items), nil)
		if second.Changed() {
			t.Fatalf("round %d: second pass changed %+v", round, second.Changes)
		}
		if !reflect.DeepEqual(first.Order, second.Order) {
			t.Fatalf("round %d: order drifted %v -> %v", round, first.Order, second.Order)
		}
	}
}

func TestPlanOrder_LeadFirstThenRemainder(t *testing.T) {
	items := []model.Article{art(1, 0), art(2, 1), art(3, 2), art(4, 3)}

	p := PlanOrder(items, []int64{3, 1})
	if want := []int64{3, 1, 2, 4}; !reflect.DeepEqual(p.Order, want) {
		t.Fatalf("order=%v want %v", p.Order, want)
	}
}

func TestPlanOrder_IgnoresUnknownAndRepeatedIDs(t *testing.T) {
	items := []model.Article{art(1, 0), art(2, 1), art(3, 2)}

	p := PlanOrder(items, []int64{99, 2, 2, 42, 1})
	if want := []int64{2, 1, 3}; !reflect.DeepEqual(p.Order, want) {
		t.Fatalf("order=%v want %v", p.Order, want)
	}

	// Only stale ids: order is untouched.
	p = PlanOrder(items, []int64{99})
	if want := []int64{1, 2, 3}; !reflect.DeepEqual(p.Order, want) {
		t.Fatalf("order=%v want %v", p.Order, want)
	}
	if p.Changed() {
		t.Fatalf("expected no changes, got %+v", p.Changes)
	}
}

func TestPlanOrder_Empty(t *testing.T) {
	p := PlanOrder(nil, []int64{1, 2})
	if len(p.Order) != 0 || p.Changed() {
		t.Fatalf("expected empty plan, got %+v", p)
	}
}
