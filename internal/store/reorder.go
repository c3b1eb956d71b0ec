package store

import (
	"sort"

	"newsdesk/internal/model"
)

// PositionChange is one row whose position must be rewritten.
type PositionChange struct {
	ID   int64 `json:"id"`
	From int   `json:"from"`
	To   int   `json:"to"`
}

// Plan is the outcome of a resequence: the canonical order and the rows that moved.
// Changes includes only rows whose stored position differs from their new index.
type Plan struct {
	Order   []int64          `json:"order"`
	Changes []PositionChange `json:"changes"`
}

func (p Plan) Changed() bool { return len(p.Changes) > 0 }

// SortByPosition sorts articles in place by position, then id. Duplicate or
// gap-ridden positions still yield a total order.
func SortByPosition(items []model.Article) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}

// PlanOrder computes a gap-free assignment 0..n-1 over active.
//
// Ids in lead come first in the given order; ids not in active (stale, archived,
// unknown) and repeats are skipped. The remaining active rows follow in their
// current (position, id) order. With an empty lead this is a plain compaction,
// and running it on its own output yields no changes.
func PlanOrder(active []model.Article, lead []int64) Plan {
	cur := append([]model.Article(nil), active...)
	SortByPosition(cur)

	byID := make(map[int64]model.Article, len(cur))
	for _, a := range cur {
		byID[a.ID] = a
	}

	final := make([]model.Article, 0, len(cur))
	placed := make(map[int64]bool, len(cur))
	for _, id := range lead {
		a, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		final = append(final, a)
	}
	for _, a := range cur {
		if placed[a.ID] {
			continue
		}
		placed[a.ID] = true
		final = append(final, a)
	}

	p := Plan{Order: make([]int64, 0, len(final)), Changes: []PositionChange{}}
	for i, a := range final {
		p.Order = append(p.Order, a.ID)
		if a.Position != i {
			p.Changes = append(p.Changes, PositionChange{ID: a.ID, From: a.Position, To: i})
		}
	}
	return p
}

// Apply returns a copy of items with the plan's positions written in, sorted
// into the planned order.
func (p Plan) Apply(items []model.Article) []model.Article {
	idx := make(map[int64]int, len(p.Order))
	for i, id := range p.Order {
		idx[id] = i
	}
	out := make([]model.Article, 0, len(p.Order))
	for _, a := range items {
		if i, ok := idx[a.ID]; ok {
			a.Position = i
			out = append(out, a)
		}
	}
	SortByPosition(out)
	return out
}
