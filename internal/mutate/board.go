package mutate

import (
	"context"
	"errors"

	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// NewArticle is the caller-supplied part of an article.
type NewArticle struct {
	Title    string         `json:"title" validate:"required,max=200"`
	Author   string         `json:"author" validate:"required,max=100"`
	Deadline string         `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Category model.Category `json:"category"`
	Editor   string         `json:"editor" validate:"max=100"`
}

func (s *Service) normalizeNew(in NewArticle) (NewArticle, error) {
	in.Title = clean(in.Title)
	in.Author = clean(in.Author)
	in.Deadline = clean(in.Deadline)
	in.Editor = clean(in.Editor)
	if err := s.validate.Struct(in); err != nil {
		return NewArticle{}, s.validationError(err)
	}
	if !in.Category.Valid() {
		return NewArticle{}, ValidationError{Field: "category", Reason: "must be one of F, N, O, S"}
	}
	return in, nil
}

// Insert appends a new article to the end of the active order.
func (s *Service) Insert(ctx context.Context, in NewArticle) (Result, error) {
	in, err := s.normalizeNew(in)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = s.mutate(ctx, "insert", nil, func(tx *store.Tx) ([]model.Event, error) {
		n, err := tx.CountActive()
		if err != nil {
			return nil, err
		}
		now := s.now()
		a, err := tx.Insert(model.Article{
			Title:       in.Title,
			Author:      in.Author,
			Deadline:    in.Deadline,
			Category:    in.Category,
			Editor:      in.Editor,
			Status:      model.StatusNotStarted,
			StatusColor: model.ColorWhite,
			Position:    n,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, err
		}
		plan, err := tx.Resequence()
		if err != nil {
			return nil, err
		}
		a.Position = indexOf(plan.Order, a.ID)
		res = Result{Success: true, Order: plan.Order, Article: &a, Changed: true}
		return []model.Event{
			model.ArticleAdded{Article: a},
			model.OrderChanged{Order: plan.Order},
		}, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Delete removes an article and closes the gap it leaves.
func (s *Service) Delete(ctx context.Context, id int64) (Result, error) {
	var res Result
	err := s.mutate(ctx, "delete", idAttr(id), func(tx *store.Tx) ([]model.Event, error) {
		if err := tx.Delete(id); err != nil {
			return nil, notFoundAs(err, "article", id)
		}
		plan, err := tx.Resequence()
		if err != nil {
			return nil, err
		}
		res = Result{Success: true, Order: plan.Order, Changed: true}
		return []model.Event{
			model.ArticleDeleted{ID: id},
			model.OrderChanged{Order: plan.Order},
		}, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Archive takes an article out of the active order. Archiving an archived
// article succeeds without publishing anything.
func (s *Service) Archive(ctx context.Context, id int64) (Result, error) {
	var res Result
	err := s.mutate(ctx, "archive", idAttr(id), func(tx *store.Tx) ([]model.Event, error) {
		a, err := tx.Get(id)
		if err != nil {
			return nil, notFoundAs(err, "article", id)
		}
		if !a.Active {
			order, err := currentOrder(tx)
			if err != nil {
				return nil, err
			}
			res = Result{Success: true, Order: order, Article: &a}
			return nil, nil
		}
		if err := tx.SetActive(id, false, s.now()); err != nil {
			return nil, err
		}
		plan, err := tx.Resequence()
		if err != nil {
			return nil, err
		}
		a.Active = false
		res = Result{Success: true, Order: plan.Order, Article: &a, Changed: true}
		return []model.Event{
			model.ArticleArchived{ID: id},
			model.OrderChanged{Order: plan.Order},
		}, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Reactivate puts an archived article back at the end of the active order.
// Reactivating an active article succeeds without publishing anything.
func (s *Service) Reactivate(ctx context.Context, id int64) (Result, error) {
	var res Result
	err := s.mutate(ctx, "reactivate", idAttr(id), func(tx *store.Tx) ([]model.Event, error) {
		a, err := tx.Get(id)
		if err != nil {
			return nil, notFoundAs(err, "article", id)
		}
		if a.Active {
			order, err := currentOrder(tx)
			if err != nil {
				return nil, err
			}
			res = Result{Success: true, Order: order, Article: &a}
			return nil, nil
		}
		n, err := tx.CountActive()
		if err != nil {
			return nil, err
		}
		a.Active = true
		a.Position = n
		a.UpdatedAt = s.now()
		if err := tx.Save(a); err != nil {
			return nil, err
		}
		plan, err := tx.Resequence()
		if err != nil {
			return nil, err
		}
		a.Position = indexOf(plan.Order, a.ID)
		res = Result{Success: true, Order: plan.Order, Article: &a, Changed: true}
		return []model.Event{
			model.ArticleActivated{Article: a},
			model.OrderChanged{Order: plan.Order},
		}, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Reorder moves the submitted ids to the front in the submitted order.
// Unknown, archived and repeated ids are dropped; active ids that were left out
// keep their relative order after the submitted ones. The resulting order is
// always published, to the submitter as well, so every client converges.
func (s *Service) Reorder(ctx context.Context, ids []int64) (Result, error) {
	var res Result
	attrs := []attribute.KeyValue{attribute.Int("order.submitted", len(ids))}
	err := s.mutate(ctx, "reorder", attrs, func(tx *store.Tx) ([]model.Event, error) {
		plan, err := tx.Reorder(ids)
		if err != nil {
			return nil, err
		}
		res = Result{Success: true, Order: plan.Order, Changed: plan.Changed()}
		return []model.Event{model.OrderChanged{Order: plan.Order}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Resequence repairs the stored positions. It publishes the order only when
// something moved.
func (s *Service) Resequence(ctx context.Context) (store.Plan, error) {
	var out store.Plan
	err := s.mutate(ctx, "resequence", nil, func(tx *store.Tx) ([]model.Event, error) {
		plan, err := tx.Resequence()
		if err != nil {
			return nil, err
		}
		out = plan
		if !plan.Changed() {
			return nil, nil
		}
		return []model.Event{model.OrderChanged{Order: plan.Order}}, nil
	})
	return out, err
}

// Snapshot returns the active board in canonical order.
func (s *Service) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.view(ctx, "snapshot", func(tx *store.Tx) error {
		items, err := tx.ListActive()
		if err != nil {
			return err
		}
		snap.Articles = items
		snap.Order = make([]int64, 0, len(items))
		for _, a := range items {
			snap.Order = append(snap.Order, a.ID)
		}
		return nil
	})
	return snap, err
}

func (s *Service) Get(ctx context.Context, id int64) (model.Article, error) {
	var a model.Article
	err := s.view(ctx, "get", func(tx *store.Tx) error {
		var err error
		a, err = tx.Get(id)
		return notFoundAs(err, "article", id)
	})
	return a, err
}

func (s *Service) Archived(ctx context.Context) ([]model.Article, error) {
	var out []model.Article
	err := s.view(ctx, "archived", func(tx *store.Tx) error {
		var err error
		out, err = tx.ListArchived()
		return err
	})
	return out, err
}

func currentOrder(tx *store.Tx) ([]int64, error) {
	items, err := tx.ListActive()
	if err != nil {
		return nil, err
	}
	order := make([]int64, 0, len(items))
	for _, a := range items {
		order = append(order, a.ID)
	}
	return order, nil
}

func notFoundAs(err error, kind string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return err
}

func indexOf(order []int64, id int64) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}
