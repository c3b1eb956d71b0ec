package mutate

import (
	"context"

	"newsdesk/internal/model"
	"newsdesk/internal/store"
)

// ArticlePatch changes the free-text fields of an article. Nil fields are left alone.
type ArticlePatch struct {
	Title    *string `json:"title,omitempty"`
	Author   *string `json:"author,omitempty"`
	Deadline *string `json:"deadline,omitempty"`
}

func (s *Service) normalizePatch(p ArticlePatch) (ArticlePatch, error) {
	if p.Title != nil {
		v := clean(*p.Title)
		if err := s.checkVar("title", v, "required,max=200"); err != nil {
			return ArticlePatch{}, err
		}
		p.Title = &v
	}
	if p.Author != nil {
		v := clean(*p.Author)
		if err := s.checkVar("author", v, "required,max=100"); err != nil {
			return ArticlePatch{}, err
		}
		p.Author = &v
	}
	if p.Deadline != nil {
		v := clean(*p.Deadline)
		if err := s.checkVar("deadline", v, "omitempty,datetime=2006-01-02"); err != nil {
			return ArticlePatch{}, err
		}
		p.Deadline = &v
	}
	return p, nil
}

// Update edits title, author or deadline.
func (s *Service) Update(ctx context.Context, id int64, p ArticlePatch) (Result, error) {
	p, err := s.normalizePatch(p)
	if err != nil {
		return Result{}, err
	}
	return s.editArticle(ctx, "update", id, func(a *model.Article) {
		if p.Title != nil {
			a.Title = *p.Title
		}
		if p.Author != nil {
			a.Author = *p.Author
		}
		if p.Deadline != nil {
			a.Deadline = *p.Deadline
		}
	}, nil)
}

// SetStatus moves an article through the workflow and records who did it.
func (s *Service) SetStatus(ctx context.Context, id int64, status model.Status, actor model.Identity) (Result, error) {
	if !status.Valid() {
		return Result{}, ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	actor.Name = clean(actor.Name)
	actor.Email = clean(actor.Email)
	return s.editArticle(ctx, "set_status", id, func(a *model.Article) {
		a.Status = status
	}, func(tx *store.Tx, a model.Article) error {
		_, err := tx.AppendStatusChange(model.StatusChange{
			ArticleID: a.ID,
			Status:    a.Status,
			UserName:  actor.Name,
			UserEmail: actor.Email,
			Timestamp: a.UpdatedAt,
		})
		return err
	})
}

// SetStatusColor sets the highlight color. An empty color advances the
// white -> red -> yellow cycle.
func (s *Service) SetStatusColor(ctx context.Context, id int64, color model.StatusColor) (Result, error) {
	if color != "" && !color.Valid() {
		return Result{}, ValidationError{Field: "statusColor", Reason: "must be white, red or yellow"}
	}
	return s.editArticle(ctx, "set_status_color", id, func(a *model.Article) {
		if color == "" {
			a.StatusColor = a.StatusColor.Next()
			return
		}
		a.StatusColor = color
	}, nil)
}

func (s *Service) SetCategory(ctx context.Context, id int64, cat model.Category) (Result, error) {
	if !cat.Valid() {
		return Result{}, ValidationError{Field: "category", Reason: "must be one of F, N, O, S"}
	}
	return s.editArticle(ctx, "set_category", id, func(a *model.Article) {
		a.Category = cat
	}, nil)
}

func (s *Service) SetEditor(ctx context.Context, id int64, editor string) (Result, error) {
	editor = clean(editor)
	if err := s.checkVar("editor", editor, "max=100"); err != nil {
		return Result{}, err
	}
	return s.editArticle(ctx, "set_editor", id, func(a *model.Article) {
		a.Editor = editor
	}, nil)
}

// StatusHistory returns the status audit trail, newest first.
func (s *Service) StatusHistory(ctx context.Context, id int64) ([]model.StatusChange, error) {
	var out []model.StatusChange
	err := s.view(ctx, "status_history", func(tx *store.Tx) error {
		if _, err := tx.Get(id); err != nil {
			return notFoundAs(err, "article", id)
		}
		var err error
		out, err = tx.StatusHistory(id)
		return err
	})
	return out, err
}

// editArticle applies edit to a stored article. When the edit leaves the
// article unchanged the call succeeds with Changed=false and publishes nothing.
// after runs in the same transaction once the new state is saved.
func (s *Service) editArticle(ctx context.Context, op string, id int64, edit func(a *model.Article), after func(tx *store.Tx, a model.Article) error) (Result, error) {
	var res Result
	err := s.mutate(ctx, op, idAttr(id), func(tx *store.Tx) ([]model.Event, error) {
		a, err := tx.Get(id)
		if err != nil {
			return nil, notFoundAs(err, "article", id)
		}
		before := a
		edit(&a)
		if sameFields(before, a) {
			res = Result{Success: true, Article: &a}
			return nil, nil
		}
		a.UpdatedAt = s.now()
		if err := tx.Save(a); err != nil {
			return nil, err
		}
		if after != nil {
			if err := after(tx, a); err != nil {
				return nil, err
			}
		}
		res = Result{Success: true, Article: &a, Changed: true}
		return []model.Event{model.ArticleUpdated{Article: a}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func sameFields(a, b model.Article) bool {
	return a.Title == b.Title &&
		a.Author == b.Author &&
		a.Deadline == b.Deadline &&
		a.Status == b.Status &&
		a.StatusColor == b.StatusColor &&
		a.Category == b.Category &&
		a.Editor == b.Editor
}
