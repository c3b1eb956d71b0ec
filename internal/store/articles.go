package store

import (
	"database/sql"
	"errors"
	"time"

	"newsdesk/internal/model"
)

const articleColumns = `id, title, author, deadline, status, status_color, category, editor, position, active, created_at_unixms, updated_at_unixms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(r rowScanner) (model.Article, error) {
	var (
		a                  model.Article
		status, color, cat string
		active             int
		created, updated   int64
	)
	if err := r.Scan(&a.ID, &a.Title, &a.Author, &a.Deadline, &status, &color, &cat, &a.Editor, &a.Position, &active, &created, &updated); err != nil {
		return model.Article{}, err
	}
	a.Status = model.Status(status)
	a.StatusColor = model.StatusColor(color)
	a.Category = model.Category(cat)
	a.Active = active != 0
	a.CreatedAt = time.UnixMilli(created).UTC()
	a.UpdatedAt = time.UnixMilli(updated).UTC()
	return a, nil
}

func (t *Tx) scanArticles(query string, args ...any) ([]model.Article, error) {
	rows, err := t.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListActive returns the active articles by position, ties broken by id.
func (t *Tx) ListActive() ([]model.Article, error) {
	return t.scanArticles(`SELECT ` + articleColumns + ` FROM articles WHERE active = 1 ORDER BY position ASC, id ASC`)
}

// ListArchived returns archived articles, most recently touched first.
func (t *Tx) ListArchived() ([]model.Article, error) {
	return t.scanArticles(`SELECT ` + articleColumns + ` FROM articles WHERE active = 0 ORDER BY updated_at_unixms DESC, id DESC`)
}

func (t *Tx) CountActive() (int, error) {
	var n int
	err := t.queryRow(`SELECT COUNT(1) FROM articles WHERE active = 1`).Scan(&n)
	return n, err
}

func (t *Tx) Get(id int64) (model.Article, error) {
	a, err := scanArticle(t.queryRow(`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Article{}, ErrNotFound
	}
	return a, err
}

// Insert stores a new article and returns it with its assigned id.
// The caller decides Position and Active.
func (t *Tx) Insert(a model.Article) (model.Article, error) {
	if a.Status == "" {
		a.Status = model.StatusNotStarted
	}
	if a.StatusColor == "" {
		a.StatusColor = model.ColorWhite
	}
	res, err := t.exec(`INSERT INTO articles(
		title, author, deadline, status, status_color, category, editor,
		position, active, created_at_unixms, updated_at_unixms
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Author, a.Deadline, string(a.Status), string(a.StatusColor), string(a.Category), a.Editor,
		a.Position, boolToInt(a.Active), a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return model.Article{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Article{}, err
	}
	a.ID = id
	return a, nil
}

// Save writes every mutable field of an existing article.
func (t *Tx) Save(a model.Article) error {
	res, err := t.exec(`UPDATE articles SET
		title = ?, author = ?, deadline = ?, status = ?, status_color = ?, category = ?, editor = ?,
		position = ?, active = ?, updated_at_unixms = ?
	WHERE id = ?`,
		a.Title, a.Author, a.Deadline, string(a.Status), string(a.StatusColor), string(a.Category), a.Editor,
		a.Position, boolToInt(a.Active), a.UpdatedAt.UnixMilli(), a.ID,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (t *Tx) Delete(id int64) error {
	res, err := t.exec(`DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (t *Tx) SetPosition(id int64, pos int) error {
	res, err := t.exec(`UPDATE articles SET position = ? WHERE id = ?`, pos, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (t *Tx) SetActive(id int64, active bool, at time.Time) error {
	res, err := t.exec(`UPDATE articles SET active = ?, updated_at_unixms = ? WHERE id = ?`, boolToInt(active), at.UnixMilli(), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// ApplyPositions writes planned position changes. Rows that vanished since the
// plan was computed are skipped.
func (t *Tx) ApplyPositions(changes []PositionChange) error {
	for _, c := range changes {
		if err := t.SetPosition(c.ID, c.To); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// Resequence compacts the active set back to 0..n-1 and returns the canonical
// order together with what moved.
func (t *Tx) Resequence() (Plan, error) {
	return t.Reorder(nil)
}

// Reorder places lead first (unknown and archived ids ignored), keeps the rest
// in their current relative order and persists the changed positions.
func (t *Tx) Reorder(lead []int64) (Plan, error) {
	active, err := t.ListActive()
	if err != nil {
		return Plan{}, err
	}
	p := PlanOrder(active, lead)
	if err := t.ApplyPositions(p.Changes); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (t *Tx) AppendStatusChange(c model.StatusChange) (model.StatusChange, error) {
	res, err := t.exec(`INSERT INTO status_history(article_id, status, user_name, user_email, at_unixms) VALUES(?, ?, ?, ?, ?)`,
		c.ArticleID, string(c.Status), c.UserName, c.UserEmail, c.Timestamp.UnixMilli())
	if err != nil {
		return model.StatusChange{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.StatusChange{}, err
	}
	c.ID = id
	return c, nil
}

// StatusHistory returns the audit trail for an article, newest first.
func (t *Tx) StatusHistory(articleID int64) ([]model.StatusChange, error) {
	rows, err := t.query(`SELECT id, article_id, status, user_name, user_email, at_unixms
		FROM status_history WHERE article_id = ? ORDER BY at_unixms DESC, id DESC`, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StatusChange{}
	for rows.Next() {
		var (
			c      model.StatusChange
			status string
			at     int64
		)
		if err := rows.Scan(&c.ID, &c.ArticleID, &status, &c.UserName, &c.UserEmail, &at); err != nil {
			return nil, err
		}
		c.Status = model.Status(status)
		c.Timestamp = time.UnixMilli(at).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
