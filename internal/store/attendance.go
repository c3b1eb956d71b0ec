package store

import (
	"database/sql"
	"errors"
	"strings"

	"newsdesk/internal/model"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when a member name or meeting label is already taken.
var ErrDuplicate = errors.New("duplicate")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// AddMember inserts a member and seeds an absent cell for every existing meeting.
func (t *Tx) AddMember(name string) (model.Member, error) {
	res, err := t.exec(`INSERT INTO members(name) VALUES(?)`, name)
	if isUniqueViolation(err) {
		return model.Member{}, ErrDuplicate
	}
	if err != nil {
		return model.Member{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Member{}, err
	}
	if _, err := t.exec(`INSERT INTO attendance(member_id, meeting_id, present)
		SELECT ?, id, 0 FROM meetings WHERE true
		ON CONFLICT(member_id, meeting_id) DO NOTHING`, id); err != nil {
		return model.Member{}, err
	}
	return model.Member{ID: id, Name: name}, nil
}

// AddMeeting inserts a meeting and seeds an absent cell for every existing member.
func (t *Tx) AddMeeting(label string) (model.Meeting, error) {
	res, err := t.exec(`INSERT INTO meetings(label) VALUES(?)`, label)
	if isUniqueViolation(err) {
		return model.Meeting{}, ErrDuplicate
	}
	if err != nil {
		return model.Meeting{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Meeting{}, err
	}
	if _, err := t.exec(`INSERT INTO attendance(member_id, meeting_id, present)
		SELECT id, ?, 0 FROM members WHERE true
		ON CONFLICT(member_id, meeting_id) DO NOTHING`, id); err != nil {
		return model.Meeting{}, err
	}
	return model.Meeting{ID: id, Label: label}, nil
}

// RemoveMember deletes a member; its cells go with it.
func (t *Tx) RemoveMember(id int64) error {
	res, err := t.exec(`DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// RemoveMeeting deletes a meeting; its cells go with it.
func (t *Tx) RemoveMeeting(id int64) error {
	res, err := t.exec(`DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (t *Tx) MemberExists(id int64) (bool, error) {
	return t.exists(`SELECT COUNT(1) FROM members WHERE id = ?`, id)
}

func (t *Tx) MeetingExists(id int64) (bool, error) {
	return t.exists(`SELECT COUNT(1) FROM meetings WHERE id = ?`, id)
}

func (t *Tx) exists(query string, id int64) (bool, error) {
	var n int
	if err := t.queryRow(query, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cell returns the stored value and whether a row exists.
func (t *Tx) Cell(memberID, meetingID int64) (present bool, ok bool, err error) {
	var v int
	err = t.queryRow(`SELECT present FROM attendance WHERE member_id = ? AND meeting_id = ?`, memberID, meetingID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v != 0, true, nil
}

// PutCell creates or overwrites one cell.
func (t *Tx) PutCell(memberID, meetingID int64, present bool) error {
	_, err := t.exec(`INSERT INTO attendance(member_id, meeting_id, present) VALUES(?, ?, ?)
		ON CONFLICT(member_id, meeting_id) DO UPDATE SET present = excluded.present`,
		memberID, meetingID, boolToInt(present))
	return err
}

func (t *Tx) Members() ([]model.Member, error) {
	rows, err := t.query(`SELECT id, name FROM members ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Member{}
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *Tx) Meetings() ([]model.Meeting, error) {
	rows, err := t.query(`SELECT id, label FROM meetings ORDER BY label ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Meeting{}
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(&m.ID, &m.Label); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Matrix returns every member, meeting and stored cell.
func (t *Tx) Matrix() (model.Matrix, error) {
	members, err := t.Members()
	if err != nil {
		return model.Matrix{}, err
	}
	meetings, err := t.Meetings()
	if err != nil {
		return model.Matrix{}, err
	}
	rows, err := t.query(`SELECT member_id, meeting_id, present FROM attendance ORDER BY member_id, meeting_id`)
	if err != nil {
		return model.Matrix{}, err
	}
	defer rows.Close()
	cells := []model.Cell{}
	for rows.Next() {
		var (
			c model.Cell
			v int
		)
		if err := rows.Scan(&c.MemberID, &c.MeetingID, &v); err != nil {
			return model.Matrix{}, err
		}
		c.Present = v != 0
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return model.Matrix{}, err
	}
	return model.Matrix{Members: members, Meetings: meetings, Cells: cells}, nil
}

// CellCount returns the number of stored cells.
func (t *Tx) CellCount() (int, error) {
	var n int
	err := t.queryRow(`SELECT COUNT(1) FROM attendance`).Scan(&n)
	return n, err
}
