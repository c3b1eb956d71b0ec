package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsdesk/internal/model"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level     DoctorIssueLevel `json:"level"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	ArticleID int64            `json:"articleId,omitempty"`
	MemberID  int64            `json:"memberId,omitempty"`
	MeetingID int64            `json:"meetingId,omitempty"`
}

type DoctorReport struct {
	Active int           `json:"active"`
	Issues []DoctorIssue `json:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

// Doctor inspects the database without changing it. Position problems are
// errors (run a resequence to repair them); missing attendance rows are
// warnings since an absent cell reads as not present.
func (s *Store) Doctor(ctx context.Context) (DoctorReport, error) {
	rep := DoctorReport{Issues: []DoctorIssue{}}
	err := s.View(ctx, func(tx *Tx) error {
		if err := tx.integrityIssues(&rep); err != nil {
			return err
		}
		active, err := tx.ListActive()
		if err != nil {
			return err
		}
		rep.Active = len(active)
		rep.Issues = append(rep.Issues, positionIssues(active)...)
		return tx.missingCellIssues(&rep)
	})
	return rep, err
}

func (t *Tx) integrityIssues(rep *DoctorReport) error {
	var res string
	if err := t.queryRow(`PRAGMA integrity_check`).Scan(&res); err != nil {
		return err
	}
	if !strings.EqualFold(res, "ok") {
		rep.Issues = append(rep.Issues, DoctorIssue{Level: DoctorIssueLevelError, Code: "integrity", Message: res})
	}

	rows, err := t.query(`PRAGMA foreign_key_check`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var table, parent string
		var rowid, fkid any
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return err
		}
		rep.Issues = append(rep.Issues, DoctorIssue{
			Level:   DoctorIssueLevelError,
			Code:    "foreign_key",
			Message: fmt.Sprintf("%s row %v references missing %s", table, rowid, parent),
		})
	}
	return rows.Err()
}

// positionIssues expects active sorted by (position, id).
func positionIssues(active []model.Article) []DoctorIssue {
	var out []DoctorIssue
	for i, a := range active {
		switch {
		case i > 0 && a.Position == active[i-1].Position:
			out = append(out, DoctorIssue{
				Level:     DoctorIssueLevelError,
				Code:      "position_duplicate",
				Message:   fmt.Sprintf("article %d shares position %d with article %d", a.ID, a.Position, active[i-1].ID),
				ArticleID: a.ID,
			})
		case a.Position != i:
			out = append(out, DoctorIssue{
				Level:     DoctorIssueLevelError,
				Code:      "position_gap",
				Message:   fmt.Sprintf("article %d is at position %d, expected %d", a.ID, a.Position, i),
				ArticleID: a.ID,
			})
		}
	}
	return out
}

func (t *Tx) missingCellIssues(rep *DoctorReport) error {
	rows, err := t.query(`SELECT m.id, mt.id FROM members m CROSS JOIN meetings mt
		WHERE NOT EXISTS (SELECT 1 FROM attendance a WHERE a.member_id = m.id AND a.meeting_id = mt.id)
		ORDER BY m.id, mt.id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var memberID, meetingID int64
		if err := rows.Scan(&memberID, &meetingID); err != nil {
			return err
		}
		rep.Issues = append(rep.Issues, DoctorIssue{
			Level:     DoctorIssueLevelWarn,
			Code:      "missing_cell",
			Message:   fmt.Sprintf("no attendance row for member %d at meeting %d", memberID, meetingID),
			MemberID:  memberID,
			MeetingID: meetingID,
		})
	}
	return rows.Err()
}

var ErrDoctorIssuesFound = errors.New("doctor: issues found")
