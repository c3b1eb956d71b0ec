package cli

import (
	"strconv"

	"newsdesk/internal/model"
)

type articleTable []model.Article

func (t articleTable) Headers() []string {
	return []string{"#", "ID", "Title", "Author", "Deadline", "Status", "Color", "Cat", "Editor"}
}

func (t articleTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, a := range t {
		pos := ""
		if a.Active {
			pos = strconv.Itoa(a.Position + 1)
		}
		rows = append(rows, []string{
			pos,
			strconv.FormatInt(a.ID, 10),
			a.Title,
			a.Author,
			a.Deadline,
			string(a.Status),
			string(a.StatusColor),
			string(a.Category),
			a.Editor,
		})
	}
	return rows
}

type historyTable []model.StatusChange

func (t historyTable) Headers() []string { return []string{"When", "Status", "By"} }

func (t historyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, h := range t {
		by := h.UserName
		if h.UserEmail != "" {
			by += " <" + h.UserEmail + ">"
		}
		rows = append(rows, []string{h.Timestamp.Format("2006-01-02 15:04"), string(h.Status), by})
	}
	return rows
}

// matrixTable is the attendance grid: one row per member, one column per meeting.
type matrixTable model.Matrix

func (t matrixTable) Headers() []string {
	h := []string{"Member"}
	for _, mt := range t.Meetings {
		h = append(h, mt.Label)
	}
	return h
}

func (t matrixTable) Rows() [][]string {
	m := model.Matrix(t)
	rows := make([][]string, 0, len(m.Members))
	for _, mem := range m.Members {
		row := []string{mem.Name}
		for _, mt := range m.Meetings {
			mark := "·"
			if m.Present(mem.ID, mt.ID) {
				mark = "✓"
			}
			row = append(row, mark)
		}
		rows = append(rows, row)
	}
	return rows
}
