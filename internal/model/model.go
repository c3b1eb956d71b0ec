package model

import "time"

type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusNeedsEdit  Status = "Needs Edit"
	StatusEdited     Status = "Edited"
	StatusPublished  Status = "Published"
)

// Statuses lists the workflow states in board order.
var Statuses = []Status{
	StatusNotStarted,
	StatusInProgress,
	StatusNeedsEdit,
	StatusEdited,
	StatusPublished,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type StatusColor string

const (
	ColorWhite  StatusColor = "white"
	ColorRed    StatusColor = "red"
	ColorYellow StatusColor = "yellow"
)

func (c StatusColor) Valid() bool {
	switch c {
	case ColorWhite, ColorRed, ColorYellow:
		return true
	}
	return false
}

// Next returns the color that follows c in the white -> red -> yellow cycle.
func (c StatusColor) Next() StatusColor {
	switch c {
	case ColorWhite:
		return ColorRed
	case ColorRed:
		return ColorYellow
	default:
		return ColorWhite
	}
}

type Category string

const (
	CategoryNone     Category = ""
	CategoryFeatures Category = "F"
	CategoryNews     Category = "N"
	CategoryOpinion  Category = "O"
	CategorySports   Category = "S"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNone, CategoryFeatures, CategoryNews, CategoryOpinion, CategorySports:
		return true
	}
	return false
}

// Article is one row on the board. Position is only meaningful while Active.
type Article struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Deadline    string      `json:"deadline,omitempty"`
	Status      Status      `json:"status"`
	StatusColor StatusColor `json:"statusColor"`
	Category    Category    `json:"category,omitempty"`
	Editor      string      `json:"editor,omitempty"`
	Position    int         `json:"position"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type StatusChange struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"articleId"`
	Status    Status    `json:"status"`
	UserName  string    `json:"userName,omitempty"`
	UserEmail string    `json:"userEmail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Member struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Meeting struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Cell is one attendance mark. A pair without a stored cell reads as not present.
type Cell struct {
	MemberID  int64 `json:"memberId"`
	MeetingID int64 `json:"meetingId"`
	Present   bool  `json:"present"`
}

// Matrix is the full attendance grid.
type Matrix struct {
	Members  []Member  `json:"members"`
	Meetings []Meeting `json:"meetings"`
	Cells    []Cell    `json:"cells"`
}

// Present reports the stored value for a pair, false when absent.
func (m Matrix) Present(memberID, meetingID int64) bool {
	for _, c := range m.Cells {
		if c.MemberID == memberID && c.MeetingID == meetingID {
			return c.Present
		}
	}
	return false
}

// Snapshot is the canonical view of the active board.
type Snapshot struct {
	Order    []int64   `json:"order"`
	Articles []Article `json:"articles"`
}

// Identity is who a session belongs to, as handed over by the auth layer.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
