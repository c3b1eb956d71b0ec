package model

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventArticleAdded     EventType = "article_added"
	EventArticleDeleted   EventType = "article_deleted"
	EventArticleArchived  EventType = "article_archived"
	EventArticleActivated EventType = "article_activated"
	EventArticleUpdated   EventType = "article_updated"
	EventOrderChanged     EventType = "order_changed"
	EventCellChanged      EventType = "cell_changed"
	EventMemberAdded      EventType = "member_added"
	EventMemberRemoved    EventType = "member_removed"
	EventMeetingAdded     EventType = "meeting_added"
	EventMeetingRemoved   EventType = "meeting_removed"
)

// Event is anything the board broadcasts. Every event carries enough state
// for a client to apply it without a follow-up fetch.
type Event interface {
	Type() EventType
}

type ArticleAdded struct {
	Article Article `json:"article"`
}

type ArticleDeleted struct {
	ID int64 `json:"id"`
}

type ArticleArchived struct {
	ID int64 `json:"id"`
}

type ArticleActivated struct {
	Article Article `json:"article"`
}

type ArticleUpdated struct {
	Article Article `json:"article"`
}

// OrderChanged carries the complete active order, first to last.
type OrderChanged struct {
	Order []int64 `json:"order"`
}

type CellChanged struct {
	MemberID  int64 `json:"memberId"`
	MeetingID int64 `json:"meetingId"`
	Value     bool  `json:"value"`
}

type MemberAdded struct {
	Member Member `json:"member"`
}

type MemberRemoved struct {
	ID int64 `json:"id"`
}

type MeetingAdded struct {
	Meeting Meeting `json:"meeting"`
}

type MeetingRemoved struct {
	ID int64 `json:"id"`
}

func (ArticleAdded) Type() EventType     { return EventArticleAdded }
func (ArticleDeleted) Type() EventType   { return EventArticleDeleted }
func (ArticleArchived) Type() EventType  { return EventArticleArchived }
func (ArticleActivated) Type() EventType { return EventArticleActivated }
func (ArticleUpdated) Type() EventType   { return EventArticleUpdated }
func (OrderChanged) Type() EventType     { return EventOrderChanged }
func (CellChanged) Type() EventType      { return EventCellChanged }
func (MemberAdded) Type() EventType      { return EventMemberAdded }
func (MemberRemoved) Type() EventType    { return EventMemberRemoved }
func (MeetingAdded) Type() EventType     { return EventMeetingAdded }
func (MeetingRemoved) Type() EventType   { return EventMeetingRemoved }

// Envelope is the wire form of an event.
// Seq is monotonic per Origin; it is not comparable across origins.
type Envelope struct {
	Type   EventType       `json:"type"`
	Seq    uint64          `json:"seq"`
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func NewEnvelope(ev Event, origin string, seq uint64) (Envelope, error) {
	if ev == nil {
		return Envelope{}, fmt.Errorf("nil event")
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return Envelope{Type: ev.Type(), Seq: seq, Origin: origin, Data: b}, nil
}

// Decode returns the typed event held in the envelope.
func (e Envelope) Decode() (Event, error) {
	var ev Event
	switch e.Type {
	case EventArticleAdded:
		ev = &ArticleAdded{}
	case EventArticleDeleted:
		ev = &ArticleDeleted{}
	case EventArticleArchived:
		ev = &ArticleArchived{}
	case EventArticleActivated:
		ev = &ArticleActivated{}
	case EventArticleUpdated:
		ev = &ArticleUpdated{}
	case EventOrderChanged:
		ev = &OrderChanged{}
	case EventCellChanged:
		ev = &CellChanged{}
	case EventMemberAdded:
		ev = &MemberAdded{}
	case EventMemberRemoved:
		ev = &MemberRemoved{}
	case EventMeetingAdded:
		ev = &MeetingAdded{}
	case EventMeetingRemoved:
		ev = &MeetingRemoved{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", e.Type)
	}
	if err := json.Unmarshal(e.Data, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return derefEvent(ev), nil
}

func derefEvent(ev Event) Event {
	switch v := ev.(type) {
	case *ArticleAdded:
		return *v
	case *ArticleDeleted:
		return *v
	case *ArticleArchived:
		return *v
	case *ArticleActivated:
		return *v
	case *ArticleUpdated:
		return *v
	case *OrderChanged:
		return *v
	case *CellChanged:
		return *v
	case *MemberAdded:
		return *v
	case *MemberRemoved:
		return *v
	case *MeetingAdded:
		return *v
	case *MeetingRemoved:
		return *v
	}
	return ev
}
