package mutate

import (
	"context"
	"errors"

	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

func (s *Service) AddMember(ctx context.Context, name string) (model.Member, error) {
	name = clean(name)
	if err := s.checkVar("name", name, "required,max=100"); err != nil {
		return model.Member{}, err
	}
	var out model.Member
	err := s.mutate(ctx, "add_member", nil, func(tx *store.Tx) ([]model.Event, error) {
		m, err := tx.AddMember(name)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ConflictError{Kind: "member", Key: name}
		}
		if err != nil {
			return nil, err
		}
		out = m
		return []model.Event{model.MemberAdded{Member: m}}, nil
	})
	return out, err
}

func (s *Service) RemoveMember(ctx context.Context, id int64) error {
	return s.mutate(ctx, "remove_member", nil, func(tx *store.Tx) ([]model.Event, error) {
		if err := tx.RemoveMember(id); err != nil {
			return nil, notFoundAs(err, "member", id)
		}
		return []model.Event{model.MemberRemoved{ID: id}}, nil
	})
}

func (s *Service) AddMeeting(ctx context.Context, label string) (model.Meeting, error) {
	label = clean(label)
	if err := s.checkVar("label", label, "required,max=100"); err != nil {
		return model.Meeting{}, err
	}
	var out model.Meeting
	err := s.mutate(ctx, "add_meeting", nil, func(tx *store.Tx) ([]model.Event, error) {
		m, err := tx.AddMeeting(label)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ConflictError{Kind: "meeting", Key: label}
		}
		if err != nil {
			return nil, err
		}
		out = m
		return []model.Event{model.MeetingAdded{Meeting: m}}, nil
	})
	return out, err
}

func (s *Service) RemoveMeeting(ctx context.Context, id int64) error {
	return s.mutate(ctx, "remove_meeting", nil, func(tx *store.Tx) ([]model.Event, error) {
		if err := tx.RemoveMeeting(id); err != nil {
			return nil, notFoundAs(err, "meeting", id)
		}
		return []model.Event{model.MeetingRemoved{ID: id}}, nil
	})
}

// SetOrToggle writes one attendance cell. With a nil value the stored value is
// flipped, an absent cell counting as false. The row is created on first write.
func (s *Service) SetOrToggle(ctx context.Context, memberID, meetingID int64, value *bool) (bool, error) {
	var out bool
	attrs := []attribute.KeyValue{
		attribute.Int64("member.id", memberID),
		attribute.Int64("meeting.id", meetingID),
	}
	err := s.mutate(ctx, "toggle_cell", attrs, func(tx *store.Tx) ([]model.Event, error) {
		ok, err := tx.MemberExists(memberID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NotFoundError{Kind: "member", ID: memberID}
		}
		ok, err = tx.MeetingExists(meetingID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NotFoundError{Kind: "meeting", ID: meetingID}
		}

		next := true
		if value != nil {
			next = *value
		} else {
			cur, _, err := tx.Cell(memberID, meetingID)
			if err != nil {
				return nil, err
			}
			next = !cur
		}
		if err := tx.PutCell(memberID, meetingID, next); err != nil {
			return nil, err
		}
		out = next
		return []model.Event{model.CellChanged{MemberID: memberID, MeetingID: meetingID, Value: next}}, nil
	})
	return out, err
}

func (s *Service) Matrix(ctx context.Context) (model.Matrix, error) {
	var out model.Matrix
	err := s.view(ctx, "matrix", func(tx *store.Tx) error {
		var err error
		out, err = tx.Matrix()
		return err
	})
	return out, err
}
