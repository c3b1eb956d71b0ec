package mutate

import (
	"context"
	"errors"
	"testing"

	"newsdesk/internal/model"
)

func TestToggleCellLazily(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()

	// The meeting exists before the member, so adding the member seeds the
	// pair at false.
	mt, err := svc.AddMeeting(ctx, "2025-01-06")
	if err != nil {
		t.Fatalf("AddMeeting: %v", err)
	}
	m, err := svc.AddMember(ctx, "Ada")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec.take()

	v, err := svc.SetOrToggle(ctx, m.ID, mt.ID, nil)
	if err != nil || !v {
		t.Fatalf("first toggle: v=%v err=%v", v, err)
	}
	v, err = svc.SetOrToggle(ctx, m.ID, mt.ID, nil)
	if err != nil || v {
		t.Fatalf("second toggle: v=%v err=%v", v, err)
	}
	evs := rec.take()
	if len(evs) != 2 {
		t.Fatalf("events=%v", types(evs))
	}
	if cc := evs[1].(model.CellChanged); cc.Value || cc.MemberID != m.ID || cc.MeetingID != mt.ID {
		t.Fatalf("event=%+v", cc)
	}

	matrix, err := svc.Matrix(ctx)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(matrix.Cells) != 1 || matrix.Present(m.ID, mt.ID) {
		t.Fatalf("matrix=%+v", matrix)
	}
}

func TestSetCellExplicitValue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	m, err := svc.AddMember(ctx, "Ada")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	mt, err := svc.AddMeeting(ctx, "2025-01-06")
	if err != nil {
		t.Fatalf("AddMeeting: %v", err)
	}
	on := true
	if v, err := svc.SetOrToggle(ctx, m.ID, mt.ID, &on); err != nil || !v {
		t.Fatalf("set: v=%v err=%v", v, err)
	}
	matrix, err := svc.Matrix(ctx)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if !matrix.Present(m.ID, mt.ID) {
		t.Fatalf("expected present")
	}
}

func TestAttendanceErrors(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	m, err := svc.AddMember(ctx, "Ada")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec.take()

	var cf ConflictError
	if _, err := svc.AddMember(ctx, " Ada "); !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	var nf NotFoundError
	if _, err := svc.SetOrToggle(ctx, m.ID, 99, nil); !errors.As(err, &nf) || nf.Kind != "meeting" {
		t.Fatalf("expected meeting NotFoundError, got %v", err)
	}
	if _, err := svc.SetOrToggle(ctx, 99, 1, nil); !errors.As(err, &nf) || nf.Kind != "member" {
		t.Fatalf("expected member NotFoundError, got %v", err)
	}
	if err := svc.RemoveMeeting(ctx, 99); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	var ve ValidationError
	if _, err := svc.AddMeeting(ctx, ""); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if evs := rec.take(); len(evs) != 0 {
		t.Fatalf("failed operations published %v", types(evs))
	}

	if err := svc.RemoveMember(ctx, m.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if evs := rec.take(); len(evs) != 1 || evs[0].Type() != model.EventMemberRemoved {
		t.Fatalf("events=%v", types(evs))
	}
}
