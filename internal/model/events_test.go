package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

func TestEnvelopeWireFormat(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	evs := []Event{
		ArticleAdded{Article: Article{
			ID:          1,
			Title:       "Budget vote",
			Author:      "Ada",
			Status:      StatusNotStarted,
			StatusColor: ColorWhite,
			Position:    0,
			Active:      true,
			CreatedAt:   at,
			UpdatedAt:   at,
		}},
		OrderChanged{Order: []int64{3, 1, 2}},
		CellChanged{MemberID: 1, MeetingID: 2, Value: true},
	}
	envs := make([]Envelope, 0, len(evs))
	for i, ev := range evs {
		env, err := NewEnvelope(ev, "node-a", uint64(i+1))
		if err != nil {
			t.Fatalf("NewEnvelope: %v", err)
		}
		envs = append(envs, env)
	}
	b, err := json.MarshalIndent(envs, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b = append(b, '\n')

	g := goldie.New(t)
	g.Assert(t, "envelopes", b)
}

func TestEnvelopeDecode(t *testing.T) {
	env, err := NewEnvelope(OrderChanged{Order: []int64{2, 1}}, "n", 7)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Envelope
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ev, err := back.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	oc, ok := ev.(OrderChanged)
	if !ok {
		t.Fatalf("expected OrderChanged, got %T", ev)
	}
	if len(oc.Order) != 2 || oc.Order[0] != 2 || oc.Order[1] != 1 {
		t.Fatalf("unexpected order: %v", oc.Order)
	}
	if back.Seq != 7 || back.Origin != "n" {
		t.Fatalf("unexpected envelope header: %+v", back)
	}

	if _, err := (Envelope{Type: "bogus", Data: []byte(`{}`)}).Decode(); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestStatusColorCycle(t *testing.T) {
	c := ColorWhite
	seen := []StatusColor{}
	for i := 0; i < 4; i++ {
		c = c.Next()
		seen = append(seen, c)
	}
	want := []StatusColor{ColorRed, ColorYellow, ColorWhite, ColorRed}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("cycle[%d]=%q want %q", i, seen[i], want[i])
		}
	}
	if StatusColor("blue").Valid() {
		t.Fatalf("blue should be invalid")
	}
	if !Status("Needs Edit").Valid() || Status("Done").Valid() {
		t.Fatalf("status validation mismatch")
	}
}
