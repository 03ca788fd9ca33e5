package store

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/draftwire/draftwire/design"
)

func spec(id string) *design.Specification {
	return &design.Specification{
		ID:         id,
		Type:       "login-screen",
		Components: []design.Component{},
		Layout:     design.Layout{Width: 1200, Height: 800, Background: "#ffffff"},
		Timestamp:  time.Now().UTC(),
	}
}

func TestRecordAndGet(t *testing.T) {
	s := New()
	s.CreateSession("conn-1")

	d := spec("d-1")
	s.RecordDesign("conn-1", d)

	got, ok := s.GetDesign("d-1")
	if !ok {
		t.Fatal("design not found after record")
	}
	if !reflect.DeepEqual(got, d) {
		t.Errorf("got %+v, want %+v", got, d)
	}

	sess, ok := s.Session("conn-1")
	if !ok {
		t.Fatal("session missing")
	}
	if len(sess.Designs) != 1 || sess.Designs[0] != "d-1" {
		t.Errorf("session designs = %v", sess.Designs)
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	if _, ok := s.GetDesign("nope"); ok {
		t.Error("expected absent design")
	}
}

func TestRecordAfterSessionGone(t *testing.T) {
	s := New()
	s.CreateSession("conn-1")
	s.DestroySession("conn-1")

	s.RecordDesign("conn-1", spec("d-1"))

	if _, ok := s.GetDesign("d-1"); !ok {
		t.Error("design must land in history even when the session is gone")
	}
	if _, ok := s.Session("conn-1"); ok {
		t.Error("session should not be resurrected")
	}
}

func TestListRecentOrderAndLimit(t *testing.T) {
	s := New()
	for i := 0; i < 25; i++ {
		s.RecordDesign("", spec(fmt.Sprintf("d-%02d", i)))
	}

	recent := s.ListRecent(20)
	if len(recent) != 20 {
		t.Fatalf("expected 20 designs, got %d", len(recent))
	}
	for i, d := range recent {
		want := fmt.Sprintf("d-%02d", i+5)
		if d.ID != want {
			t.Fatalf("position %d = %s, want %s", i, d.ID, want)
		}
	}

	all := s.ListRecent(100)
	if len(all) != 25 {
		t.Errorf("expected all 25, got %d", len(all))
	}
	if len(s.ListRecent(0)) != 0 {
		t.Error("ListRecent(0) should be empty")
	}
}

func TestSessionLifecycle(t *testing.T) {
	fixed := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))

	sess := s.CreateSession("conn-9")
	if !sess.ConnectedAt.Equal(fixed) {
		t.Errorf("ConnectedAt = %v, want %v", sess.ConnectedAt, fixed)
	}
	if s.SessionCount() != 1 {
		t.Errorf("SessionCount = %d", s.SessionCount())
	}
	s.DestroySession("conn-9")
	if s.SessionCount() != 0 {
		t.Errorf("SessionCount after destroy = %d", s.SessionCount())
	}
}

func TestConcurrentRecords(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.RecordDesign("", spec(fmt.Sprintf("d-%03d", i)))
		}(i)
	}
	wg.Wait()
	if s.HistoryLen() != 50 {
		t.Errorf("HistoryLen = %d, want 50", s.HistoryLen())
	}
	for i := 0; i < 50; i++ {
		if _, ok := s.GetDesign(fmt.Sprintf("d-%03d", i)); !ok {
			t.Errorf("missing d-%03d", i)
		}
	}
}
