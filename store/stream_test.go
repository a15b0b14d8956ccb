package store

import (
	"testing"
	"time"
)

func TestXAddExplicitID(t *testing.T) {
	s := NewStore()

	id, err := s.XAdd("stream", "1-1", []string{"field", "value"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "1-1" {
		t.Errorf("expected '1-1', got %q", id)
	}
}

func TestXAddAutoSeq(t *testing.T) {
	s := NewStore()

	if _, err := s.XAdd("stream", "5-*", nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := s.XAdd("stream", "5-*", nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "5-1" {
		t.Errorf("expected '5-1', got %q", id)
	}
}

func TestXAddRejectsBackwardsID(t *testing.T) {
	s := NewStore()

	if _, err := s.XAdd("stream", "5-5", nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.XAdd("stream", "5-5", nil, time.Now()); err == nil {
		t.Error("expected an error adding a non-increasing ID")
	}
	if _, err := s.XAdd("stream", "3-0", nil, time.Now()); err == nil {
		t.Error("expected an error adding an ID smaller than the last one")
	}
}

func TestXAddRejectsZeroID(t *testing.T) {
	s := NewStore()
	if _, err := s.XAdd("stream", "0-0", nil, time.Now()); err == nil {
		t.Error("expected an error adding ID 0-0")
	}
}

func TestXAddWrongType(t *testing.T) {
	s := NewStore()
	s.Set("key", "value", nil)

	if _, err := s.XAdd("key", "*", nil, time.Now()); err == nil {
		t.Error("expected WRONGTYPE adding to a string key")
	}
}

func TestXRange(t *testing.T) {
	s := NewStore()
	s.XAdd("stream", "1-1", []string{"a", "1"}, time.Now())
	s.XAdd("stream", "2-1", []string{"b", "2"}, time.Now())
	s.XAdd("stream", "3-1", []string{"c", "3"}, time.Now())

	entries, err := s.XRange("stream", "2", "+")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID.String() != "2-1" || entries[1].ID.String() != "3-1" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestXRangeFullSpan(t *testing.T) {
	s := NewStore()
	s.XAdd("stream", "1-1", []string{"a", "1"}, time.Now())
	s.XAdd("stream", "2-1", []string{"b", "2"}, time.Now())

	entries, err := s.XRange("stream", "-", "+")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestXRangeBareEndIsWidenedToSeqZero(t *testing.T) {
	s := NewStore()
	s.XAdd("stream", "5-0", []string{"a", "1"}, time.Now())
	s.XAdd("stream", "5-1", []string{"a", "2"}, time.Now())

	entries, err := s.XRange("stream", "-", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID.String() != "5-0" {
		t.Errorf("expected only 5-0 (bare end widened to 5-0, not 5-max), got %+v", entries)
	}
}

func TestXReadAfter(t *testing.T) {
	s := NewStore()
	s.XAdd("stream", "1-1", []string{"a", "1"}, time.Now())
	s.XAdd("stream", "2-1", []string{"b", "2"}, time.Now())

	entries, err := s.XReadAfter("stream", ID{Ms: 1, Seq: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID.String() != "2-1" {
		t.Errorf("expected only 2-1, got %+v", entries)
	}
}

func TestIDCompare(t *testing.T) {
	a := ID{Ms: 1, Seq: 5}
	b := ID{Ms: 1, Seq: 6}
	c := ID{Ms: 2, Seq: 0}

	if a.Compare(b) >= 0 {
		t.Error("expected a < b")
	}
	if b.Compare(c) >= 0 {
		t.Error("expected b < c")
	}
	if a.Compare(a) != 0 {
		t.Error("expected a == a")
	}
}
