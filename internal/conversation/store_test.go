package conversation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingMirror struct {
	saves   [][]Exchange
	clears  int
	saveErr error
}

func (m *recordingMirror) SaveHistory(ex []Exchange) error {
	m.saves = append(m.saves, ex)
	return m.saveErr
}

func (m *recordingMirror) ClearHistory() error {
	m.clears++
	return nil
}

func TestAppendKeepsOrderAndMirrors(t *testing.T) {
	m := &recordingMirror{}
	s := NewStore(m, nil)
	s.Append("q1", "a1", "")
	s.Append("q2", "a2", "http://localhost:8000/plots/p.png")

	want := []Exchange{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2", PlotURL: "http://localhost:8000/plots/p.png"},
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if len(m.saves) != 2 {
		t.Fatalf("expected 2 mirror writes, got %d", len(m.saves))
	}
	if diff := cmp.Diff(want, m.saves[1]); diff != "" {
		t.Fatalf("mirror got partial log (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(nil, nil)
	s.Append("q", "a", "")
	snap := s.Snapshot()
	snap[0].Answer = "mutated"
	if got, _ := s.Last(); got.Answer != "a" {
		t.Fatalf("store exchange was mutated through snapshot: %q", got.Answer)
	}
}

func TestClearEmptiesAndErasesPersisted(t *testing.T) {
	m := &recordingMirror{}
	s := NewStore(m, nil)
	s.Append("q", "a", "")
	s.SetError("boom")
	s.SetPending("draft")
	s.Clear()

	if s.Len() != 0 {
		t.Fatalf("expected empty log, got %d", s.Len())
	}
	if _, ok := s.Last(); ok {
		t.Fatalf("expected no last exchange")
	}
	if m.clears != 1 {
		t.Fatalf("expected persisted copy erased once, got %d", m.clears)
	}
	if s.LastError() != "" {
		t.Fatalf("expected error cleared")
	}
	if s.Pending() != "draft" {
		t.Fatalf("pending question should survive clear, got %q", s.Pending())
	}
}

func TestRestoreDoesNotWriteBack(t *testing.T) {
	m := &recordingMirror{}
	s := NewStore(m, nil)
	s.Restore([]Exchange{{Question: "old", Answer: "ans"}})
	if len(m.saves) != 0 {
		t.Fatalf("restore must not save, got %d writes", len(m.saves))
	}
	if s.Len() != 1 {
		t.Fatalf("expected restored exchange")
	}
}

func TestMirrorFailureIsAbsorbed(t *testing.T) {
	m := &recordingMirror{saveErr: errors.New("disk full")}
	s := NewStore(m, nil)
	s.Append("q", "a", "")
	if s.Len() != 1 {
		t.Fatalf("append should succeed in memory even when mirroring fails")
	}
}

func TestSubscribeCoalescesSignals(t *testing.T) {
	s := NewStore(nil, nil)
	ch, cancel := s.Subscribe()
	s.SetPending("a")
	s.SetPending("ab")
	s.Append("q", "a", "")

	select {
	case <-ch:
	default:
		t.Fatalf("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatalf("signals should coalesce into one")
	default:
	}

	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
	s.SetPending("after cancel")
}
