package session

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndReplay(t *testing.T) {
	s := openTestStore(t)

	if err := s.Append("print 1 + 2;", "ok", "3"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append("print y;", "runtime_error", "undefined global variable 'y'"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := s.Replay(s.SessionID())
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Input != "print 1 + 2;" || entries[0].Outcome != "ok" {
		t.Errorf("entry 0 = %+v, want the first input", entries[0])
	}
	if entries[1].Seq != 2 {
		t.Errorf("entry 1 seq = %d, want 2", entries[1].Seq)
	}
}

func TestReplayUnknownSession(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Replay("no-such-session")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Replay() error = %v, want ErrNotFound", err)
	}
}

func TestRecent(t *testing.T) {
	s := openTestStore(t)

	for _, input := range []string{"var a = 1;", "var b = 2;", "print a + b;"} {
		if err := s.Append(input, "ok", ""); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Input != "print a + b;" {
		t.Errorf("newest entry = %q, want the last input", entries[0].Input)
	}
}

func TestSessionIDsDiffer(t *testing.T) {
	a := openTestStore(t)
	b := openTestStore(t)
	if a.SessionID() == b.SessionID() {
		t.Error("two stores share a session ID")
	}
}
