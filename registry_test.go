package socket

import "testing"

func TestSessionTable_AddRemove(t *testing.T) {
	table := NewSessionTable()
	s := newEchoSession(t, newFakeChannel(), RegistryOption(table))

	if table.Len() != 1 {
		t.Fatalf("Len = %d, want 1", table.Len())
	}
	got, ok := table.Get(s.ID())
	if !ok || got != s {
		t.Fatalf("Get(%s) = %v, %v", s.ID(), got, ok)
	}

	s.Close()
	waitDone(t, s)

	if _, ok := table.Get(s.ID()); ok {
		t.Error("closed session still registered")
	}
	if table.Len() != 0 {
		t.Errorf("Len = %d, want 0", table.Len())
	}
}

func TestSessionTable_Range(t *testing.T) {
	table := NewSessionTable()
	for i := 0; i < 3; i++ {
		newEchoSession(t, newFakeChannel(), RegistryOption(table))
	}

	visited := 0
	table.Range(func(*Session) bool {
		visited++
		return true
	})
	if visited != 3 {
		t.Errorf("visited %d sessions, want 3", visited)
	}

	visited = 0
	table.Range(func(*Session) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("Range did not stop early, visited %d", visited)
	}
}

func TestSessionTable_CloseAll(t *testing.T) {
	table := NewSessionTable()
	var sessions []*Session
	for i := 0; i < 4; i++ {
		s := newEchoSession(t, newFakeChannel(), RegistryOption(table))
		s.Start()
		sessions = append(sessions, s)
	}

	table.CloseAll()

	for _, s := range sessions {
		waitDone(t, s)
		if !s.IsClosed() {
			t.Errorf("session %s not closed", s.ID())
		}
	}
	if table.Len() != 0 {
		t.Errorf("Len = %d after CloseAll, want 0", table.Len())
	}
}
