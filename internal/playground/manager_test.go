package playground

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestManager(t *testing.T) {
	m := NewManager(echoBackend(), testOptions(), 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer m.CloseAll()

	s1, err := m.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.Create(); err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if _, err := m.Create(); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("third Create() error = %v, want ErrTooManySessions", err)
	}

	got, err := m.Get(s1.ID())
	if err != nil || got != s1 {
		t.Errorf("Get(%s) = %v, %v", s1.ID(), got, err)
	}

	if err := m.Close(s1.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := m.Get(s1.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Close error = %v, want ErrSessionNotFound", err)
	}
	if err := m.Close(s1.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close() error = %v, want ErrSessionNotFound", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if _, err := s1.Submit("hi", nil, sel("a", 1)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit() on closed session error = %v, want ErrSessionClosed", err)
	}
}

func TestTaskGroup_Limit(t *testing.T) {
	tg := NewTaskGroup(2)
	running := make(chan struct{}, 5)
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		for i := 0; i < 5; i++ {
			tg.Go(func() {
				running <- struct{}{}
				<-release
			})
		}
		close(done)
	}()

	// only two tasks can start before any is released
	<-running
	<-running
	select {
	case <-running:
		t.Fatal("third task started while limit reached")
	default:
	}

	close(release)
	<-done
	tg.Wait()
	if n := len(running); n != 3 {
		t.Errorf("remaining tasks = %d, want 3", n)
	}
}
