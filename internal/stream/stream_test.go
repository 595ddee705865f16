package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConsume_ReportsChunksAndAccumulated(t *testing.T) {
	r := &StaticReader{Chunks: []string{"Hel", "lo", "", " world"}}

	var got []Update
	full, err := Consume(context.Background(), r, func(u Update) {
		got = append(got, u)
	})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if full != "Hello world" {
		t.Errorf("Consume() = %q, want %q", full, "Hello world")
	}

	want := []Update{
		{Chunk: "Hel", Accumulated: "Hel"},
		{Chunk: "lo", Accumulated: "Hello"},
		{Chunk: " world", Accumulated: "Hello world"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestConsume_PropagatesReaderError(t *testing.T) {
	boom := errors.New("boom")
	r := &StaticReader{Chunks: []string{"partial"}, Err: boom}

	full, err := Consume(context.Background(), r, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Consume() error = %v, want %v", err, boom)
	}
	if full != "partial" {
		t.Errorf("Consume() = %q, want partial text", full)
	}
}

func TestConsume_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Consume(ctx, &StaticReader{Chunks: []string{"x"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Consume() error = %v, want context.Canceled", err)
	}
}

func TestChanReader(t *testing.T) {
	ctx := context.Background()
	r := NewChanReader(4, nil)

	go func() {
		r.Send(ctx, "a")
		r.Send(ctx, "b")
		r.Finish(nil)
	}()

	full, err := Consume(ctx, r, nil)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if full != "ab" {
		t.Errorf("Consume() = %q, want %q", full, "ab")
	}
}

func TestChanReader_FinishWithError(t *testing.T) {
	ctx := context.Background()
	r := NewChanReader(1, nil)
	boom := errors.New("stream broke")

	go func() {
		r.Send(ctx, "a")
		r.Finish(boom)
	}()

	_, err := Consume(ctx, r, nil)
	if !errors.Is(err, boom) {
		t.Errorf("Consume() error = %v, want %v", err, boom)
	}
}

func TestChanReader_CloseCallsCancel(t *testing.T) {
	called := false
	r := NewChanReader(0, func() { called = true })
	_ = r.Close()
	if !called {
		t.Error("Close() did not invoke cancel")
	}
}
