package playground

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/stream"
)

func TestRemix_RequiresFinishedOutput(t *testing.T) {
	b := echoBackend()
	s := newTestSession(t, b)
	before := s.Snapshot()

	if _, err := s.Remix("m"); !errors.Is(err, ErrNothingToRemix) {
		t.Fatalf("Remix() error = %v, want ErrNothingToRemix", err)
	}
	if len(b.Calls()) != 0 {
		t.Error("Remix() called the backend")
	}
	if s.Snapshot() != before {
		t.Error("Remix() published a new snapshot")
	}
}

func TestRemix_IgnoresFailedSlots(t *testing.T) {
	b := &fakeBackend{respond: func(context.Context, api.ChatRequest) (stream.Reader, error) {
		return nil, &api.APIError{StatusCode: 401}
	}}
	s := newTestSession(t, b)
	run, _ := s.Submit("hi", nil, sel("a", 2))
	waitRun(t, run)

	calls := len(b.Calls())
	if _, err := s.Remix("m"); !errors.Is(err, ErrNothingToRemix) {
		t.Errorf("Remix() error = %v, want ErrNothingToRemix", err)
	}
	if len(b.Calls()) != calls {
		t.Error("Remix() called the backend")
	}
	if got := s.Snapshot().Remix.Responses; len(got) != 0 {
		t.Errorf("Remix.Responses = %v, want empty", got)
	}
}

func TestRemix_SynthesizesSlotOutputs(t *testing.T) {
	b := &fakeBackend{respond: func(_ context.Context, req api.ChatRequest) (stream.Reader, error) {
		if req.Model == "mixer" {
			return &stream.StaticReader{Chunks: []string{"best ", "of both"}}, nil
		}
		return &stream.StaticReader{Chunks: []string{"<think>hmm</think>answer " + req.Model}}, nil
	}}
	s := newTestSession(t, b)
	run, _ := s.Submit("question?", nil, sel("a", 1, "b", 1))
	waitRun(t, run)

	run, err := s.Remix("mixer")
	if err != nil {
		t.Fatalf("Remix() error = %v", err)
	}
	waitRun(t, run)

	remix := s.Snapshot().Remix
	if diff := cmp.Diff([]string{"best of both"}, remix.Responses); diff != "" {
		t.Errorf("Responses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mixer"}, remix.Models); diff != "" {
		t.Errorf("Models mismatch (-want +got):\n%s", diff)
	}
	if remix.Generating || !remix.Visible || remix.LastModelUsed != "mixer" {
		t.Errorf("Remix = %+v", remix)
	}

	calls := b.Calls()
	prompt := calls[len(calls)-1].Messages[0].Content
	for _, want := range []string{"question?", "Response 1", "answer a", "Response 2", "answer b", "synthesized and curated"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("remix prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "hmm") {
		t.Error("remix prompt contains reasoning text")
	}

	// a second remix appends its own entry and reuses the last model
	run, _ = s.Remix("")
	waitRun(t, run)
	if got := s.Snapshot().Remix.Models; len(got) != 2 || got[1] != "mixer" {
		t.Errorf("Models = %v, want two mixer entries", got)
	}
}

func TestRemix_ErrorOverwritesPlaceholder(t *testing.T) {
	b := &fakeBackend{respond: func(_ context.Context, req api.ChatRequest) (stream.Reader, error) {
		if req.Model == "flaky" {
			return &stream.StaticReader{Chunks: []string{"partial"}, Err: &api.APIError{StatusCode: 429}}, nil
		}
		return &stream.StaticReader{Chunks: []string{"out " + req.Model}}, nil
	}}
	s := newTestSession(t, b)
	run, _ := s.Submit("q", nil, sel("a", 1))
	waitRun(t, run)

	run, err := s.Remix("flaky")
	if err != nil {
		t.Fatal(err)
	}
	waitRun(t, run)

	remix := s.Snapshot().Remix
	if len(remix.Responses) != 1 {
		t.Fatalf("Responses = %v, want exactly one entry", remix.Responses)
	}
	if !strings.HasPrefix(remix.Responses[0], api.PrefixRateLimit) {
		t.Errorf("Responses[0] = %q, want rate limit text", remix.Responses[0])
	}
	if remix.Generating {
		t.Error("Generating = true after failure")
	}
}
