package playground

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lamim/chorus/internal/api"
)

func TestReduceSlot(t *testing.T) {
	start, ok := reduceSlot(SlotState{Chunks: []string{"old"}, Accumulated: "old"}, slotEvent{kind: evStart, epoch: 1, modelID: "m"})
	if !ok {
		t.Fatal("start rejected")
	}
	want := SlotState{ModelID: "m", Phase: PhaseGenerating, Chunks: []string{}, Generating: true, Epoch: 1}
	if diff := cmp.Diff(want, start); diff != "" {
		t.Fatalf("start state mismatch (-want +got):\n%s", diff)
	}

	s1, _ := reduceSlot(start, slotEvent{kind: evChunk, epoch: 1, chunk: "Hel", accumulated: "Hel"})
	s2, _ := reduceSlot(s1, slotEvent{kind: evChunk, epoch: 1, chunk: "lo", accumulated: "Hello"})
	if diff := cmp.Diff([]string{"Hel", "lo"}, s2.Chunks); diff != "" {
		t.Errorf("Chunks mismatch (-want +got):\n%s", diff)
	}
	if s2.Accumulated != "Hello" {
		t.Errorf("Accumulated = %q, want Hello", s2.Accumulated)
	}
	if len(s1.Chunks) != 1 {
		t.Errorf("earlier state modified: Chunks = %v", s1.Chunks)
	}

	done, _ := reduceSlot(s2, slotEvent{kind: evDone, epoch: 1, accumulated: "Hello"})
	if done.Phase != PhaseDone || done.Generating {
		t.Errorf("done = %+v, want PhaseDone and not generating", done)
	}

	if _, ok := reduceSlot(done, slotEvent{kind: evChunk, epoch: 1, chunk: "late"}); ok {
		t.Error("chunk after done accepted")
	}
}

func TestReduceSlot_Fail(t *testing.T) {
	start, _ := reduceSlot(SlotState{}, slotEvent{kind: evStart, epoch: 4, modelID: "m"})
	partial, _ := reduceSlot(start, slotEvent{kind: evChunk, epoch: 4, chunk: "par", accumulated: "par"})

	failed, ok := reduceSlot(partial, slotEvent{kind: evFail, epoch: 4, err: &api.APIError{StatusCode: 429}})
	if !ok {
		t.Fatal("fail rejected")
	}
	if failed.Phase != PhaseErrored || failed.Generating {
		t.Errorf("failed = %+v, want PhaseErrored and not generating", failed)
	}
	if !api.IsErrorText(failed.Accumulated) || failed.Accumulated != failed.Error {
		t.Errorf("Accumulated = %q, Error = %q", failed.Accumulated, failed.Error)
	}
	if diff := cmp.Diff([]string{"par", failed.Error}, failed.Chunks); diff != "" {
		t.Errorf("Chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceSlot_StaleEpoch(t *testing.T) {
	first, _ := reduceSlot(SlotState{}, slotEvent{kind: evStart, epoch: 1, modelID: "m"})
	second, _ := reduceSlot(first, slotEvent{kind: evStart, epoch: 2, modelID: "m"})

	for _, ev := range []slotEvent{
		{kind: evChunk, epoch: 1, chunk: "stale", accumulated: "stale"},
		{kind: evDone, epoch: 1},
		{kind: evFail, epoch: 1, err: errors.New("x")},
	} {
		got, ok := reduceSlot(second, ev)
		if ok {
			t.Errorf("reduceSlot(epoch 1 kind %d) accepted on epoch 2 state", ev.kind)
		}
		if diff := cmp.Diff(second, got); diff != "" {
			t.Errorf("stale event changed state:\n%s", diff)
		}
	}
}
