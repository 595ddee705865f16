package playground

import "github.com/lamim/chorus/internal/api"

// Phase is the lifecycle position of one slot
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseDone       Phase = "done"
	PhaseErrored    Phase = "errored"
)

// SlotState is the renderable state of one slot.
// Values are never mutated after being published in a Snapshot.
type SlotState struct {
	ModelID     string   `json:"modelId"`
	Phase       Phase    `json:"phase"`
	Chunks      []string `json:"chunks"`
	Accumulated string   `json:"accumulated"`
	Generating  bool     `json:"generating"`
	Error       string   `json:"error,omitempty"`
	Epoch       uint64   `json:"epoch"`
}

type eventKind int

const (
	evStart eventKind = iota
	evChunk
	evDone
	evFail
)

// slotEvent drives reduceSlot. Epoch ties chunk, done and fail events to the
// start that produced them.
type slotEvent struct {
	kind        eventKind
	epoch       uint64
	modelID     string
	chunk       string
	accumulated string
	err         error
}

// reduceSlot returns the state after ev. It never modifies s in place and
// returns ok=false when the event is stale and must be ignored.
func reduceSlot(s SlotState, ev slotEvent) (SlotState, bool) {
	if ev.kind == evStart {
		return SlotState{
			ModelID:    ev.modelID,
			Phase:      PhaseGenerating,
			Chunks:     []string{},
			Generating: true,
			Epoch:      ev.epoch,
		}, true
	}

	if ev.epoch != s.Epoch || s.Phase != PhaseGenerating {
		return s, false
	}

	next := s
	switch ev.kind {
	case evChunk:
		next.Chunks = appendCopy(s.Chunks, ev.chunk)
		next.Accumulated = ev.accumulated
	case evDone:
		next.Phase = PhaseDone
		next.Generating = false
		if ev.accumulated != "" {
			next.Accumulated = ev.accumulated
		}
	case evFail:
		msg := api.UserMessage(ev.err)
		next.Phase = PhaseErrored
		next.Generating = false
		next.Error = msg
		next.Chunks = appendCopy(s.Chunks, msg)
		next.Accumulated = msg
	}
	return next, true
}

// appendCopy appends without sharing a backing array with src
func appendCopy(src []string, v string) []string {
	out := make([]string, len(src), len(src)+1)
	copy(out, src)
	return append(out, v)
}
