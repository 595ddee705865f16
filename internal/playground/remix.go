package playground

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/internal/stream"
	"github.com/lamim/chorus/internal/util"
)

var (
	// ErrNothingToRemix is returned when no slot has finished output
	ErrNothingToRemix = errors.New("there are no responses to remix yet")
	// ErrNoPrompt is returned when a generation needs the session prompt and none is on record
	ErrNoPrompt = errors.New("no prompt available")
	// ErrNoModel is returned when no model was given and no default is configured
	ErrNoModel = errors.New("no model specified")
)

// remixInput is one labelled slot output in the remix template
type remixInput struct {
	Key  string
	Text string
}

// finishedOutputs returns the non-empty output of every finished slot in key
// order, reasoning blocks removed
func finishedOutputs(snap *Snapshot) []remixInput {
	var out []remixInput
	for _, slot := range snap.Slots {
		st, ok := snap.States[slot.Key]
		if !ok || st.Phase != PhaseDone {
			continue
		}
		text := util.StripThinkTags(st.Accumulated)
		if text == "" {
			continue
		}
		out = append(out, remixInput{Key: slot.Key.String(), Text: text})
	}
	return out
}

// Remix synthesizes the finished slot outputs into one answer with modelID.
// It fails without touching state when there is nothing to remix or no prompt.
// Each call owns exactly one entry of RemixState.Responses; errors overwrite it.
func (s *Session) Remix(modelID string) (*Run, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	snap := s.snap
	inputs := finishedOutputs(snap)
	if len(inputs) == 0 {
		s.mu.Unlock()
		return nil, ErrNothingToRemix
	}
	if snap.Prompt == "" {
		s.mu.Unlock()
		return nil, ErrNoPrompt
	}
	if modelID == "" {
		modelID = snap.Remix.LastModelUsed
	}
	if modelID == "" {
		modelID = s.opts.DefaultModel
	}
	if modelID == "" {
		s.mu.Unlock()
		return nil, ErrNoModel
	}

	prompt, err := util.RenderTemplate(s.opts.RemixTemplate, map[string]any{
		"Prompt":    snap.Prompt,
		"Responses": inputs,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to render remix template: %w", err)
	}

	next := *snap
	next.Remix.Responses = append(slices.Clone(snap.Remix.Responses), "")
	next.Remix.Models = append(slices.Clone(snap.Remix.Models), modelID)
	next.Remix.Generating = true
	next.Remix.Visible = true
	next.Remix.LastModelUsed = modelID
	index := len(next.Remix.Responses) - 1
	s.remixActive++
	s.commitLocked(next)
	s.wg.Add(1)
	s.mu.Unlock()

	logger := s.logger.With("remix", index, "model", modelID)
	logger.Info("Starting remix", "inputs", len(inputs))

	req := api.NewPromptRequest(prompt, modelID, nil)
	req.SystemPrompt = s.opts.RemixSystem

	run := newRun()
	go func() {
		defer s.wg.Done()
		defer run.finish()

		start := time.Now()
		s.opts.Metrics.GenerationStarted(metrics.KindRemix)
		text, err := s.generate(s.ctx, req, func(u stream.Update) {
			s.setRemixResponse(index, u.Accumulated, false)
		})
		elapsed := time.Since(start)
		s.opts.Metrics.GenerationFinished(metrics.KindRemix, elapsed, err == nil)

		if err != nil {
			logger.Warn("Remix failed", "error", err)
			s.setRemixResponse(index, api.UserMessage(err), true)
		} else {
			logger.Debug("Remix complete", "chars", len(text), "duration_ms", elapsed.Milliseconds())
			s.setRemixResponse(index, text, true)
		}
		s.journal(history.KindRemix, fmt.Sprint(index), modelID, snap.Prompt, text, err, elapsed)
	}()
	return run, nil
}

// setRemixResponse overwrites entry index; final marks the call terminal
func (s *Session) setRemixResponse(index int, text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.snap
	next.Remix.Responses = slices.Clone(s.snap.Remix.Responses)
	next.Remix.Responses[index] = text
	if final {
		s.remixActive--
		next.Remix.Generating = s.remixActive > 0
	}
	s.commitLocked(next)
}

// HideRemix hides the remix panel without discarding its entries
func (s *Session) HideRemix() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	next := *s.snap
	next.Remix.Visible = false
	s.commitLocked(next)
}
