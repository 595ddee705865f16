package playground

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/internal/stream"
	"github.com/lamim/chorus/pkg/models"
)

var (
	// ErrEmptyPrompt is returned when the prompt is blank after trimming
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrSelectionRequired is returned when no model is selected. The
	// session raises SelectionRequired so the UI can ask for one.
	ErrSelectionRequired = errors.New("select at least one model")
	// ErrAlreadySubmitted is returned by DirectSubmit while its latch is set
	ErrAlreadySubmitted = errors.New("direct submit already in progress")
)

// Submit fans prompt out to one request per slot of selections. It returns
// once every request is dispatched; the Run settles when all are terminal.
// Per-slot progress is visible in snapshots before that.
func (s *Session) Submit(prompt string, attachments []api.Attachment, selections []models.ModelSelection) (*Run, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if len(selections) == 0 {
		s.requireSelection(nil)
		return nil, ErrSelectionRequired
	}
	slots, err := s.assign(selections)
	if err != nil {
		return nil, err
	}

	type dispatch struct {
		slot  Slot
		epoch uint64
		ctx   context.Context
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.applySlotsLocked(selections, slots)

	next := *s.snap
	next.Prompt = prompt
	next.States = cloneStates(s.snap.States)
	jobs := make([]dispatch, 0, len(slots))
	for _, slot := range slots {
		if prev, ok := s.slotRuns[slot.Key]; ok {
			prev.cancel()
		}
		s.epoch++
		ctx, cancel := context.WithCancel(s.ctx)
		s.slotRuns[slot.Key] = inflight{epoch: s.epoch, cancel: cancel}
		next.States[slot.Key], _ = reduceSlot(next.States[slot.Key], slotEvent{
			kind:    evStart,
			epoch:   s.epoch,
			modelID: slot.ModelID,
		})
		jobs = append(jobs, dispatch{slot: slot, epoch: s.epoch, ctx: ctx})
	}
	s.commitLocked(next)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Dispatching prompt", "slots", len(slots), "models", len(selections))

	run := newRun()
	go func() {
		defer s.wg.Done()
		defer run.finish()

		tg := NewTaskGroup(s.opts.Concurrency)
		for _, job := range jobs {
			tg.Go(func() {
				s.runSlot(job.ctx, job.slot, job.epoch, prompt, attachments)
			})
		}
		tg.Wait()
		s.logger.Debug("Prompt settled", "slots", len(jobs))
	}()
	return run, nil
}

// DirectSubmit is the guarded submit for a single UI gesture. The first call
// submits with the current selection; later calls return ErrAlreadySubmitted
// until the selection is restored or edited. Without a selection the
// request is stashed and replayed once a model is chosen.
func (s *Session) DirectSubmit(prompt, modelID string) (*Run, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.latched {
		s.mu.Unlock()
		s.logger.Debug("Ignoring repeated direct submit")
		return nil, ErrAlreadySubmitted
	}
	s.latched = true
	selections := s.snap.Selections
	s.mu.Unlock()

	if len(selections) == 0 {
		s.requireSelection(&pendingSubmit{prompt: prompt, modelID: modelID})
		s.logger.Info("Direct submit deferred until a model is selected")
		return nil, ErrSelectionRequired
	}
	return s.Submit(prompt, nil, selections)
}

// requireSelection raises the selection-required flag, stashing p if non-nil
func (s *Session) requireSelection(p *pendingSubmit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if p != nil {
		s.pending = p
	}
	next := *s.snap
	next.SelectionRequired = true
	s.commitLocked(next)
}

func (s *Session) runSlot(ctx context.Context, slot Slot, epoch uint64, prompt string, attachments []api.Attachment) {
	logger := s.logger.With("slot", slot.Key.String(), "model", slot.ModelID)
	start := time.Now()
	s.opts.Metrics.GenerationStarted(metrics.KindSlot)

	text, err := s.generate(ctx, api.NewPromptRequest(prompt, slot.ModelID, attachments), func(u stream.Update) {
		s.applySlotEvent(slot.Key, slotEvent{kind: evChunk, epoch: epoch, chunk: u.Chunk, accumulated: u.Accumulated})
	})

	elapsed := time.Since(start)
	s.opts.Metrics.GenerationFinished(metrics.KindSlot, elapsed, err == nil)
	if err != nil {
		logger.Warn("Slot generation failed", "error", err, "duration_ms", elapsed.Milliseconds())
		s.applySlotEvent(slot.Key, slotEvent{kind: evFail, epoch: epoch, err: err})
	} else {
		logger.Debug("Slot generation complete", "chars", len(text), "duration_ms", elapsed.Milliseconds())
		s.applySlotEvent(slot.Key, slotEvent{kind: evDone, epoch: epoch, accumulated: text})
	}
	s.journal(history.KindSlot, slot.Key.String(), slot.ModelID, prompt, text, err, elapsed)

	s.mu.Lock()
	if run, ok := s.slotRuns[slot.Key]; ok && run.epoch == epoch {
		run.cancel()
		delete(s.slotRuns, slot.Key)
	}
	s.mu.Unlock()
}

// applySlotEvent runs the reducer for key and publishes the result
func (s *Session) applySlotEvent(key SlotKey, ev slotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.snap.States[key]
	if !ok {
		return
	}
	updated, ok := reduceSlot(cur, ev)
	if !ok {
		return
	}
	next := *s.snap
	next.States = cloneStates(s.snap.States)
	next.States[key] = updated
	s.commitLocked(next)
}

// generate sends one request and drains its stream
func (s *Session) generate(ctx context.Context, req api.ChatRequest, onUpdate func(stream.Update)) (string, error) {
	r, err := s.backend.SendChatRequest(ctx, req)
	if err != nil {
		return "", err
	}
	return stream.Consume(ctx, r, onUpdate)
}

func (s *Session) journal(kind, key, modelID, prompt, text string, err error, elapsed time.Duration) {
	status := history.StatusSuccess
	switch {
	case errors.Is(err, context.Canceled):
		status = history.StatusCancelled
		text = api.UserMessage(err)
	case err != nil:
		status = history.StatusError
		text = api.UserMessage(err)
	}
	if jerr := s.opts.History.Record(context.Background(), history.Generation{
		SessionID:  s.id,
		Kind:       kind,
		Key:        key,
		ModelID:    modelID,
		Prompt:     prompt,
		Response:   text,
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
	}); jerr != nil {
		s.logger.Warn("Failed to record generation", "kind", kind, "key", key, "error", jerr)
	}
}
