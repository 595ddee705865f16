package playground

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/pkg/models"
)

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("session is closed")

// Options configures a Session
type Options struct {
	MaxSlots     int
	Concurrency  int
	DefaultModel string

	RemixTemplate      string
	RemixSystem        string
	SocialPostTemplate string
	SocialPostSystem   string

	Metrics *metrics.Collector
	History history.Recorder
}

// RemixState holds one entry per remix call; Responses[i] was produced by Models[i]
type RemixState struct {
	Responses     []string `json:"responses"`
	Models        []string `json:"models"`
	Generating    bool     `json:"generating"`
	Visible       bool     `json:"visible"`
	LastModelUsed string   `json:"lastModelUsed"`
}

// SocialPostState holds every open social post generation, keyed by id
type SocialPostState struct {
	Responses  map[SocialPostID]string                  `json:"responses"`
	Generating map[SocialPostID]bool                    `json:"generating"`
	Visible    map[SocialPostID]bool                    `json:"visible"`
	Config     map[SocialPostID]models.SocialPostConfig `json:"config"`
}

// Snapshot is an immutable view of a session. A new Snapshot is published on
// every change; previously returned snapshots are never modified.
type Snapshot struct {
	SessionID         string                  `json:"sessionId"`
	Version           uint64                  `json:"version"`
	Prompt            string                  `json:"prompt"`
	Selections        []models.ModelSelection `json:"selections"`
	Slots             []Slot                  `json:"slots"`
	States            map[SlotKey]SlotState   `json:"states"`
	Generating        bool                    `json:"generating"`
	SelectionRequired bool                    `json:"selectionRequired"`
	PendingSubmit     bool                    `json:"pendingSubmit"`
	DirectSubmitted   bool                    `json:"directSubmitted"`
	CanRemix          bool                    `json:"canRemix"`
	Remix             RemixState              `json:"remix"`
	SocialPosts       SocialPostState         `json:"socialPosts"`
	UpdatedAt         time.Time               `json:"updatedAt"`
}

type inflight struct {
	epoch  uint64
	cancel context.CancelFunc
}

type pendingSubmit struct {
	prompt  string
	modelID string
}

// Session is one playground: a selection of models, the latest prompt and
// everything generated from it. All methods are safe for concurrent use.
type Session struct {
	id      string
	backend api.Backend
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	snap        *Snapshot
	epoch       uint64
	slotRuns    map[SlotKey]inflight
	postRuns    map[SocialPostID]context.CancelFunc
	remixActive int
	latched     bool
	pending     *pendingSubmit
	closed      bool
	subs        map[int]chan struct{}
	nextSub     int
	wg          sync.WaitGroup
}

// NewSession creates an empty session
func NewSession(id string, backend api.Backend, opts Options, logger *slog.Logger) *Session {
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		backend:  backend,
		opts:     opts,
		logger:   logger.With("component", "playground", "session_id", id),
		ctx:      ctx,
		cancel:   cancel,
		slotRuns: make(map[SlotKey]inflight),
		postRuns: make(map[SocialPostID]context.CancelFunc),
		subs:     make(map[int]chan struct{}),
	}
	s.snap = &Snapshot{
		SessionID:  id,
		Selections: []models.ModelSelection{},
		Slots:      []Slot{},
		States:     map[SlotKey]SlotState{},
		Remix: RemixState{
			Responses: []string{},
			Models:    []string{},
		},
		SocialPosts: SocialPostState{
			Responses:  map[SocialPostID]string{},
			Generating: map[SocialPostID]bool{},
			Visible:    map[SocialPostID]bool{},
			Config:     map[SocialPostID]models.SocialPostConfig{},
		},
		UpdatedAt: time.Now().UTC(),
	}
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current state
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe returns a channel that receives a signal after state changes.
// Signals coalesce: a slow reader sees one pending signal and should read the
// latest Snapshot. The channel is closed when the session closes or
// unsubscribe is called.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// commitLocked publishes next as the current snapshot. Callers hold s.mu and
// must have copied every map or slice they changed.
func (s *Session) commitLocked(next Snapshot) {
	next.Version = s.snap.Version + 1
	next.UpdatedAt = time.Now().UTC()
	next.Generating = anyGenerating(next.States)
	next.CanRemix = canRemix(next.States)
	next.DirectSubmitted = s.latched
	next.PendingSubmit = s.pending != nil
	s.snap = &next

	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SetSelections replaces the model selection and rebuilds the slot list.
// State for slot keys that survive is kept; dropped keys lose their state
// and any in-flight request. A pending direct submit is replayed when the
// new selection is non-empty. The direct-submit latch is released.
func (s *Session) SetSelections(selections []models.ModelSelection) error {
	slots, err := s.assign(selections)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.latched = false
	s.applySlotsLocked(selections, slots)
	replay := s.takePendingLocked(len(slots) > 0)
	s.mu.Unlock()

	if replay != nil {
		s.replay(*replay, selections)
	}
	return nil
}

// RestoreSelection reopens the model selection after a direct submit,
// releasing the latch so the next DirectSubmit is accepted.
func (s *Session) RestoreSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latched = false
	next := *s.snap
	s.commitLocked(next)
}

// ConfirmDefaultModel answers a selection-required prompt with one model.
// An empty modelID falls back to the stashed submit's model, then to the
// configured default. A pending direct submit is replayed.
func (s *Session) ConfirmDefaultModel(modelID string) error {
	s.mu.Lock()
	if modelID == "" && s.pending != nil {
		modelID = s.pending.modelID
	}
	s.mu.Unlock()
	if modelID == "" {
		modelID = s.opts.DefaultModel
	}

	selections := []models.ModelSelection{{ModelID: modelID, Count: 1}}
	slots, err := s.assign(selections)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.applySlotsLocked(selections, slots)
	replay := s.takePendingLocked(true)
	s.mu.Unlock()

	if replay != nil {
		s.replay(*replay, selections)
	}
	return nil
}

func (s *Session) assign(selections []models.ModelSelection) ([]Slot, error) {
	slots, err := AssignSlots(selections)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxSlots > 0 && len(slots) > s.opts.MaxSlots {
		return nil, fmt.Errorf("%w: %d requested, at most %d", ErrTooManySlots, len(slots), s.opts.MaxSlots)
	}
	return slots, nil
}

// applySlotsLocked installs a new slot list, carrying over state by key
func (s *Session) applySlotsLocked(selections []models.ModelSelection, slots []Slot) {
	next := *s.snap
	next.Selections = slices.Clone(selections)
	next.Slots = slots
	next.States = make(map[SlotKey]SlotState, len(slots))
	for _, slot := range slots {
		if st, ok := s.snap.States[slot.Key]; ok {
			next.States[slot.Key] = st
		} else {
			next.States[slot.Key] = SlotState{ModelID: slot.ModelID, Phase: PhaseIdle, Chunks: []string{}}
		}
	}
	for key, run := range s.slotRuns {
		if _, ok := next.States[key]; !ok {
			run.cancel()
			delete(s.slotRuns, key)
		}
	}
	if len(slots) > 0 {
		next.SelectionRequired = false
	}
	s.commitLocked(next)
}

func (s *Session) takePendingLocked(ready bool) *pendingSubmit {
	if !ready || s.pending == nil {
		return nil
	}
	p := s.pending
	s.pending = nil
	return p
}

func (s *Session) replay(p pendingSubmit, selections []models.ModelSelection) {
	if _, err := s.Submit(p.prompt, nil, selections); err != nil {
		s.logger.Warn("Deferred submit failed", "error", err)
		return
	}
	s.logger.Info("Replayed deferred submit", "slots", len(selections))
}

// CancelSlot aborts the in-flight request for key. It reports whether a
// request was running.
func (s *Session) CancelSlot(key SlotKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.slotRuns[key]
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// Close cancels every in-flight request and waits for them to finish
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	s.logger.Debug("Session closed")
}

func anyGenerating(states map[SlotKey]SlotState) bool {
	for _, st := range states {
		if st.Generating {
			return true
		}
	}
	return false
}

// canRemix is the UI visibility rule: at least two slots have finished output
func canRemix(states map[SlotKey]SlotState) bool {
	n := 0
	for _, st := range states {
		if st.Phase == PhaseDone && st.Accumulated != "" {
			n++
		}
	}
	return n >= 2
}

func cloneStates(states map[SlotKey]SlotState) map[SlotKey]SlotState {
	return maps.Clone(states)
}
