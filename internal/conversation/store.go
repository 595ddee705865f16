package conversation

import (
	"container/list"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/lamim/chorus/pkg/models"
)

// DefaultCapacity is the number of conversations kept by a MemoryStore
const DefaultCapacity = 100

// Record is the stored state of one conversation
type Record struct {
	Context      map[string]any     `json:"context"`
	LastMessage  models.ChatMessage `json:"lastMessage"`
	LastResponse any                `json:"lastResponse"`
	Timestamp    string             `json:"timestamp"`
	MessageCount int                `json:"messageCount"`
}

// Store persists conversation records
type Store interface {
	Get(id string) (Record, bool)
	// Upsert stores the merged context and last exchange and returns the new message count
	Upsert(id string, context map[string]any, lastMessage models.ChatMessage, lastResponse any) int
	Delete(id string) bool
	Len() int
}

type entry struct {
	id     string
	record Record
}

// MemoryStore keeps at most capacity records and evicts in insertion order.
// Updating an existing record does not change its position.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // oldest insertion at the front
	index    map[string]*list.Element
	now      func() time.Time
}

// NewMemoryStore creates a store; capacity < 1 means DefaultCapacity
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get implements Store
func (s *MemoryStore) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return el.Value.(*entry).record, true
}

// Upsert implements Store
func (s *MemoryStore) Upsert(id string, context map[string]any, lastMessage models.ChatMessage, lastResponse any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 1
	if el, ok := s.index[id]; ok {
		count = el.Value.(*entry).record.MessageCount + 1
	}

	rec := Record{
		Context:      context,
		LastMessage:  lastMessage,
		LastResponse: lastResponse,
		Timestamp:    s.now().UTC().Format(time.RFC3339Nano),
		MessageCount: count,
	}

	if el, ok := s.index[id]; ok {
		el.Value.(*entry).record = rec
	} else {
		s.index[id] = s.order.PushBack(&entry{id: id, record: rec})
	}

	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(*entry).id)
	}
	return count
}

// Delete implements Store
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.index, id)
	return true
}

// Len implements Store
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewConversationID returns conv_<epoch millis>_<9 random base36 chars>
func NewConversationID() string {
	return newConversationID(time.Now())
}

func newConversationID(now time.Time) string {
	suffix := make([]byte, 9)
	base := big.NewInt(int64(len(idAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			panic(fmt.Sprintf("conversation: random source failed: %v", err))
		}
		suffix[i] = idAlphabet[n.Int64()]
	}
	return fmt.Sprintf("conv_%d_%s", now.UnixMilli(), suffix)
}
