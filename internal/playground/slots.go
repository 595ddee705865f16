// Package playground fans one prompt out to several models and keeps the
// per-slot, remix and social post state the UI renders.
package playground

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lamim/chorus/pkg/models"
)

var (
	// ErrInvalidCount is returned for a selection whose count is below 1
	ErrInvalidCount = errors.New("model selection count must be at least 1")
	// ErrEmptyModelID is returned for a selection without a model id
	ErrEmptyModelID = errors.New("model selection has an empty model id")
	// ErrTooManySlots is returned when the selections expand past the configured limit
	ErrTooManySlots = errors.New("too many slots")
)

// SlotKey identifies a generation slot. Keys are 1-based.
type SlotKey int

// String returns the decimal form used as the map key in JSON
func (k SlotKey) String() string {
	return strconv.Itoa(int(k))
}

// ParseSlotKey parses the decimal form produced by String
func ParseSlotKey(s string) (SlotKey, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid slot key %q", s)
	}
	return SlotKey(n), nil
}

// Slot binds one slot key to one model
type Slot struct {
	Key     SlotKey `json:"key"`
	ModelID string  `json:"modelId"`
}

// AssignSlots flattens selections into slots numbered 1..N, all repeats of
// selection i before those of selection i+1. Empty input yields no slots.
func AssignSlots(selections []models.ModelSelection) ([]Slot, error) {
	total := 0
	for i, sel := range selections {
		if strings.TrimSpace(sel.ModelID) == "" {
			return nil, fmt.Errorf("selection %d: %w", i, ErrEmptyModelID)
		}
		if sel.Count < 1 {
			return nil, fmt.Errorf("selection %d (%s): %w", i, sel.ModelID, ErrInvalidCount)
		}
		total += sel.Count
	}

	slots := make([]Slot, 0, total)
	for _, sel := range selections {
		for r := 0; r < sel.Count; r++ {
			slots = append(slots, Slot{Key: SlotKey(len(slots) + 1), ModelID: sel.ModelID})
		}
	}
	return slots, nil
}
