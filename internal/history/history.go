// Package history keeps a SQLite journal of finished generations.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Generation kinds
const (
	KindSlot         = "slot"
	KindRemix        = "remix"
	KindSocialPost   = "social_post"
	KindConversation = "conversation"
)

// Terminal statuses
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Generation is one finished slot, remix, social post or conversation turn
type Generation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"index;size:64" json:"sessionId"`
	Kind       string    `gorm:"index;size:32" json:"kind"`
	Key        string    `gorm:"size:64" json:"key"`
	ModelID    string    `gorm:"size:128" json:"modelId"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	Status     string    `gorm:"size:16" json:"status"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// Recorder accepts finished generations
type Recorder interface {
	Record(ctx context.Context, g Generation) error
}

// Nop discards every record
type Nop struct{}

// Record implements Recorder
func (Nop) Record(context.Context, Generation) error { return nil }

// ListOptions filters List results
type ListOptions struct {
	SessionID string
	Kind      string
	Limit     int
}

// Store is a gorm-backed Recorder
type Store struct {
	db *gorm.DB
}

// AllModels returns the GORM models for migration
func AllModels() []interface{} {
	return []interface{}{
		&Generation{},
	}
}

// Open opens (creating if needed) the SQLite journal at path.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	// SQLite allows one writer; an in-memory database also lives on a single connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("history: auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Record implements Recorder
func (s *Store) Record(ctx context.Context, g Generation) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&g).Error; err != nil {
		return fmt.Errorf("history: record %s %s: %w", g.Kind, g.Key, err)
	}
	return nil
}

// List returns the newest entries first
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Generation, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Model(&Generation{})
	if opts.SessionID != "" {
		q = q.Where("session_id = ?", opts.SessionID)
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", opts.Kind)
	}

	var out []Generation
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
