package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crypto_dash/internal/event"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN keeps the journal inside the process; nothing survives a restart.
const MemoryDSN = "file::memory:?cache=shared"

// JournalEntry is one reduced action as recorded in SQLite.
type JournalEntry struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	Type       string    `gorm:"index;not null" json:"type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"` // codec envelope
	RecordedAt time.Time `gorm:"not null" json:"recordedAt"`
}

func (JournalEntry) TableName() string { return "action_journal" }

// Journal is the action log behind the store. It implements engine.Journal.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (and migrates) the journal at dsn. An empty dsn selects
// MemoryDSN.
func NewJournal(dsn string) (*Journal, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	if !strings.HasPrefix(dsn, "file:") {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	if err := db.AutoMigrate(&JournalEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append records a under seq.
func (j *Journal) Append(ctx context.Context, seq uint64, a event.Action) error {
	payload, err := event.Encode(a)
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.ActionType(), err)
	}

	entry := JournalEntry{
		Seq:        seq,
		Type:       string(a.ActionType()),
		Payload:    string(payload),
		RecordedAt: time.Now().UTC(),
	}
	return j.db.WithContext(ctx).Create(&entry).Error
}

// Entries returns up to limit entries with seq > after, oldest first.
// A limit <= 0 means no limit.
func (j *Journal) Entries(ctx context.Context, after uint64, limit int) ([]JournalEntry, error) {
	var entries []JournalEntry
	q := j.db.WithContext(ctx).Where("seq > ?", after).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// Actions decodes the whole journal in sequence order, ready for replay.
func (j *Journal) Actions(ctx context.Context) ([]event.Action, error) {
	entries, err := j.Entries(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	actions := make([]event.Action, 0, len(entries))
	for _, e := range entries {
		a, err := event.Decode([]byte(e.Payload))
		if err != nil {
			return nil, fmt.Errorf("journal seq %d: %w", e.Seq, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Count returns the number of recorded actions.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.WithContext(ctx).Model(&JournalEntry{}).Count(&n).Error
	return n, err
}

// LastSeq returns the highest recorded sequence number, or 0 when empty.
func (j *Journal) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := j.db.WithContext(ctx).Model(&JournalEntry{}).Select("COALESCE(MAX(seq), 0)").Scan(&seq).Error
	return seq, err
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
