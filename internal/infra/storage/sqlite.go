package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"deribit_book/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite audit journal. It only records what happened;
// books are always rebuilt from a live snapshot, never from here.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite journal at path
func NewStorage(path string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return Open(db)
}

// Open wraps an existing gorm handle and migrates the journal tables.
func Open(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.QuoteSample{}, &domain.ResyncEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Quote Samples
// ======================================================================================

// SaveQuoteSample appends a top-of-book sample
func (s *Storage) SaveQuoteSample(sample *domain.QuoteSample) error {
	return s.db.Create(sample).Error
}

// RecentQuoteSamples returns the newest samples for an instrument, newest first
func (s *Storage) RecentQuoteSamples(instrument string, limit int) ([]domain.QuoteSample, error) {
	var samples []domain.QuoteSample
	err := s.db.Where("instrument = ?", instrument).
		Order("id desc").
		Limit(limit).
		Find(&samples).Error
	return samples, err
}

// ======================================================================================
// Resync Events
// ======================================================================================

// SaveResyncEvent records a dropped book
func (s *Storage) SaveResyncEvent(ev *domain.ResyncEvent) error {
	return s.db.Create(ev).Error
}

// RecentResyncs returns the newest resync records, newest first
func (s *Storage) RecentResyncs(limit int) ([]domain.ResyncEvent, error) {
	var events []domain.ResyncEvent
	err := s.db.Order("id desc").Limit(limit).Find(&events).Error
	return events, err
}

// CountResyncs returns how many resyncs were recorded for a reason ("" for all)
func (s *Storage) CountResyncs(reason string) (int64, error) {
	var n int64
	q := s.db.Model(&domain.ResyncEvent{})
	if reason != "" {
		q = q.Where("reason = ?", reason)
	}
	err := q.Count(&n).Error
	return n, err
}
