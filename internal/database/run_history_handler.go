package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ipsift/internal/domain"
)

// RecordRun inserts one completed run.
func RecordRun(ctx context.Context, db *gorm.DB, run *domain.PublishRun) error {
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("database: record run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run for a repository path, or nil when
// none was recorded.
func LatestRun(ctx context.Context, db *gorm.DB, repository, path string) (*domain.PublishRun, error) {
	var run domain.PublishRun
	err := db.WithContext(ctx).
		Where("repository = ? AND path = ?", repository, path).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database: latest run: %w", err)
	}
	return &run, nil
}
