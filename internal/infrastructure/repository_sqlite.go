package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// SQLiteArchiveRepository implements domain.ArchiveRepository using SQLite
type SQLiteArchiveRepository struct {
	db *gorm.DB
}

// NewSQLiteArchiveRepository opens (and migrates) the archive catalog
func NewSQLiteArchiveRepository(dbPath string) (*SQLiteArchiveRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.ArchiveRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteArchiveRepository{db: db}, nil
}

// Create stores a new archive record
func (r *SQLiteArchiveRepository) Create(record *domain.ArchiveRecord) error {
	return r.db.Create(record).Error
}

// Update updates an existing record
func (r *SQLiteArchiveRepository) Update(record *domain.ArchiveRecord) error {
	return r.db.Save(record).Error
}

// Delete deletes a record by ID
func (r *SQLiteArchiveRepository) Delete(id string) error {
	res := r.db.Delete(&domain.ArchiveRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, id)
	}
	return nil
}

// FindByID finds a record by ID
func (r *SQLiteArchiveRepository) FindByID(id string) (*domain.ArchiveRecord, error) {
	var record domain.ArchiveRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, id)
		}
		return nil, err
	}
	return &record, nil
}

// FindBySession finds the records produced by one session, newest first
func (r *SQLiteArchiveRepository) FindBySession(sessionID string) ([]*domain.ArchiveRecord, error) {
	var records []*domain.ArchiveRecord
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// FindAll lists records, newest first
func (r *SQLiteArchiveRepository) FindAll(limit int) ([]*domain.ArchiveRecord, error) {
	var records []*domain.ArchiveRecord
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// GetStats returns catalog statistics
func (r *SQLiteArchiveRepository) GetStats() (*domain.ArchiveStats, error) {
	stats := &domain.ArchiveStats{}

	if err := r.db.Model(&domain.ArchiveRecord{}).Count(&stats.Archives).Error; err != nil {
		return nil, err
	}

	sums := struct {
		Entries int64
		Bytes   int64
	}{}
	if err := r.db.Model(&domain.ArchiveRecord{}).
		Select("COALESCE(SUM(entry_count), 0) AS entries, COALESCE(SUM(size), 0) AS bytes").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	stats.Entries = sums.Entries
	stats.TotalBytes = sums.Bytes

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteArchiveRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
