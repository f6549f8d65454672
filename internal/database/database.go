// Package database persists job history and lifetime compression stats
// in sqlite. The engine works without it; a nil *Database disables
// persistence.
package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database handles database operations
type Database struct {
	db *gorm.DB
}

// NewDatabase creates a new database instance
func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&JobRecord{}, &CompressionStats{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// SaveJob inserts or updates a job history row.
func (d *Database) SaveJob(record *JobRecord) error {
	if d == nil {
		return nil
	}
	return d.db.Save(record).Error
}

// GetJob loads one job history row.
func (d *Database) GetJob(id string) (*JobRecord, error) {
	if d == nil {
		return nil, gorm.ErrRecordNotFound
	}
	var record JobRecord
	if err := d.db.First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// RecentJobs returns the most recently updated job rows.
func (d *Database) RecentJobs(limit int) ([]JobRecord, error) {
	if d == nil {
		return nil, nil
	}
	var records []JobRecord
	err := d.db.Order("updated_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// RecordCompletion adds one completed job and its saved bytes to the
// lifetime stats.
func (d *Database) RecordCompletion(bytesSaved int64) error {
	if d == nil {
		return nil
	}

	stats, err := d.getOrCreateStats()
	if err != nil {
		return err
	}

	stats.TotalJobsCompleted++
	stats.TotalBytesSaved += bytesSaved
	return d.db.Save(stats).Error
}

// GetStats returns the lifetime totals.
func (d *Database) GetStats() (*CompressionStats, error) {
	return d.getOrCreateStats()
}

// getOrCreateStats gets the stats row or creates the initial one
func (d *Database) getOrCreateStats() (*CompressionStats, error) {
	var stats CompressionStats

	result := d.db.First(&stats, 1)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			stats = CompressionStats{ID: 1}
			if err := d.db.Create(&stats).Error; err != nil {
				return nil, err
			}
		} else {
			return nil, result.Error
		}
	}

	return &stats, nil
}
