package database

import (
	"time"
)

// JobRecord is the persisted history row for one compression job.
type JobRecord struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	Stage          string    `json:"stage"`
	Progress       int       `json:"progress"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	TargetSize     int64     `json:"target_size"`
	TargetAchieved bool      `json:"target_achieved"`
	Quality        float64   `json:"quality"`
	Iterations     int       `json:"iterations"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CompressionStats accumulates lifetime totals across all jobs.
type CompressionStats struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	TotalJobsCompleted int64     `json:"total_jobs_completed"`
	TotalBytesSaved    int64     `json:"total_bytes_saved"`
	UpdatedAt          time.Time `json:"updated_at"`
}
