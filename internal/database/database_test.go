package database

import (
	"path/filepath"
	"testing"
	"time"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	return db
}

func TestSaveAndGetJob(t *testing.T) {
	db := testDatabase(t)

	record := &JobRecord{
		ID:             "job-1",
		Filename:       "report.pdf",
		Status:         "completed",
		OriginalSize:   1000,
		CompressedSize: 400,
		TargetSize:     500,
		TargetAchieved: true,
		CreatedAt:      time.Now(),
	}
	if err := db.SaveJob(record); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	got, err := db.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Filename != "report.pdf" || got.CompressedSize != 400 || !got.TargetAchieved {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := db.GetJob("missing"); err == nil {
		t.Error("expected error for unknown job id")
	}
}

func TestRecentJobsOrdering(t *testing.T) {
	db := testDatabase(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		record := &JobRecord{ID: id, Status: "completed", UpdatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.SaveJob(record); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	records, err := db.RecentJobs(2)
	if err != nil {
		t.Fatalf("RecentJobs failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].UpdatedAt.Before(records[1].UpdatedAt) {
		t.Errorf("records not ordered by recency: %v, %v", records[0].UpdatedAt, records[1].UpdatedAt)
	}
}

func TestRecordCompletionAccumulates(t *testing.T) {
	db := testDatabase(t)

	if err := db.RecordCompletion(600); err != nil {
		t.Fatalf("RecordCompletion failed: %v", err)
	}
	if err := db.RecordCompletion(400); err != nil {
		t.Fatalf("RecordCompletion failed: %v", err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalJobsCompleted != 2 {
		t.Errorf("expected 2 completed jobs, got %d", stats.TotalJobsCompleted)
	}
	if stats.TotalBytesSaved != 1000 {
		t.Errorf("expected 1000 bytes saved, got %d", stats.TotalBytesSaved)
	}
}

func TestNilDatabaseIsSafe(t *testing.T) {
	var db *Database

	if err := db.SaveJob(&JobRecord{ID: "x"}); err != nil {
		t.Errorf("SaveJob on nil database: %v", err)
	}
	if err := db.RecordCompletion(100); err != nil {
		t.Errorf("RecordCompletion on nil database: %v", err)
	}
	if _, err := db.GetJob("x"); err == nil {
		t.Error("expected error from GetJob on nil database")
	}
	records, err := db.RecentJobs(5)
	if err != nil || records != nil {
		t.Errorf("expected empty result from RecentJobs on nil database, got %v, %v", records, err)
	}
}
