// Package jobs runs compression jobs asynchronously and exposes the
// narrow lifecycle contract used by both the CLI and the HTTP server:
// start, poll, fetch artifacts, cancel.
package jobs

import (
	"context"
	"sync"
	"time"

	"smartpdf/internal/compression"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Stage labels reported while a job runs.
const (
	StageAnalyzing         = "Analyzing"
	StageProcessingImages  = "Processing images"
	StageOptimizingObjects = "Optimizing objects"
	StageTextExtraction    = "Text extraction"
	StageFinalizing        = "Finalizing"
	StageComplete          = "Complete"
	StageFailed            = "Failed"
	StageCancelled         = "Cancelled"
)

// ArtifactKind names the outputs a completed job can produce.
type ArtifactKind string

const (
	ArtifactCompressedPDF ArtifactKind = "compressed_pdf"
	ArtifactExtractedText ArtifactKind = "extracted_text"
	ArtifactNoTextPDF     ArtifactKind = "notext_pdf"
	ArtifactReport        ArtifactKind = "report"
)

// Request describes the work for one job.
type Request struct {
	Filename    string
	TargetBytes int64
	Mode        compression.ToleranceMode
	ExtractText bool
	RemoveText  bool
}

// Result summarizes a completed job.
type Result struct {
	OriginalSize     int64    `json:"original_size"`
	CompressedSize   int64    `json:"compressed_size"`
	CompressionRatio float64  `json:"compression_ratio"`
	Quality          float64  `json:"quality"`
	TargetSize       int64    `json:"target_size"`
	TargetAchieved   bool     `json:"target_achieved"`
	Iterations       int      `json:"iterations"`
	ImagesProcessed  int      `json:"images_processed"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Snapshot is a point-in-time read of a job's state.
type Snapshot struct {
	ID        string               `json:"id"`
	Filename  string               `json:"filename,omitempty"`
	Status    Status               `json:"status"`
	Stage     string               `json:"stage"`
	Progress  int                  `json:"progress"`
	Profile   *compression.Profile `json:"profile,omitempty"`
	Result    *Result              `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorKind string               `json:"error_kind,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Job is the mutable state of one compression run. All transitions go
// through the mutex; readers get copies via Snapshot.
type Job struct {
	mu sync.Mutex

	id        string
	filename  string
	status    Status
	stage     string
	progress  int
	profile   *compression.Profile
	result    *Result
	errMsg    string
	errKind   string
	artifacts map[ArtifactKind]string
	cancel    context.CancelFunc
	createdAt time.Time
}

func newJob(id, filename string, cancel context.CancelFunc) *Job {
	return &Job{
		id:        id,
		filename:  filename,
		status:    StatusQueued,
		stage:     StageAnalyzing,
		artifacts: make(map[ArtifactKind]string),
		cancel:    cancel,
		createdAt: time.Now(),
	}
}

// Snapshot returns a consistent copy of the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:        j.id,
		Filename:  j.filename,
		Status:    j.status,
		Stage:     j.stage,
		Progress:  j.progress,
		Profile:   j.profile,
		Result:    j.result,
		Error:     j.errMsg,
		ErrorKind: j.errKind,
		CreatedAt: j.createdAt,
	}
}

func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusQueued {
		j.status = StatusRunning
	}
}

func (j *Job) setProfile(p *compression.Profile) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.profile = p
}

// advance raises progress to p and updates the stage label. Progress is
// monotonic; a lower value is ignored.
func (j *Job) advance(stage string, p int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.stage = stage
	if p > j.progress {
		if p > 100 {
			p = 100
		}
		j.progress = p
	}
}

func (j *Job) complete(result *Result, artifacts map[ArtifactKind]string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = StatusCompleted
	j.stage = StageComplete
	j.progress = 100
	j.result = result
	j.artifacts = artifacts
}

func (j *Job) fail(kind, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = StatusFailed
	j.stage = StageFailed
	j.errKind = kind
	j.errMsg = msg
}

func (j *Job) markCancelled() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = StatusCancelled
	j.stage = StageCancelled
}

func (j *Job) artifactPath(kind ArtifactKind) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	path, ok := j.artifacts[kind]
	return path, ok
}
