package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"smartpdf/internal/codec"
	"smartpdf/internal/common"
	"smartpdf/internal/compression"
	"smartpdf/internal/concurrency"
	"smartpdf/internal/database"
	"smartpdf/internal/textops"
)

// Progress checkpoints. The search span between analysis and text
// handling is split between the image and object stages in proportion
// to the document's image content.
const (
	progressAnalyzed  = 15
	progressSearched  = 85
	progressText      = 92
	progressFinalized = 95
)

// Artifact filenames inside each job's working directory.
const (
	fileCompressed = "compressed.pdf"
	fileExtracted  = "extracted.txt"
	fileNoText     = "notext.pdf"
	fileReport     = "report.json"
)

// Service owns the full job lifecycle. It decodes, analyzes, searches,
// writes artifacts, and records history; callers interact only through
// StartJob, GetJobStatus, GetArtifact, and CancelJob.
type Service struct {
	workingDir string
	codec      codec.Codec
	analyzer   *compression.Analyzer
	pipeline   *compression.Pipeline
	searcher   *compression.Searcher
	text       *textops.Handler
	registry   *Registry
	db         *database.Database
	logger     *slog.Logger
}

// NewService creates a new job service instance. db may be nil to
// disable history persistence.
func NewService(
	workingDir string,
	cdc codec.Codec,
	pool *concurrency.Pool,
	registry *Registry,
	db *database.Database,
	logger *slog.Logger,
) *Service {
	pipeline := compression.NewPipeline(pool, logger)
	return &Service{
		workingDir: workingDir,
		codec:      cdc,
		analyzer:   compression.NewAnalyzer(logger),
		pipeline:   pipeline,
		searcher:   compression.NewSearcher(pipeline, logger),
		text:       textops.NewHandler(logger),
		registry:   registry,
		db:         db,
		logger:     logger,
	}
}

// StartJob validates the request, registers a queued job, and launches
// the run in the background. The returned ID is immediately pollable.
func (s *Service) StartJob(ctx context.Context, document []byte, req Request) (string, error) {
	if req.TargetBytes <= 0 {
		return "", fmt.Errorf("%w: %d", compression.ErrInvalidTarget, req.TargetBytes)
	}
	if req.Mode == "" {
		req.Mode = compression.ToleranceBestPossible
	}
	if !compression.ValidMode(req.Mode) {
		return "", fmt.Errorf("%w: %q", compression.ErrUnknownMode, req.Mode)
	}
	if len(document) == 0 {
		return "", ErrEmptyDocument
	}

	// The run outlives the request context; cancellation goes through
	// CancelJob.
	runCtx, cancel := context.WithCancel(context.Background())

	job := newJob(common.GenerateUUID(), req.Filename, cancel)
	s.registry.add(job)
	s.persist(job, req)

	s.logger.Info("job started",
		"job_id", job.id,
		"filename", req.Filename,
		"target", req.TargetBytes,
		"mode", req.Mode)

	go s.run(runCtx, job, document, req)

	return job.id, nil
}

// GetJobStatus returns a snapshot of the job's current state.
func (s *Service) GetJobStatus(jobID string) (Snapshot, error) {
	job, ok := s.registry.get(jobID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job.Snapshot(), nil
}

// GetArtifact returns the on-disk path of a completed job's artifact.
func (s *Service) GetArtifact(jobID string, kind ArtifactKind) (string, error) {
	job, ok := s.registry.get(jobID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	path, ok := job.artifactPath(kind)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrArtifactNotFound, jobID, kind)
	}
	return path, nil
}

// ListJobs returns snapshots of every known job.
func (s *Service) ListJobs() []Snapshot {
	return s.registry.List()
}

// CancelJob requests cooperative cancellation. Cancelling a terminal
// job is a no-op.
func (s *Service) CancelJob(jobID string) error {
	job, ok := s.registry.get(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	job.cancel()
	s.logger.Info("job cancellation requested", "job_id", jobID)
	return nil
}

// run executes the whole job. Every transition out of running goes
// through exactly one of complete, fail, or cancelled.
func (s *Service) run(ctx context.Context, job *Job, document []byte, req Request) {
	job.markRunning()
	job.advance(StageAnalyzing, 2)

	originalSize := int64(len(document))

	doc, err := s.codec.Decode(ctx, document)
	if err != nil {
		s.finishError(ctx, job, req, fmt.Errorf("decode: %w", err))
		return
	}
	defer doc.Close()

	profile, err := s.analyzer.Analyze(ctx, doc, originalSize)
	if err != nil {
		s.finishError(ctx, job, req, fmt.Errorf("analyze: %w", err))
		return
	}
	job.setProfile(profile)
	job.advance(StageProcessingImages, progressAnalyzed)

	accepted, history, err := s.search(ctx, job, doc, profile, document, req)
	if err != nil {
		s.finishError(ctx, job, req, err)
		return
	}

	dir := filepath.Join(s.workingDir, job.id)
	if err := os.MkdirAll(dir, common.DefaultFilePermissions); err != nil {
		s.finishError(ctx, job, req, fmt.Errorf("create working directory: %w", err))
		return
	}

	artifacts := map[ArtifactKind]string{}

	compressedPath := filepath.Join(dir, fileCompressed)
	if err := os.WriteFile(compressedPath, accepted.Data, 0644); err != nil {
		s.finishError(ctx, job, req, fmt.Errorf("write compressed output: %w", err))
		return
	}
	artifacts[ArtifactCompressedPDF] = compressedPath

	if req.ExtractText {
		job.advance(StageTextExtraction, progressSearched+1)

		// Always extracted from the original document so quality loss in
		// the compressed variant cannot degrade the text.
		extraction, err := s.text.ExtractText(ctx, doc, true)
		if err != nil {
			s.finishError(ctx, job, req, fmt.Errorf("extract text: %w", err))
			return
		}
		extractedPath := filepath.Join(dir, fileExtracted)
		if err := os.WriteFile(extractedPath, []byte(extraction.Text), 0644); err != nil {
			s.finishError(ctx, job, req, fmt.Errorf("write extracted text: %w", err))
			return
		}
		artifacts[ArtifactExtractedText] = extractedPath
		job.advance(StageTextExtraction, progressText-2)
	}

	if req.RemoveText {
		job.advance(StageTextExtraction, progressSearched+1)

		noText, err := s.stripText(ctx, doc, accepted, originalSize, req.TargetBytes)
		if err != nil {
			s.finishError(ctx, job, req, fmt.Errorf("remove text: %w", err))
			return
		}
		noTextPath := filepath.Join(dir, fileNoText)
		if err := os.WriteFile(noTextPath, noText, 0644); err != nil {
			s.finishError(ctx, job, req, fmt.Errorf("write text-free output: %w", err))
			return
		}
		artifacts[ArtifactNoTextPDF] = noTextPath
	}

	job.advance(StageFinalizing, progressFinalized)

	if err := ctx.Err(); err != nil {
		s.finishCancelled(job, req, dir)
		return
	}

	result := &Result{
		OriginalSize:     originalSize,
		CompressedSize:   accepted.SizeBytes,
		CompressionRatio: common.CompressionRatio(originalSize, accepted.SizeBytes),
		Quality:          accepted.Quality,
		TargetSize:       req.TargetBytes,
		TargetAchieved:   accepted.TargetAchieved,
		Iterations:       len(history),
		ImagesProcessed:  accepted.ImagesProcessed,
		Warnings:         accepted.SkippedObjects,
	}

	reportPath := filepath.Join(dir, fileReport)
	if err := s.writeReport(reportPath, result, profile, history); err != nil {
		s.finishError(ctx, job, req, fmt.Errorf("write report: %w", err))
		return
	}
	artifacts[ArtifactReport] = reportPath

	job.complete(result, artifacts)
	s.persist(job, req)
	if err := s.db.RecordCompletion(originalSize - accepted.SizeBytes); err != nil {
		s.logger.Warn("stats update failed", "job_id", job.id, "error", err)
	}

	s.logger.Info("job completed",
		"job_id", job.id,
		"original", originalSize,
		"compressed", accepted.SizeBytes,
		"target_achieved", accepted.TargetAchieved,
		"iterations", len(history))
}

// search runs the parameter search, or short-circuits when the target
// already admits the original bytes unchanged.
func (s *Service) search(
	ctx context.Context,
	job *Job,
	doc codec.Document,
	profile *compression.Profile,
	document []byte,
	req Request,
) (*compression.Candidate, []compression.Attempt, error) {
	if req.TargetBytes >= profile.OriginalSize {
		s.logger.Info("target at or above original size, skipping search",
			"job_id", job.id,
			"target", req.TargetBytes,
			"original", profile.OriginalSize)
		job.advance(StageOptimizingObjects, progressSearched)
		return &compression.Candidate{
			SizeBytes:      profile.OriginalSize,
			Quality:        100,
			Data:           document,
			TargetAchieved: true,
		}, nil, nil
	}

	// Image work dominates search time roughly in proportion to image
	// area, so the stage label flips partway through the span.
	imageShare := 0.45 + 0.35*profile.ImageAreaFraction
	span := float64(progressSearched - progressAnalyzed)
	crossover := progressAnalyzed + int(span*imageShare)

	onIteration := func(iteration, maxIterations int, _ compression.Attempt) {
		p := progressAnalyzed + int(span*float64(iteration)/float64(maxIterations))
		stage := StageProcessingImages
		if p >= crossover {
			stage = StageOptimizingObjects
		}
		job.advance(stage, p)
	}

	accepted, history, err := s.searcher.Run(ctx, doc, profile, req.TargetBytes, req.Mode, onIteration)
	if err != nil {
		return nil, history, err
	}
	job.advance(StageOptimizingObjects, progressSearched)
	return accepted, history, nil
}

// stripText builds the text-free variant. When a search ran, the
// accepted parameter set is replayed with text removal so the non-text
// content matches the compressed artifact; otherwise the original
// document is stripped as-is.
func (s *Service) stripText(
	ctx context.Context,
	doc codec.Document,
	accepted *compression.Candidate,
	originalSize, targetBytes int64,
) ([]byte, error) {
	if targetBytes >= originalSize {
		removal, err := s.text.RemoveText(ctx, doc, originalSize)
		if err != nil {
			return nil, err
		}
		return removal.Data, nil
	}

	candidate, err := s.pipeline.ApplyTextStripped(ctx, doc, accepted.Params)
	if err != nil {
		return nil, err
	}
	return candidate.Data, nil
}

// finishError routes a run failure to the right terminal state.
// Cancellation is not an error outcome; partial artifacts are removed.
func (s *Service) finishError(ctx context.Context, job *Job, req Request, err error) {
	dir := filepath.Join(s.workingDir, job.id)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.finishCancelled(job, req, dir)
		return
	}

	kind := errKindInternal
	switch {
	case errors.Is(err, codec.ErrUnreadableDocument):
		kind = errKindUnreadable
	case isEncodingError(err):
		kind = errKindEncoding
	}

	job.fail(kind, err.Error())
	s.persist(job, req)
	os.RemoveAll(dir)
	s.logger.Error("job failed", "job_id", job.id, "kind", kind, "error", err)
}

func (s *Service) finishCancelled(job *Job, req Request, dir string) {
	job.markCancelled()
	s.persist(job, req)
	os.RemoveAll(dir)
	s.logger.Info("job cancelled", "job_id", job.id)
}

func isEncodingError(err error) bool {
	var encErr *compression.EncodingError
	return errors.As(err, &encErr)
}

// persist mirrors the job's state into the history database. Best
// effort; persistence failures never affect the job.
func (s *Service) persist(job *Job, req Request) {
	snap := job.Snapshot()
	record := &database.JobRecord{
		ID:         snap.ID,
		Filename:   snap.Filename,
		Status:     string(snap.Status),
		Stage:      snap.Stage,
		Progress:   snap.Progress,
		TargetSize: req.TargetBytes,
		Error:      snap.Error,
		CreatedAt:  snap.CreatedAt,
	}
	if snap.Profile != nil {
		record.OriginalSize = snap.Profile.OriginalSize
	}
	if snap.Result != nil {
		record.OriginalSize = snap.Result.OriginalSize
		record.CompressedSize = snap.Result.CompressedSize
		record.TargetAchieved = snap.Result.TargetAchieved
		record.Quality = snap.Result.Quality
		record.Iterations = snap.Result.Iterations
	}
	if err := s.db.SaveJob(record); err != nil {
		s.logger.Warn("job persistence failed", "job_id", snap.ID, "error", err)
	}
}

// report is the serialized job report artifact.
type report struct {
	Result   *Result               `json:"result"`
	Profile  *compression.Profile  `json:"profile"`
	Attempts []compression.Attempt `json:"attempts"`
}

func (s *Service) writeReport(path string, result *Result, profile *compression.Profile, history []compression.Attempt) error {
	data, err := json.MarshalIndent(report{Result: result, Profile: profile, Attempts: history}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
