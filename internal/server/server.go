// Package server exposes the compression service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"smartpdf/internal/codec"
	"smartpdf/internal/common"
	"smartpdf/internal/compression"
	"smartpdf/internal/database"
	"smartpdf/internal/jobs"
)

// Upload size cap; multipart bodies above this are rejected.
const maxUploadSize = "256M"

// Server wires the HTTP API to the job service.
type Server struct {
	echo      *echo.Echo
	service   *jobs.Service
	codec     codec.Codec
	analyzer  *compression.Analyzer
	db        *database.Database
	uploadDir string
	logger    *slog.Logger
}

// New creates a new server instance. db may be nil.
func New(
	service *jobs.Service,
	cdc codec.Codec,
	db *database.Database,
	uploadDir string,
	logger *slog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxUploadSize))

	if err := os.MkdirAll(uploadDir, common.DefaultFilePermissions); err != nil {
		logger.Warn("upload directory unavailable", "dir", uploadDir, "error", err)
	}

	s := &Server{
		echo:      e,
		service:   service,
		codec:     cdc,
		analyzer:  compression.NewAnalyzer(logger),
		db:        db,
		uploadDir: uploadDir,
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/api/upload", s.handleUpload)
	s.echo.POST("/api/compress", s.handleCompress)
	s.echo.GET("/api/jobs", s.handleListJobs)
	s.echo.GET("/api/job/:id", s.handleJobStatus)
	s.echo.POST("/api/job/:id/cancel", s.handleCancel)
	s.echo.GET("/api/download/:id/:kind", s.handleDownload)
	s.echo.GET("/api/report/:id", s.handleReport)
	s.echo.GET("/api/history", s.handleHistory)
	s.echo.GET("/api/history/:id", s.handleHistoryEntry)
	s.echo.GET("/api/stats", s.handleStats)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server starting", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying mux for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	FileID   string               `json:"file_id"`
	Filename string               `json:"filename"`
	Analysis *compression.Profile `json:"analysis"`
}

// handleUpload stores the file and returns its analysis so the client
// can pick a sensible target before starting a job.
func (s *Server) handleUpload(c echo.Context) error {
	common.CleanupOldTempFiles(s.uploadDir)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no file provided")
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return echo.NewHTTPError(http.StatusBadRequest, "only PDF files are allowed")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}

	fileID := common.GenerateUUID()
	filename := filepath.Base(fileHeader.Filename)
	path := filepath.Join(s.uploadDir, fileID+"_"+filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "store upload")
	}

	doc, err := s.codec.Decode(c.Request().Context(), data)
	if err != nil {
		os.Remove(path)
		if errors.Is(err, codec.ErrUnreadableDocument) {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable document")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer doc.Close()

	profile, err := s.analyzer.Analyze(c.Request().Context(), doc, int64(len(data)))
	if err != nil {
		os.Remove(path)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, uploadResponse{
		FileID:   fileID,
		Filename: filename,
		Analysis: profile,
	})
}

type compressRequest struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	TargetSize  string `json:"target_size"`
	Tolerance   string `json:"tolerance"`
	ExtractText bool   `json:"extract_text"`
	RemoveText  bool   `json:"remove_text"`
}

func (s *Server) handleCompress(c echo.Context) error {
	var req compressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no data provided")
	}
	if req.FileID == "" || req.Filename == "" || req.TargetSize == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing required fields")
	}
	// File IDs are always server-generated UUIDs; anything else cannot
	// name an upload and must not reach the path join.
	if _, err := uuid.Parse(req.FileID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}

	targetBytes, err := common.ParseSize(req.TargetSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	path := filepath.Join(s.uploadDir, req.FileID+"_"+filepath.Base(req.Filename))
	data, err := os.ReadFile(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found, please upload again")
	}

	jobID, err := s.service.StartJob(c.Request().Context(), data, jobs.Request{
		Filename:    req.Filename,
		TargetBytes: targetBytes,
		Mode:        compression.ToleranceMode(req.Tolerance),
		ExtractText: req.ExtractText,
		RemoveText:  req.RemoveText,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"job_id": jobID})
}

func (s *Server) handleListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.ListJobs())
}

func (s *Server) handleJobStatus(c echo.Context) error {
	snapshot, err := s.service.GetJobStatus(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleCancel(c echo.Context) error {
	if err := s.service.CancelJob(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancellation requested"})
}

var downloadKinds = map[string]jobs.ArtifactKind{
	"compressed": jobs.ArtifactCompressedPDF,
	"text":       jobs.ArtifactExtractedText,
	"notext":     jobs.ArtifactNoTextPDF,
	"report":     jobs.ArtifactReport,
}

func (s *Server) handleDownload(c echo.Context) error {
	kind, ok := downloadKinds[c.Param("kind")]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown artifact kind")
	}

	path, err := s.service.GetArtifact(c.Param("id"), kind)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusNotFound, "artifact not available")
	}

	return c.Attachment(path, filepath.Base(path))
}

func (s *Server) handleReport(c echo.Context) error {
	snapshot, err := s.service.GetJobStatus(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	if snapshot.Status != jobs.StatusCompleted {
		return echo.NewHTTPError(http.StatusBadRequest, "job not completed")
	}
	return c.JSON(http.StatusOK, snapshot.Result)
}

// Number of history rows returned by the history endpoint.
const historyLimit = 20

func (s *Server) handleHistory(c echo.Context) error {
	if s.db == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history not available")
	}
	records, err := s.db.RecentJobs(historyLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("load history: %v", err))
	}
	return c.JSON(http.StatusOK, records)
}

// handleHistoryEntry serves persisted job rows, which outlive the
// in-memory registry.
func (s *Server) handleHistoryEntry(c echo.Context) error {
	if s.db == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history not available")
	}
	record, err := s.db.GetJob(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleStats(c echo.Context) error {
	if s.db == nil {
		return echo.NewHTTPError(http.StatusNotFound, "stats not available")
	}
	stats, err := s.db.GetStats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("load stats: %v", err))
	}
	return c.JSON(http.StatusOK, stats)
}
