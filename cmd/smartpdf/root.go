package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"smartpdf/internal/codec/gscodec"
	"smartpdf/internal/concurrency"
	"smartpdf/internal/config"
	"smartpdf/internal/database"
	"smartpdf/internal/jobs"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "smartpdf",
		Short:        "Compress PDFs to a target size",
		Long:         "smartpdf compresses PDF files toward a caller-chosen target size,\nadapting image resolution, quality and structural optimizations per document.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	root.AddCommand(
		newCompressCmd(),
		newBatchCmd(),
		newAnalyzeCmd(),
		newExtractTextCmd(),
		newRemoveTextCmd(),
		newServeCmd(),
	)
	return root
}

// app bundles the wired components a command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	codec   *gscodec.Codec
	pool    *concurrency.Pool
	db      *database.Database
	service *jobs.Service
}

func newApp(verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := config.NewLogger(cfg)

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.Warn("job history disabled", "error", err)
		db = nil
	}

	pool := concurrency.NewPool(cfg.MaxWorkers)
	cdc := gscodec.NewCodec(cfg.GhostscriptPath, logger)
	service := jobs.NewService(cfg.WorkingDir, cdc, pool, jobs.NewRegistry(), db, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		codec:   cdc,
		pool:    pool,
		db:      db,
		service: service,
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}
