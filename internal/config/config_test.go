package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SMARTPDF_WORKING_DIR", filepath.Join(t.TempDir(), "work"))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.WorkingDir)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Greater(t, cfg.MaxWorkers, 0)

	_, err = os.Stat(cfg.WorkingDir)
	assert.NoError(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "working_dir: " + filepath.Join(dir, "work") + "\n" +
		"http_addr: \":9999\"\n" +
		"max_workers: 4\n" +
		"log_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9999\"\nworking_dir: "+dir+"\n"), 0600))

	t.Setenv("SMARTPDF_HTTP_ADDR", ":7777")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.HTTPAddr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
