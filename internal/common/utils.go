package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Worker pool bound shared across concurrent jobs
	MaxConcurrencyLimit = 8

	// File operation constants
	DefaultFilePermissions = 0755

	// Temp files older than this are removed on housekeeping passes
	TempFileMaxAge = 1 * time.Hour
)

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

var sizePattern = regexp.MustCompile(`^([\d.]+)\s*(B|KB|MB|GB|K|M|G)?$`)

var sizeMultipliers = map[string]int64{
	"B":  1,
	"K":  1024,
	"KB": 1024,
	"M":  1024 * 1024,
	"MB": 1024 * 1024,
	"G":  1024 * 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
}

// ParseSize parses a human-readable size string like "5MB", "800KB" or
// "1.5GB" into bytes. A bare number is treated as bytes.
func ParseSize(sizeStr string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(sizeStr))

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size format %q: use formats like '5MB', '800KB', '1.5GB'", sizeStr)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", sizeStr, err)
	}

	unit := m[2]
	if unit == "" {
		unit = "B"
	}

	return int64(value * float64(sizeMultipliers[unit])), nil
}

// FormatSize formats bytes to a human-readable string
func FormatSize(sizeBytes int64) string {
	switch {
	case sizeBytes < 1024:
		return fmt.Sprintf("%d B", sizeBytes)
	case sizeBytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(sizeBytes)/1024)
	case sizeBytes < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(sizeBytes)/(1024*1024*1024))
	}
}

// CompressionRatio calculates the size reduction as a percentage (0-100)
func CompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	return (1 - float64(compressedSize)/float64(originalSize)) * 100
}

// CopyFile copies a file, creating the destination directory if needed
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), DefaultFilePermissions); err != nil {
		return err
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}

// CleanupOldTempFiles removes entries under dir that have not been modified
// within TempFileMaxAge. Errors on individual entries are ignored.
func CleanupOldTempFiles(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-TempFileMaxAge)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.RemoveAll(filepath.Join(dir, entry.Name()))
		}
	}
}
