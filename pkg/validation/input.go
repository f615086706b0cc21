// Package validation checks simulate requests and CLI inputs before any
// computation starts.
package validation

import (
	"os"
	"path/filepath"
	"strings"

	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 4096

// ValidateFilePath validates and sanitizes a file path.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", simerrors.New(simerrors.CodeInvalidRequest, "empty file path")
	}

	// Allow stdin/stdout
	if path == "-" {
		return "-", nil
	}

	if len(path) > MaxPathLength {
		return "", simerrors.New(simerrors.CodeInvalidRequest, "path too long").
			WithContext("maxLength", MaxPathLength)
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", simerrors.New(simerrors.CodeInvalidRequest, "path traversal not allowed")
	}

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", simerrors.Wrap(err, simerrors.CodeInvalidRequest, "invalid path")
	}
	return abs, nil
}

// ValidateOutputPath validates an output file path.
func ValidateOutputPath(path string) error {
	if path == "-" {
		return nil
	}

	cleanPath, err := ValidateFilePath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(cleanPath)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return simerrors.New(simerrors.CodeInvalidRequest, "output directory does not exist").
			WithContext("directory", dir)
	}
	if err != nil {
		return simerrors.Wrap(err, simerrors.CodeInvalidRequest, "cannot access output directory")
	}
	if !info.IsDir() {
		return simerrors.New(simerrors.CodeInvalidRequest, "parent path is not a directory")
	}
	return nil
}

// ExportFormats are the batch export formats.
var ExportFormats = []string{"json", "parquet", "xlsx"}

// ValidateFormat validates an export format name.
func ValidateFormat(format string) error {
	format = strings.ToLower(format)
	for _, f := range ExportFormats {
		if f == format {
			return nil
		}
	}
	return simerrors.New(simerrors.CodeInvalidRequest, "unsupported format").
		WithContext("format", format).
		WithContext("supported", strings.Join(ExportFormats, ", "))
}

// FormatFromPath infers the export format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "parquet"
	case ".xlsx":
		return "xlsx"
	default:
		return "json"
	}
}

// TruncateString truncates a string to maxLen, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
