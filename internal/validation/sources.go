package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "covidlag/internal/errors"
)

// Source kinds and the file extensions their loaders accept.
var allowedExtensions = map[string][]string{
	"observations": {".csv"},
	"population":   {".csv", ".xlsx"},
}

// FileValidator runs the preflight checks on the input and output locations
// of a run.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateSource checks that path is a readable, non-empty file with an
// extension the loader of source understands. Failures are LOAD errors.
func (v *FileValidator) ValidateSource(source, path string) error {
	fail := func(cause error) error {
		v.logger.Error("Source file rejected",
			slog.String("source", source),
			slog.String("file", path),
			slog.String("error", cause.Error()))
		return apperrors.NewLoadError(source, cause).WithContext("path", path)
	}

	if err := v.ValidateFile(path); err != nil {
		return fail(err)
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return fail(fmt.Errorf("%s is a temporary Excel lock file", base))
	}

	if allowed, ok := allowedExtensions[source]; ok {
		ext := strings.ToLower(filepath.Ext(path))
		found := false
		for _, a := range allowed {
			if ext == a {
				found = true
				break
			}
		}
		if !found {
			return fail(fmt.Errorf("unsupported extension %q, expected one of %s", ext, strings.Join(allowed, ", ")))
		}
	}
	return nil
}

// ValidateFile checks if a specific file exists, is readable and not empty.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures dir exists and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("output directory is not writable", err).WithContext("directory", dir)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
