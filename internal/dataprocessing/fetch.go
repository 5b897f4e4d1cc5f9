package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	apperrors "covidlag/internal/errors"
)

// HTTPClient is the subset of *http.Client used by Fetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads a remote source file into the data directory.
type Fetcher struct {
	client HTTPClient
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. A nil client gets an *http.Client with timeout.
func NewFetcher(client HTTPClient, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// Download fetches url into dest. The body is written to a temporary file in
// the same directory and renamed into place, so a failed download never
// leaves a truncated dest behind.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	start := time.Now()
	f.logger.InfoContext(ctx, "downloading source", "url", url, "dest", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, apperrors.NewLoadError(SourceObservations, err).WithContext("url", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, apperrors.NewLoadError(SourceObservations, err).WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperrors.NewLoadError(SourceObservations, fmt.Errorf("unexpected status %s", resp.Status)).
			WithContext("url", url).
			WithContext("status", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, apperrors.NewStorageError("failed to create data directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, apperrors.NewStorageError("failed to create temporary file", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, apperrors.NewLoadError(SourceObservations, fmt.Errorf("download interrupted after %d bytes: %w", n, err)).
			WithContext("url", url)
	}
	if err := tmp.Close(); err != nil {
		return 0, apperrors.NewStorageError("failed to close temporary file", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, apperrors.NewStorageError("failed to move download into place", err)
	}

	f.logger.InfoContext(ctx, "download complete",
		"bytes", n,
		"duration", time.Since(start),
	)
	return n, nil
}
