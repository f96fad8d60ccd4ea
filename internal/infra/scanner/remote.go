package scanner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/metrics"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
)

// RemoteClient sends the project to a remote scan service that returns
// the same unified JSON document the local runner produces.
type RemoteClient struct {
	url        string
	httpClient *http.Client
	log        *logger.Logger
}

// NewRemoteClient creates a RemoteClient.
func NewRemoteClient(cfg config.ScannerConfig, log *logger.Logger) *RemoteClient {
	return &RemoteClient{
		url: cfg.RemoteURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log.With("component", "remote_scanner"),
	}
}

// Run packs the workdir into a tarball and POSTs it to the remote scan
// service. Connection failures surface as scanner-unavailable, the
// same contract as a missing local tool.
func (c *RemoteClient) Run(ctx context.Context, workdir string) ([]byte, error) {
	archive, err := packWorkdir(workdir)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/scan", bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("failed to create scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/gzip")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ScannerInvocations.WithLabelValues("remote", "error").Inc()
		return nil, fmt.Errorf("%w: remote scan service unreachable", shared.ErrScannerUnavailable)
	}
	defer resp.Body.Close()

	c.log.WithContext(ctx).Debug("remote scan finished",
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		metrics.ScannerInvocations.WithLabelValues("remote", "error").Inc()
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%w: remote scan service unavailable", shared.ErrScannerUnavailable)
		}
		return nil, fmt.Errorf("remote scan service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read remote scan response: %w", err)
	}

	metrics.ScannerInvocations.WithLabelValues("remote", "ok").Inc()
	return body, nil
}

// packWorkdir builds a gzipped tarball of the workdir contents with
// paths relative to the workdir root.
func packWorkdir(workdir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(workdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workdir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr := &tar.Header{
			Name: filepath.ToSlash(rel),
			Mode: 0o644,
			Size: info.Size(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack workdir: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}
