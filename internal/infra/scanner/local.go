package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/metrics"
	"github.com/vibescan/api/pkg/domain/shared"
	"github.com/vibescan/api/pkg/logger"
)

// Runner runs the scan tools over an extracted project directory and
// returns the raw unified JSON document.
type Runner interface {
	Run(ctx context.Context, workdir string) ([]byte, error)
}

// LocalRunner invokes semgrep and optionally gitleaks as subprocesses.
type LocalRunner struct {
	cfg config.ScannerConfig
	log *logger.Logger
}

// NewLocalRunner creates a LocalRunner.
func NewLocalRunner(cfg config.ScannerConfig, log *logger.Logger) *LocalRunner {
	return &LocalRunner{cfg: cfg, log: log.With("component", "local_scanner")}
}

// unifiedEntry is one entry of the unified findings document handed to
// the report normalizer.
type unifiedEntry struct {
	Scanner string        `json:"scanner"`
	CheckID string        `json:"check_id"`
	Path    string        `json:"path"`
	Start   *unifiedStart `json:"start,omitempty"`
	Extra   *unifiedExtra `json:"extra,omitempty"`
}

type unifiedStart struct {
	Line int `json:"line"`
}

type unifiedExtra struct {
	Message  string          `json:"message"`
	Severity string          `json:"severity"`
	Fix      string          `json:"fix,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Run executes the scan tools inside workdir. Scan time is bounded by
// the configured timeout, shortened so a hard abort still leaves room
// to return a structured error before the request deadline.
func (r *LocalRunner) Run(ctx context.Context, workdir string) ([]byte, error) {
	scanCtx, cancel := r.scanContext(ctx)
	defer cancel()

	entries, err := r.runSemgrep(scanCtx, workdir)
	if err != nil {
		metrics.ScannerInvocations.WithLabelValues("semgrep", "error").Inc()
		return nil, err
	}
	metrics.ScannerInvocations.WithLabelValues("semgrep", "ok").Inc()

	if r.cfg.GitleaksEnabled {
		leaks, err := r.runGitleaks(scanCtx, workdir)
		if err != nil {
			// Secrets scanning is additive; its absence never fails a scan.
			metrics.ScannerInvocations.WithLabelValues("gitleaks", "error").Inc()
			r.log.WithContext(ctx).WithError(err).Warn("gitleaks unavailable, continuing without secrets scan")
		} else {
			metrics.ScannerInvocations.WithLabelValues("gitleaks", "ok").Inc()
			entries = append(entries, leaks...)
		}
	}

	doc, err := json.Marshal(map[string]any{"findings": entries})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan result: %w", err)
	}
	return doc, nil
}

func (r *LocalRunner) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline) - r.cfg.AbortMargin
		if remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *LocalRunner) runSemgrep(ctx context.Context, workdir string) ([]unifiedEntry, error) {
	cmd := exec.CommandContext(ctx, "semgrep", "scan", "--config", "auto", "--json", "--quiet")
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.log.WithContext(ctx).Debug("semgrep finished",
		"duration", time.Since(start),
		"exit_ok", err == nil)

	if err != nil {
		// Exit code 1 means findings were reported, which is success.
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return nil, fmt.Errorf("%w: semgrep not installed", shared.ErrScannerUnavailable)
		case errors.As(err, &exitErr):
			if code := exitErr.ExitCode(); code == 127 {
				return nil, fmt.Errorf("%w: semgrep not installed", shared.ErrScannerUnavailable)
			} else if code != 1 {
				return nil, fmt.Errorf("semgrep failed with exit code %d: %s", code, stderr.String())
			}
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: scan timed out", shared.ErrScannerUnavailable)
		default:
			return nil, fmt.Errorf("%w: failed to start semgrep", shared.ErrScannerUnavailable)
		}
	}

	var out struct {
		Results []struct {
			CheckID string `json:"check_id"`
			Path    string `json:"path"`
			Start   *struct {
				Line int `json:"line"`
			} `json:"start"`
			Extra *struct {
				Message  string          `json:"message"`
				Severity string          `json:"severity"`
				Fix      string          `json:"fix"`
				Metadata json.RawMessage `json:"metadata"`
			} `json:"extra"`
		} `json:"results"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		// Malformed tool output reads as zero findings.
		r.log.WithContext(ctx).Warn("semgrep produced unparseable output")
		return []unifiedEntry{}, nil
	}

	entries := make([]unifiedEntry, 0, len(out.Results))
	for _, res := range out.Results {
		entry := unifiedEntry{
			Scanner: "semgrep",
			CheckID: res.CheckID,
			Path:    res.Path,
		}
		if res.Start != nil {
			entry.Start = &unifiedStart{Line: res.Start.Line}
		}
		if res.Extra != nil {
			entry.Extra = &unifiedExtra{
				Message:  res.Extra.Message,
				Severity: res.Extra.Severity,
				Fix:      res.Extra.Fix,
				Metadata: res.Extra.Metadata,
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *LocalRunner) runGitleaks(ctx context.Context, workdir string) ([]unifiedEntry, error) {
	report, err := os.CreateTemp("", "vibescan-gitleaks-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create gitleaks report file: %w", err)
	}
	reportPath := report.Name()
	report.Close()
	defer os.Remove(reportPath)

	cmd := exec.CommandContext(ctx, "gitleaks", "detect",
		"--source", workdir,
		"--no-git",
		"--report-format", "json",
		"--report-path", reportPath,
	)

	if err := cmd.Run(); err != nil {
		// Exit code 1 means leaks were found.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("gitleaks failed: %w", err)
		}
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read gitleaks report: %w", err)
	}

	var leaks []struct {
		RuleID      string `json:"RuleID"`
		Description string `json:"Description"`
		File        string `json:"File"`
		StartLine   int    `json:"StartLine"`
	}
	if err := json.Unmarshal(data, &leaks); err != nil {
		return []unifiedEntry{}, nil
	}

	entries := make([]unifiedEntry, 0, len(leaks))
	for _, leak := range leaks {
		entries = append(entries, unifiedEntry{
			Scanner: "gitleaks",
			CheckID: leak.RuleID,
			Path:    leak.File,
			Start:   &unifiedStart{Line: leak.StartLine},
			Extra: &unifiedExtra{
				Message:  leak.Description,
				Severity: "high",
			},
		})
	}
	return entries, nil
}
