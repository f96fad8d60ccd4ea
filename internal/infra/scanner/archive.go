package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/vibescan/api/pkg/domain/shared"
)

// ExtractZip extracts an uploaded archive into dest. Entry names are
// sanitized against path traversal and the cumulative extracted size
// is capped against zip bombs.
func ExtractZip(archive io.ReaderAt, size int64, dest string, maxExtracted int64) error {
	reader, err := zip.NewReader(archive, size)
	if err != nil {
		return fmt.Errorf("%w: invalid zip archive", shared.ErrInvalidInput)
	}

	var total int64
	for _, file := range reader.File {
		target, err := safeJoin(dest, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		total += int64(file.UncompressedSize64)
		if maxExtracted > 0 && total > maxExtracted {
			return fmt.Errorf("%w: archive exceeds extraction size limit", shared.ErrInvalidInput)
		}

		if err := extractFile(file, target, maxExtracted); err != nil {
			return err
		}
	}

	return nil
}

// safeJoin joins an archive entry name onto dest, rejecting absolute
// paths and traversal outside dest.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: archive entry has absolute path", shared.ErrInvalidInput)
	}
	target := filepath.Join(dest, filepath.Clean(name))
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: archive entry escapes extraction directory", shared.ErrInvalidInput)
	}
	return target, nil
}

func extractFile(file *zip.File, target string, maxExtracted int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create extracted file: %w", err)
	}
	defer dst.Close()

	// The declared size is untrusted; enforce the cap on actual bytes.
	limit := int64(file.UncompressedSize64) + 1
	if maxExtracted > 0 && limit > maxExtracted+1 {
		limit = maxExtracted + 1
	}
	written, err := io.Copy(dst, io.LimitReader(src, limit))
	if err != nil {
		return fmt.Errorf("failed to extract file: %w", err)
	}
	if written > int64(file.UncompressedSize64) {
		return fmt.Errorf("%w: archive entry larger than declared", shared.ErrInvalidInput)
	}

	return nil
}
