package extractor

import (
	"archive/tar"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrTruncated reports an archive whose byte stream ended, or stopped
// making sense, before every declared member was fully readable. It covers
// both short files from interrupted downloads and corrupt compressed data.
var ErrTruncated = errors.New("archive truncated or corrupt")

// Extractor unpacks gzip-compressed tar archives. It never removes the
// source archive, and whatever a failed extraction already wrote stays on
// disk for inspection.
type Extractor struct {
	fs     afero.Fs
	logger *slog.Logger
}

func New(fs afero.Fs, logger *slog.Logger) *Extractor {
	return &Extractor{fs: fs, logger: logger}
}

// Extract unpacks the archive at archivePath into targetDir, creating the
// directory if it does not exist, and returns the number of regular files
// written. Member names are joined under targetDir and may not escape it.
// A damaged stream yields an error wrapping ErrTruncated; members already
// extracted before the damage was hit are kept.
func (e *Extractor) Extract(ctx context.Context, archivePath, targetDir string) (int, error) {
	f, err := e.fs.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	if err := e.fs.MkdirAll(targetDir, 0o755); err != nil {
		return 0, fmt.Errorf("create extraction dir %s: %w", targetDir, err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		streamErr := fmt.Errorf("open gzip stream of %s: %w", archivePath, err)
		if errors.Is(err, io.EOF) {
			// A zero-length file yields bare EOF from the header read rather
			// than ErrUnexpectedEOF.
			return 0, fmt.Errorf("%w: %w", ErrTruncated, streamErr)
		}
		return 0, classifyStreamErr(streamErr)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	files := 0
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			e.logger.Debug("Extraction complete.",
				slog.String("archive", archivePath),
				slog.Int("files", files))
			return files, nil
		}
		if err != nil {
			return files, classifyStreamErr(fmt.Errorf("read tar header in %s: %w", archivePath, err))
		}

		dest, err := memberPath(targetDir, hdr.Name)
		if err != nil {
			return files, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := e.fs.MkdirAll(dest, 0o755); err != nil {
				return files, fmt.Errorf("create dir %s: %w", dest, err)
			}
		case tar.TypeReg:
			if err := e.writeMember(dest, tr, hdr); err != nil {
				return files, err
			}
			files++
		default:
			e.logger.Debug("Skipping unsupported tar member.",
				slog.String("name", hdr.Name),
				slog.Int("type", int(hdr.Typeflag)))
		}
	}
}

func (e *Extractor) writeMember(dest string, tr *tar.Reader, hdr *tar.Header) error {
	if err := e.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dest, err)
	}

	out, err := e.fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	_, copyErr := io.Copy(out, tr)
	closeErr := out.Close()
	if copyErr != nil {
		return classifyStreamErr(fmt.Errorf("write %s: %w", dest, copyErr))
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", dest, closeErr)
	}
	return nil
}

// memberPath joins a tar member name onto the extraction root, rejecting
// absolute names and traversal outside the root.
func memberPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("tar member %q escapes extraction root", name)
	}
	return filepath.Join(root, clean), nil
}

// classifyStreamErr tags stream-level damage as ErrTruncated so callers can
// tell a short or corrupt archive from a filesystem failure.
func classifyStreamErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}
