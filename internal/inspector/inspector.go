// Package inspector summarizes dump archives already on disk without
// extracting them, so damaged or unpruned archives show up before a restore
// is attempted against their contents.
package inspector

import (
	"archive/tar"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"ghtfetch/internal/downloader"
	"ghtfetch/internal/extractor"
)

// Summary describes one archive found in the scanned directory.
type Summary struct {
	Path        string
	Dump        string
	Date        time.Time
	Members     int
	Bytes       int64 // uncompressed payload across all members
	ArchiveSize int64 // compressed size on disk
	Collections []string
	Err         error
}

// Damaged reports whether reading the archive failed partway through.
func (s Summary) Damaged() bool { return s.Err != nil }

// Inspector reads archives end to end without writing anything.
type Inspector struct {
	fs     afero.Fs
	logger *slog.Logger
}

func New(fs afero.Fs, logger *slog.Logger) *Inspector {
	return &Inspector{fs: fs, logger: logger}
}

// Scan summarizes every dump archive in dir, ordered by filename. Each
// member body is decompressed and discarded, which checks the full stream
// the same way an extraction would. Archives whose names do not match the
// dump pattern are skipped with a warning. A damaged archive keeps its
// summary row with Err set; the joined damage errors are returned alongside
// the summaries so a caller can print the table and still fail the command.
func (i *Inspector) Scan(ctx context.Context, dir string, filter *downloader.DateFilter) ([]Summary, error) {
	paths, err := afero.Glob(i.fs, filepath.Join(dir, "*"+downloader.ArchiveSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob archives in %s: %w", dir, err)
	}

	summaries := make([]Summary, 0, len(paths))
	var damaged error
	for _, p := range paths {
		name := filepath.Base(p)
		date, err := filter.Date(name)
		if err != nil {
			i.logger.Warn("Skipping archive with unrecognized name.",
				slog.String("file", name),
				"error", err)
			continue
		}

		sum := i.scanArchive(ctx, p)
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		sum.Dump = name
		sum.Date = date
		if sum.Err != nil {
			damaged = errors.Join(damaged, fmt.Errorf("%s: %w", name, sum.Err))
		}
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(a, b int) bool { return summaries[a].Dump < summaries[b].Dump })
	i.logger.Info("Archive scan complete.",
		slog.String("dir", dir),
		slog.Int("archives", len(summaries)),
		slog.Bool("damage_found", damaged != nil))
	return summaries, damaged
}

func (i *Inspector) scanArchive(ctx context.Context, archivePath string) Summary {
	sum := Summary{Path: archivePath}

	info, err := i.fs.Stat(archivePath)
	if err != nil {
		sum.Err = fmt.Errorf("stat archive: %w", err)
		return sum
	}
	sum.ArchiveSize = info.Size()

	f, err := i.fs.Open(archivePath)
	if err != nil {
		sum.Err = fmt.Errorf("open archive: %w", err)
		return sum
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		streamErr := fmt.Errorf("open gzip stream: %w", err)
		if errors.Is(err, io.EOF) {
			sum.Err = fmt.Errorf("%w: %w", extractor.ErrTruncated, streamErr)
		} else {
			sum.Err = classifyStreamErr(streamErr)
		}
		return sum
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			sum.Err = err
			return sum
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			sort.Strings(sum.Collections)
			return sum
		}
		if err != nil {
			sum.Err = classifyStreamErr(fmt.Errorf("read tar header: %w", err))
			return sum
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		n, err := io.Copy(io.Discard, tr)
		sum.Bytes += n
		if err != nil {
			sum.Err = classifyStreamErr(fmt.Errorf("read member %s: %w", hdr.Name, err))
			return sum
		}
		sum.Members++
		if strings.HasSuffix(hdr.Name, ".bson") {
			sum.Collections = append(sum.Collections, path.Base(hdr.Name))
		}
	}
}

// classifyStreamErr tags stream damage with the extraction pipeline's
// truncation sentinel so verify output and pipeline errors share one
// vocabulary.
func classifyStreamErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) {
		return fmt.Errorf("%w: %w", extractor.ErrTruncated, err)
	}
	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) {
		return fmt.Errorf("%w: %w", extractor.ErrTruncated, err)
	}
	return err
}
