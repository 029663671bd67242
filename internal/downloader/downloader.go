package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/afero"

	"ghtfetch/internal/util"
)

// ErrRangeUnsupported reports a host that ignored a byte-range request and
// replayed the whole resource. Appending a full body to an existing partial
// file would corrupt it, so resumption fails before writing anything.
var ErrRangeUnsupported = errors.New("remote host does not support byte ranges")

const userAgent = "ghtfetch/0.3 (Go-client)"

// DefaultChunkSize is the write granularity for streamed archive bytes.
// Progress is reported once per chunk written.
const DefaultChunkSize = 1024

// ProgressFunc receives the total bytes present locally after each chunk is
// written, alongside the full remote size.
type ProgressFunc func(written, total int64)

// State describes one download at the moment the transfer decision is made:
// where the local file lives, how much of it already exists, and how large
// the remote resource is.
type State struct {
	Path   string
	Offset int64
	Total  int64
}

// Downloader fetches remote archives into local files, resuming from
// whatever partial bytes a previous attempt left behind. Safe for
// concurrent use as long as no two calls share a destination path.
type Downloader struct {
	// ChunkSize overrides the transfer chunk size when positive.
	ChunkSize int

	fs     afero.Fs
	head   *http.Client
	stream *http.Client
	logger *slog.Logger
}

func New(fs afero.Fs, logger *slog.Logger) *Downloader {
	return &Downloader{
		ChunkSize: DefaultChunkSize,
		fs:        fs,
		head:      util.DefaultHTTPClient(),
		stream:    util.StreamHTTPClient(),
		logger:    logger,
	}
}

// Fetch makes dest byte-identical to the resource at rawURL. Bytes already
// on disk are kept and only the remainder is requested; a file that already
// matches the remote size is accepted without issuing a GET at all. On
// error the partial file is left in place as the resume point for the next
// call. progress may be nil.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string, progress ProgressFunc) (State, error) {
	total, err := d.remoteSize(ctx, rawURL)
	if err != nil {
		return State{}, err
	}

	offset, err := d.localSize(dest)
	if err != nil {
		return State{}, err
	}

	st := State{Path: dest, Offset: offset, Total: total}
	log := d.logger.With(
		slog.String("url", rawURL),
		slog.Int64("offset", offset),
		slog.Int64("total", total),
	)

	switch {
	case offset == total:
		log.Debug("Local file already complete, nothing to transfer.")
		if progress != nil {
			progress(total, total)
		}
		return st, nil
	case offset > total:
		return st, fmt.Errorf("local file %s has %d bytes but remote resource has %d; remove it to download fresh", dest, offset, total)
	case offset > 0:
		log.Info("Resuming partial download.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return st, fmt.Errorf("create download request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.stream.Do(req)
	if err != nil {
		return st, fmt.Errorf("download GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusOK:
		return st, fmt.Errorf("resume %s from offset %d: %w", rawURL, offset, ErrRangeUnsupported)
	case offset > 0 && resp.StatusCode != http.StatusPartialContent:
		return st, fmt.Errorf("resume %s: unexpected status %s", rawURL, resp.Status)
	case offset == 0 && resp.StatusCode != http.StatusOK:
		return st, fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	written, err := d.appendBody(ctx, dest, resp.Body, offset, total, progress)
	st.Offset = offset + written
	if err != nil {
		// Whatever landed on disk is still a valid resume point.
		return st, err
	}
	if st.Offset != total {
		return st, fmt.Errorf("download %s: stream ended at %d of %d bytes", rawURL, st.Offset, total)
	}

	log.Debug("Download complete.", slog.Int64("written", written))
	return st, nil
}

// remoteSize issues a HEAD request and returns the declared content length.
func (d *Downloader) remoteSize(ctx context.Context, rawURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create HEAD request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.head.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", rawURL, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HEAD %s: bad status %s", rawURL, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("HEAD %s: host did not report a content length", rawURL)
	}
	return resp.ContentLength, nil
}

// localSize returns the byte count already present at dest, zero if the
// file does not exist yet.
func (d *Downloader) localSize(dest string) (int64, error) {
	info, err := d.fs.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", dest, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("download destination %s is a directory", dest)
	}
	return info.Size(), nil
}

// appendBody streams the response body onto the end of dest in fixed-size
// chunks, invoking progress after each chunk. Returns the bytes appended,
// which remain on disk whether or not an error is returned.
func (d *Downloader) appendBody(ctx context.Context, dest string, body io.Reader, offset, total int64, progress ProgressFunc) (int64, error) {
	out, err := d.fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s for append: %w", dest, err)
	}

	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	buf := make([]byte, chunk)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return written, err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return written, fmt.Errorf("append to %s: %w", dest, writeErr)
			}
			written += int64(n)
			if progress != nil {
				progress(offset+written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return written, fmt.Errorf("read download stream: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", dest, err)
	}
	return written, nil
}
