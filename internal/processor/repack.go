package processor

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// stagingSuffix marks a repack that has not been renamed into place yet.
const stagingSuffix = ".repack"

// Repack walks dir recursively and writes every regular file into a new
// gzip-compressed tar at archivePath, with member names relative to dir.
// Extracting the result into an empty directory reproduces the tree. The
// archive is written to a staging path beside archivePath and renamed into
// place only once fully flushed, so archivePath always holds either its
// previous content or a complete repack, never a partial one. With
// removeSource set, the walked tree is deleted once the archive is in
// place. Returns the number of files packed.
func (p *Processor) Repack(ctx context.Context, dir, archivePath string, removeSource bool) (int, error) {
	staging := archivePath + stagingSuffix
	out, err := p.fs.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create staging archive %s: %w", staging, err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	files := 0
	walkErr := afero.Walk(p.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relativize %s against %s: %w", path, dir, err)
		}
		if err := p.addFile(tw, path, rel, info); err != nil {
			return err
		}
		files++
		return nil
	})

	// Close in member order so the gzip trailer lands after the tar footer.
	closeErr := errors.Join(tw.Close(), gz.Close(), out.Close())
	if walkErr != nil || closeErr != nil {
		_ = p.fs.Remove(staging)
		if walkErr != nil {
			return files, fmt.Errorf("repack %s: %w", dir, walkErr)
		}
		return files, fmt.Errorf("finalize staging archive %s: %w", staging, closeErr)
	}

	if err := p.fs.Rename(staging, archivePath); err != nil {
		_ = p.fs.Remove(staging)
		return files, fmt.Errorf("move staging archive over %s: %w", archivePath, err)
	}

	p.logger.Debug("Repack complete.",
		slog.String("archive", archivePath),
		slog.Int("files", files))

	if removeSource {
		if err := p.fs.RemoveAll(dir); err != nil {
			return files, fmt.Errorf("remove repacked tree %s: %w", dir, err)
		}
	}
	return files, nil
}

func (p *Processor) addFile(tw *tar.Writer, path, rel string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("build tar header for %s: %w", path, err)
	}
	hdr.Name = filepath.ToSlash(rel)

	f, err := p.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %s: %w", rel, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("write tar member %s: %w", rel, err)
	}
	return nil
}
