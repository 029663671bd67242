package processor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrDirectoryNotFound reports a prune target that does not exist. Pipeline
// ordering should make that impossible, so it is surfaced rather than
// silently treated as already pruned.
var ErrDirectoryNotFound = errors.New("prune directory does not exist")

// Processor reduces extracted dump trees to the files worth keeping and
// repackages what remains.
type Processor struct {
	fs     afero.Fs
	keep   map[string]struct{}
	logger *slog.Logger
}

// New builds a processor whose prune step keeps only entries named in keep,
// operating on fs.
func New(fs afero.Fs, keep []string, logger *slog.Logger) *Processor {
	keepSet := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		keepSet[name] = struct{}{}
	}
	return &Processor{fs: fs, keep: keepSet, logger: logger}
}

// Prune deletes every entry of dir whose name is not in the keep list and
// returns the number of entries removed. Directory entries are removed
// recursively. Pruning an already pruned directory removes nothing and is
// not an error; failures on individual entries are joined so one stubborn
// file does not hide the rest.
func (p *Processor) Prune(dir string) (int, error) {
	entries, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", dir, ErrDirectoryNotFound)
		}
		return 0, fmt.Errorf("read prune dir %s: %w", dir, err)
	}

	removed := 0
	var errs error
	for _, entry := range entries {
		if _, keep := p.keep[entry.Name()]; keep {
			continue
		}
		target := filepath.Join(dir, entry.Name())
		if err := p.fs.RemoveAll(target); err != nil {
			errs = errors.Join(errs, fmt.Errorf("remove %s: %w", target, err))
			continue
		}
		p.logger.Debug("Pruned entry.", slog.String("path", target))
		removed++
	}
	return removed, errs
}
