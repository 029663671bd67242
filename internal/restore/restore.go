// Package restore names the inputs a document-store restore needs for each
// completed dump. The pipeline only produces those inputs; actually loading
// them is left to an external tool such as mongorestore.
package restore

import (
	"path/filepath"
	"strings"

	"ghtfetch/internal/downloader"
	"ghtfetch/internal/orchestrator"
)

// IssuesFile is the collection file a restore consumes from each dump.
const IssuesFile = "issues.bson"

// Candidate is everything a restore needs for one completed dump. When the
// pipeline repackaged the dump, BSONPath no longer exists on disk and the
// archive at ArchivePath must be extracted first.
type Candidate struct {
	Dump        string
	Collection  string
	ArchivePath string
	BSONPath    string
}

// CollectionName derives the per-dump collection name from the archive
// filename, one collection per daily dump.
func CollectionName(dump string) string {
	return strings.TrimSuffix(dump, downloader.ArchiveSuffix) + "_issues"
}

// FromResults builds restore candidates from a finished run, one per dump
// that completed or was already complete. pruneSubdir locates the
// collection files inside an extracted tree.
func FromResults(results []orchestrator.Result, pruneSubdir string) []Candidate {
	candidates := []Candidate{}
	for _, res := range results {
		if res.Failed() {
			continue
		}
		candidates = append(candidates, Candidate{
			Dump:        res.Descriptor.Filename,
			Collection:  CollectionName(res.Descriptor.Filename),
			ArchivePath: res.ArchivePath,
			BSONPath:    filepath.Join(res.ExtractDir, pruneSubdir, IssuesFile),
		})
	}
	return candidates
}

// FromDump builds the candidate for a single completed dump using the
// deterministic local layout under targetDir.
func FromDump(dump, targetDir, pruneSubdir string) Candidate {
	base := strings.TrimSuffix(dump, downloader.ArchiveSuffix)
	return Candidate{
		Dump:        dump,
		Collection:  CollectionName(dump),
		ArchivePath: filepath.Join(targetDir, dump),
		BSONPath:    filepath.Join(targetDir, base, pruneSubdir, IssuesFile),
	}
}
