package processor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghtfetch/internal/extractor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var keepIssues = []string{"issues.bson", "issue_comments.bson"}

func writeTree(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, root+"/"+name, []byte(content), 0o644))
	}
}

func TestPruneKeepsOnlyAllowListed(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/data/dump/dump/github", map[string]string{
		"issues.bson":           "issues",
		"issue_comments.bson":   "comments",
		"commits.bson":          "commits",
		"pull_requests.bson":    "prs",
		"metadata/restore.json": "meta",
	})

	p := New(fs, keepIssues, testLogger())
	removed, err := p.Prune("/data/dump/dump/github")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for _, name := range keepIssues {
		exists, err := afero.Exists(fs, "/data/dump/dump/github/"+name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
	for _, name := range []string{"commits.bson", "pull_requests.bson", "metadata"} {
		exists, err := afero.Exists(fs, "/data/dump/dump/github/"+name)
		require.NoError(t, err)
		assert.False(t, exists, name)
	}
}

func TestPruneIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/data/dump/dump/github", map[string]string{
		"issues.bson":  "issues",
		"commits.bson": "commits",
	})

	p := New(fs, keepIssues, testLogger())
	removed, err := p.Prune("/data/dump/dump/github")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = p.Prune("/data/dump/dump/github")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	got, err := afero.ReadFile(fs, "/data/dump/dump/github/issues.bson")
	require.NoError(t, err)
	assert.Equal(t, []byte("issues"), got)
}

func TestPruneMissingDirectory(t *testing.T) {
	p := New(afero.NewMemMapFs(), keepIssues, testLogger())
	_, err := p.Prune("/data/dump/dump/github")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestRepackRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"dump/github/issues.bson":         "issue data",
		"dump/github/issue_comments.bson": "comment data",
	}
	writeTree(t, fs, "/data/mongo-dump-2016-01-01", files)

	// A leftover staging file from an interrupted run is overwritten, then
	// renamed away.
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-01.tar.gz"+stagingSuffix, []byte("stale"), 0o644))

	p := New(fs, keepIssues, testLogger())
	packed, err := p.Repack(context.Background(), "/data/mongo-dump-2016-01-01", "/data/mongo-dump-2016-01-01.tar.gz", false)
	require.NoError(t, err)
	assert.Equal(t, 2, packed)

	staleExists, err := afero.Exists(fs, "/data/mongo-dump-2016-01-01.tar.gz"+stagingSuffix)
	require.NoError(t, err)
	assert.False(t, staleExists)

	// Extracting the repackaged archive into a fresh directory reproduces
	// the tree exactly.
	ex := extractor.New(fs, testLogger())
	extracted, err := ex.Extract(context.Background(), "/data/mongo-dump-2016-01-01.tar.gz", "/data/roundtrip")
	require.NoError(t, err)
	assert.Equal(t, 2, extracted)

	for name, content := range files {
		got, err := afero.ReadFile(fs, "/data/roundtrip/"+name)
		require.NoError(t, err)
		assert.Equal(t, []byte(content), got, name)
	}
}

func TestRepackRemovesSourceTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/data/mongo-dump-2016-01-01", map[string]string{
		"dump/github/issues.bson": "issue data",
	})

	p := New(fs, keepIssues, testLogger())
	_, err := p.Repack(context.Background(), "/data/mongo-dump-2016-01-01", "/data/mongo-dump-2016-01-01.tar.gz", true)
	require.NoError(t, err)

	treeExists, err := afero.DirExists(fs, "/data/mongo-dump-2016-01-01")
	require.NoError(t, err)
	assert.False(t, treeExists)

	archiveExists, err := afero.Exists(fs, "/data/mongo-dump-2016-01-01.tar.gz")
	require.NoError(t, err)
	assert.True(t, archiveExists)
}

// openFailFs fails Open for one exact path, standing in for a file that
// cannot be read partway through a repack.
type openFailFs struct {
	afero.Fs
	fail string
}

func (f *openFailFs) Open(name string) (afero.File, error) {
	if name == f.fail {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func TestRepackFailureKeepsExistingArchive(t *testing.T) {
	base := afero.NewMemMapFs()
	writeTree(t, base, "/data/mongo-dump-2016-01-01", map[string]string{
		"dump/github/issues.bson":         "issue data",
		"dump/github/issue_comments.bson": "comment data",
	})
	previous := []byte("previously repacked archive")
	require.NoError(t, afero.WriteFile(base, "/data/mongo-dump-2016-01-01.tar.gz", previous, 0o644))

	fs := &openFailFs{Fs: base, fail: "/data/mongo-dump-2016-01-01/dump/github/issues.bson"}
	p := New(fs, keepIssues, testLogger())
	_, err := p.Repack(context.Background(), "/data/mongo-dump-2016-01-01", "/data/mongo-dump-2016-01-01.tar.gz", true)
	require.Error(t, err)

	// The archive path still holds the previous bytes, no staging residue
	// remains, and the source tree survives for the retry.
	got, err := afero.ReadFile(base, "/data/mongo-dump-2016-01-01.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, previous, got)

	staleExists, err := afero.Exists(base, "/data/mongo-dump-2016-01-01.tar.gz"+stagingSuffix)
	require.NoError(t, err)
	assert.False(t, staleExists)

	treeExists, err := afero.DirExists(base, "/data/mongo-dump-2016-01-01")
	require.NoError(t, err)
	assert.True(t, treeExists)
}

func TestRepackMissingDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := New(fs, keepIssues, testLogger())
	_, err := p.Repack(context.Background(), "/data/nope", "/data/nope.tar.gz", false)
	assert.Error(t, err)

	// Neither a half-written archive nor staging residue is left behind.
	for _, path := range []string{"/data/nope.tar.gz", "/data/nope.tar.gz" + stagingSuffix} {
		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}
}
