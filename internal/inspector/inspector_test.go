package inspector

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghtfetch/internal/downloader"
	"ghtfetch/internal/extractor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFilter(t *testing.T) *downloader.DateFilter {
	t.Helper()
	filter, err := downloader.NewDateFilter(`mongo-dump-(.*).tar.gz`)
	require.NoError(t, err)
	return filter
}

type member struct {
	name string
	body []byte
}

func makeArchive(t *testing.T, members []member) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     m.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(m.body)),
		}))
		_, err := tw.Write(m.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// incompressible returns bytes the gzip layer cannot shrink, so a cut in
// the compressed stream always lands inside member data.
func incompressible(n int) []byte {
	rng := rand.New(rand.NewSource(11))
	data := make([]byte, n)
	rng.Read(data)
	return data
}

func TestScanSummarizesArchives(t *testing.T) {
	first := makeArchive(t, []member{
		{name: "dump/github/issues.bson", body: []byte("issue data")},
		{name: "dump/github/issue_comments.bson", body: []byte("comment data")},
		{name: "dump/github/readme.txt", body: []byte("notes")},
	})
	second := makeArchive(t, []member{
		{name: "dump/github/issues.bson", body: []byte("more issues")},
	})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-02.tar.gz", second, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-01.tar.gz", first, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/backup.tar.gz", first, 0o644))

	insp := New(fs, testLogger())
	summaries, err := insp.Scan(context.Background(), "/data", testFilter(t))
	require.NoError(t, err)
	require.Len(t, summaries, 2, "non-dump names are skipped")

	// Ordered by filename regardless of directory order.
	sum := summaries[0]
	assert.Equal(t, "mongo-dump-2016-01-01.tar.gz", sum.Dump)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), sum.Date)
	assert.Equal(t, 3, sum.Members)
	assert.Equal(t, int64(len("issue data")+len("comment data")+len("notes")), sum.Bytes)
	assert.Equal(t, int64(len(first)), sum.ArchiveSize)
	assert.Equal(t, []string{"issue_comments.bson", "issues.bson"}, sum.Collections)
	assert.False(t, sum.Damaged())

	assert.Equal(t, "mongo-dump-2016-01-02.tar.gz", summaries[1].Dump)
	assert.Equal(t, 1, summaries[1].Members)
}

func TestScanFlagsTruncatedArchive(t *testing.T) {
	good := makeArchive(t, []member{
		{name: "dump/github/issues.bson", body: []byte("fine")},
	})
	bad := makeArchive(t, []member{
		{name: "dump/github/issues.bson", body: incompressible(8_192)},
	})
	bad = bad[:len(bad)-2_000]

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-01.tar.gz", good, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-02.tar.gz", bad, 0o644))

	insp := New(fs, testLogger())
	summaries, err := insp.Scan(context.Background(), "/data", testFilter(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrTruncated)

	// Both archives still get a row; only the damaged one carries the error.
	require.Len(t, summaries, 2)
	assert.False(t, summaries[0].Damaged())
	assert.True(t, summaries[1].Damaged())
	assert.ErrorIs(t, summaries[1].Err, extractor.ErrTruncated)
}

func TestScanNotGzip(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-01.tar.gz", []byte("<html>error page</html>"), 0o644))

	insp := New(fs, testLogger())
	summaries, err := insp.Scan(context.Background(), "/data", testFilter(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrTruncated)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Damaged())
}

func TestScanFlagsEmptyArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/mongo-dump-2016-01-01.tar.gz", nil, 0o644))

	insp := New(fs, testLogger())
	summaries, err := insp.Scan(context.Background(), "/data", testFilter(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrTruncated)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Damaged())
	assert.ErrorIs(t, summaries[0].Err, extractor.ErrTruncated)
	assert.Zero(t, summaries[0].Members)
}

func TestScanEmptyDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))

	insp := New(fs, testLogger())
	summaries, err := insp.Scan(context.Background(), "/data", testFilter(t))
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
