package downloader

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFilter(t *testing.T) *DateFilter {
	t.Helper()
	filter, err := NewDateFilter(`mongo-dump-(.*).tar.gz`)
	require.NoError(t, err)
	return filter
}

func wideRange() DateRange {
	return DateRange{
		Start: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func listingServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverResolvesRelativeLinks(t *testing.T) {
	srv := listingServer(t, `<html><body>
		<a href="mongo-dump-2016-01-02.tar.gz">mongo-dump-2016-01-02.tar.gz</a>
		<a href="mongo-dump-2016-01-01.tar.gz">mongo-dump-2016-01-01.tar.gz</a>
	</body></html>`)

	descs, err := Discover(context.Background(), srv.Client(), srv.URL+"/mongo-daily/", testFilter(t), wideRange(), testLogger())
	require.NoError(t, err)
	require.Len(t, descs, 2)

	// Ordered by filename regardless of page order, with absolute URLs.
	assert.Equal(t, "mongo-dump-2016-01-01.tar.gz", descs[0].Filename)
	assert.Equal(t, srv.URL+"/mongo-daily/mongo-dump-2016-01-01.tar.gz", descs[0].URL)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), descs[0].Date)
	assert.Equal(t, "mongo-dump-2016-01-02.tar.gz", descs[1].Filename)
}

func TestDiscoverEmptyListing(t *testing.T) {
	srv := listingServer(t, `<html><body><p>nothing here yet</p></body></html>`)

	descs, err := Discover(context.Background(), srv.Client(), srv.URL, testFilter(t), wideRange(), testLogger())
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestDiscoverToleratesMalformedHTML(t *testing.T) {
	// Unclosed tags and stray text, as served by real directory indexes.
	srv := listingServer(t, `<html><body><table><tr><td>
		<a href="mongo-dump-2016-02-01.tar.gz">dump
		<a href="notes.txt">notes</a>
		<td>junk</table>`)

	descs, err := Discover(context.Background(), srv.Client(), srv.URL, testFilter(t), wideRange(), testLogger())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "mongo-dump-2016-02-01.tar.gz", descs[0].Filename)
}

func TestDiscoverSkipsMalformedFilenames(t *testing.T) {
	srv := listingServer(t, `<html><body>
		<a href="mongo-dump-2016-02-01.tar.gz">good</a>
		<a href="mongo-dump-latest.tar.gz">bad date</a>
		<a href="backup.tar.gz">no match</a>
	</body></html>`)

	descs, err := Discover(context.Background(), srv.Client(), srv.URL, testFilter(t), wideRange(), testLogger())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "mongo-dump-2016-02-01.tar.gz", descs[0].Filename)
}

func TestDiscoverFiltersByDateRange(t *testing.T) {
	srv := listingServer(t, `<html><body>
		<a href="mongo-dump-2016-01-01.tar.gz">jan</a>
		<a href="mongo-dump-2016-02-01.tar.gz">feb</a>
		<a href="mongo-dump-2016-03-01.tar.gz">mar</a>
	</body></html>`)

	rng := DateRange{
		Start: time.Date(2016, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2016, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	descs, err := Discover(context.Background(), srv.Client(), srv.URL, testFilter(t), rng, testLogger())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "mongo-dump-2016-02-01.tar.gz", descs[0].Filename)
}

func TestDiscoverListingFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := Discover(context.Background(), srv.Client(), srv.URL, testFilter(t), wideRange(), testLogger())
	assert.Error(t, err)
}

func TestDiscoverUnreachableHost(t *testing.T) {
	srv := listingServer(t, "")
	srv.Close()

	_, err := Discover(context.Background(), http.DefaultClient, srv.URL, testFilter(t), wideRange(), testLogger())
	assert.Error(t, err)
}
