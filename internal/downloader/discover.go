package downloader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"ghtfetch/internal/util"
)

// ArchiveSuffix identifies dump archive links on the listing page.
const ArchiveSuffix = ".tar.gz"

// Descriptor identifies one remotely hosted dump archive. Descriptors are
// immutable once discovery produces them; the filename is the unique key
// for local paths and state records.
type Descriptor struct {
	URL      string
	Filename string
	Date     time.Time
}

// Basename is the archive filename without its extension. Local working
// directories are named after it.
func (d Descriptor) Basename() string {
	return strings.TrimSuffix(d.Filename, ArchiveSuffix)
}

// Discover fetches the listing page at listURL and returns a descriptor for
// every archive link whose embedded date falls within rng, ordered by
// filename. Relative hrefs are resolved against the listing URL. A listing
// with no admitted links yields an empty slice and no error; failing to
// fetch or parse the listing itself is fatal, since without it there is no
// work to schedule.
func Discover(ctx context.Context, client *http.Client, listURL string, filter *DateFilter, rng DateRange, logger *slog.Logger) ([]Descriptor, error) {
	base, err := url.Parse(listURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url %s: %w", listURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create listing request for %s: %w", listURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	body, err := util.FetchPage(client, req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", listURL, err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		// The tolerant parser accepts almost anything, so failing here means
		// the response was not text at all.
		return nil, fmt.Errorf("parse listing %s: %w", listURL, err)
	}

	links := util.ParseLinks(root, ArchiveSuffix)
	logger.Debug("Listing parsed.", slog.String("url", listURL), slog.Int("links", len(links)))

	seen := make(map[string]bool, len(links))
	descriptors := []Descriptor{}
	for _, link := range links {
		ref, err := base.Parse(link)
		if err != nil {
			logger.Warn("Skipping unresolvable link.", slog.String("link", link), "error", err)
			continue
		}
		filename := path.Base(ref.Path)
		if seen[filename] {
			continue
		}

		date, err := filter.Date(filename)
		if err != nil {
			logger.Warn("Skipping link with malformed filename.", slog.String("filename", filename), "error", err)
			continue
		}
		if !rng.Contains(date) {
			logger.Debug("Skipping dump outside date range.", slog.String("filename", filename), slog.Time("date", date))
			continue
		}

		seen[filename] = true
		descriptors = append(descriptors, Descriptor{
			URL:      ref.String(),
			Filename: filename,
			Date:     date,
		})
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Filename < descriptors[j].Filename
	})

	logger.Info("Dump discovery complete.",
		slog.Int("links_found", len(links)),
		slog.Int("dumps_in_range", len(descriptors)))
	return descriptors, nil
}
