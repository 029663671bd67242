package downloader

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrMalformedFilename reports a filename that does not match the dump
// naming pattern, or one whose captured date fragment is not a real date.
var ErrMalformedFilename = errors.New("filename does not match dump pattern")

// DateLayout is the date format embedded in dump filenames.
const DateLayout = "2006-01-02"

// DateFilter extracts the date embedded in a dump filename. The pattern
// must contain exactly one capture group and that group must hold a
// YYYY-MM-DD date.
type DateFilter struct {
	re *regexp.Regexp
}

// NewDateFilter compiles the filename pattern. Patterns without exactly one
// capture group are rejected up front rather than misbehaving per file.
func NewDateFilter(pattern string) (*DateFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile dump filename pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("dump filename pattern %q must contain exactly one capture group, has %d", pattern, re.NumSubexp())
	}
	return &DateFilter{re: re}, nil
}

// Date returns the date embedded in filename. It never modifies state, so a
// single filter is safe to share across goroutines.
func (f *DateFilter) Date(filename string) (time.Time, error) {
	m := f.re.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, fmt.Errorf("%q: %w", filename, ErrMalformedFilename)
	}
	t, err := time.Parse(DateLayout, m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: captured %q: %w", filename, m[1], ErrMalformedFilename)
	}
	return t, nil
}

// DateRange is an inclusive range at day granularity. Dumps dated exactly
// on Start or End are admitted.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range. Time-of-day and
// location are discarded before comparing.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateToDay(t)
	return !day.Before(truncateToDay(r.Start)) && !day.After(truncateToDay(r.End))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
