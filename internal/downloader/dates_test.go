package downloader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDateFilterRejectsBadPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{name: "default pattern", pattern: `mongo-dump-(.*).tar.gz`, wantErr: false},
		{name: "no capture group", pattern: `mongo-dump-.*.tar.gz`, wantErr: true},
		{name: "two capture groups", pattern: `(mongo)-dump-(.*).tar.gz`, wantErr: true},
		{name: "invalid regexp", pattern: `mongo-dump-(`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDateFilter(tc.pattern)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDateFilterDate(t *testing.T) {
	filter, err := NewDateFilter(`mongo-dump-(.*).tar.gz`)
	require.NoError(t, err)

	t.Run("extracts embedded date", func(t *testing.T) {
		got, err := filter.Date("mongo-dump-2016-03-15.tar.gz")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2016, 3, 15, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("non matching filename", func(t *testing.T) {
		_, err := filter.Date("readme.html")
		assert.ErrorIs(t, err, ErrMalformedFilename)
	})

	t.Run("captured fragment is not a date", func(t *testing.T) {
		_, err := filter.Date("mongo-dump-latest.tar.gz")
		assert.ErrorIs(t, err, ErrMalformedFilename)
	})
}

func TestDateRangeContains(t *testing.T) {
	rng := DateRange{
		Start: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2016, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{name: "before start", date: time.Date(2015, 12, 31, 0, 0, 0, 0, time.UTC), want: false},
		{name: "on start boundary", date: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "inside", date: time.Date(2016, 1, 15, 0, 0, 0, 0, time.UTC), want: true},
		{name: "on end boundary", date: time.Date(2016, 1, 31, 0, 0, 0, 0, time.UTC), want: true},
		{name: "after end", date: time.Date(2016, 2, 1, 0, 0, 0, 0, time.UTC), want: false},
		{name: "end boundary with time of day", date: time.Date(2016, 1, 31, 23, 59, 59, 0, time.UTC), want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rng.Contains(tc.date))
		})
	}
}

func TestDescriptorBasename(t *testing.T) {
	d := Descriptor{Filename: "mongo-dump-2016-03-15.tar.gz"}
	assert.Equal(t, "mongo-dump-2016-03-15", d.Basename())
}
