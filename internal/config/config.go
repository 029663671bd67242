package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the GHTorrent mongo-daily dump feed. The start date matches
// the first daily dump published on the mirror.
const (
	DefaultListingURL = "http://ghtorrent-downloads.ewi.tudelft.nl/mongo-daily/"
	DefaultPattern    = `mongo-dump-(.*).tar.gz`
	DefaultStartDate  = "2015-12-01"

	DefaultWorkers   = 8
	DefaultChunkSize = 1024
	DefaultDBPath    = "./ghtfetch_state.duckdb"

	// DefaultPruneSubdir is where mongodump places collection files inside
	// an extracted dump tree.
	DefaultPruneSubdir = "dump/github"

	DateLayout = "2006-01-02"
)

// DefaultKeepFiles is the prune allow-list: the two collections the
// downstream restore step consumes.
var DefaultKeepFiles = []string{"issues.bson", "issue_comments.bson"}

// Config holds all application settings.
type Config struct {
	TargetDir    string   `mapstructure:"target_dir"`
	ListingURL   string   `mapstructure:"listing_url"`
	Pattern      string   `mapstructure:"pattern"`
	StartDate    string   `mapstructure:"start_date"`
	EndDate      string   `mapstructure:"end_date"`
	Workers      int      `mapstructure:"workers"`
	ChunkSize    int      `mapstructure:"chunk_size"`
	DBPath       string   `mapstructure:"db_path"`
	PruneSubdir  string   `mapstructure:"prune_subdir"`
	KeepFiles    []string `mapstructure:"keep_files"`
	Repackage    bool     `mapstructure:"repackage"`
	KeepArchives bool     `mapstructure:"keep_archives"`
	Force        bool     `mapstructure:"force"`

	start time.Time
	end   time.Time
}

// Load layers an optional config file and GHTFETCH_* environment variables
// over the defaults. Flag overrides are applied by the caller before
// Validate runs.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("target_dir", "")
	v.SetDefault("listing_url", DefaultListingURL)
	v.SetDefault("pattern", DefaultPattern)
	v.SetDefault("start_date", DefaultStartDate)
	v.SetDefault("end_date", "")
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("prune_subdir", DefaultPruneSubdir)
	v.SetDefault("keep_files", DefaultKeepFiles)
	v.SetDefault("repackage", true)
	v.SetDefault("keep_archives", false)
	v.SetDefault("force", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	v.SetEnvPrefix("GHTFETCH")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and parses the date range. An empty end
// date means today.
func (c *Config) Validate() error {
	if c.TargetDir == "" {
		return fmt.Errorf("target directory is required")
	}
	if c.ListingURL == "" {
		return fmt.Errorf("listing url is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1 byte, got %d", c.ChunkSize)
	}
	if len(c.KeepFiles) == 0 {
		return fmt.Errorf("keep files allow-list must not be empty")
	}
	if c.KeepArchives && c.Repackage {
		return fmt.Errorf("repackaging replaces the downloaded archives; disable it to keep the originals")
	}

	var err error
	c.start, err = time.Parse(DateLayout, c.StartDate)
	if err != nil {
		return fmt.Errorf("parse start date %q: %w", c.StartDate, err)
	}
	if c.EndDate == "" {
		c.EndDate = time.Now().UTC().Format(DateLayout)
	}
	c.end, err = time.Parse(DateLayout, c.EndDate)
	if err != nil {
		return fmt.Errorf("parse end date %q: %w", c.EndDate, err)
	}
	if c.end.Before(c.start) {
		return fmt.Errorf("end date %s is before start date %s", c.EndDate, c.StartDate)
	}
	return nil
}

// Start returns the parsed start date. Only valid after Validate.
func (c *Config) Start() time.Time { return c.start }

// End returns the parsed end date. Only valid after Validate.
func (c *Config) End() time.Time { return c.end }
