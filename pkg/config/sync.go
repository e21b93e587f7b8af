package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/foldersync/pkg/errors"
)

// SyncConfig describes a folder pair and how often it should be
// synchronized.
type SyncConfig struct {
	Version string `json:"version,omitempty"`
	Source  string `json:"source"`  // Required.
	Replica string `json:"replica"` // Required.

	// Interval is the number of seconds to wait after a pass finishes before
	// starting the next one. Required.
	Interval int    `json:"interval"`
	LogFile  string `json:"logFile"` // Required.

	DryRun         bool   `json:"dryRun,omitempty"`
	MetricsAddress string `json:"metricsAddress,omitempty"`

	// Only populated and consumed by foldersync. Never set by user.
	path string
}

// GetPath returns the filepath that the config was parsed from. It's empty
// for configs built from command line arguments.
func (c SyncConfig) GetPath() string {
	return c.path
}

func (c SyncConfig) getVersion() string {
	return c.Version
}

// InitialSyncConfigVersion is the first version of the sync config. Config
// files that do not specify a version will default to this version.
const InitialSyncConfigVersion = "v1alpha1"

// SupportedSyncConfigVersion is the sync config version understood by this
// binary.
const SupportedSyncConfigVersion = "v1alpha1"

// ParseSyncConfig parses the sync config at `path`. Relative paths in the
// config are resolved against the directory containing it.
func ParseSyncConfig(path string) (SyncConfig, error) {
	config := SyncConfig{
		path:    path,
		Version: InitialSyncConfigVersion,
	}
	if err := parseConfig(path, &config, SupportedSyncConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return SyncConfig{}, errors.NewFriendlyError(
				"The configuration file %q does not exist.\n"+
					"Either create it, or pass the source, replica, interval "+
					"and log file as arguments.", path)
		}
		return SyncConfig{}, errors.WithContext(err, "parse")
	}
	return config, nil
}

// ResolvePaths expands `~` in the configured paths and makes relative paths
// absolute by joining them onto `relativeTo`. Unset paths are left empty so
// that Validate can report them.
func (c *SyncConfig) ResolvePaths(relativeTo string) error {
	for _, field := range []*string{&c.Source, &c.Replica, &c.LogFile} {
		if *field == "" {
			continue
		}

		expanded, err := homedir.Expand(*field)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("expand %q", *field))
		}

		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(relativeTo, expanded)
		}
		*field = filepath.Clean(expanded)
	}
	return nil
}

// Validate checks that every required field is set to something usable.
func (c SyncConfig) Validate() error {
	required := []struct {
		name, value string
	}{
		{"source", c.Source},
		{"replica", c.Replica},
		{"logFile", c.LogFile},
	}
	for _, field := range required {
		if field.value == "" {
			return errors.ConfigurationError{Err: errors.MissingFieldError{Field: field.name}}
		}
	}

	if c.Interval <= 0 {
		return errors.ConfigurationError{Err: fmt.Errorf(
			"interval must be a positive number of seconds, got %d", c.Interval)}
	}
	return nil
}

// IntervalDuration returns the configured interval as a time.Duration.
func (c SyncConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
