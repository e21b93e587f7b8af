package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/foldersync/pkg/errors"
)

func TestParseSyncConfig(t *testing.T) {
	path := "/etc/foldersync/foldersync.yaml"

	homedir.DisableCache = true
	t.Setenv("HOME", "/home/user")

	tests := []struct {
		name      string
		input     []byte
		expConfig SyncConfig
		expError  error
	}{
		{
			name: "EmptyVersion",
			input: mustMarshal(SyncConfig{
				Source:   "/data/source",
				Replica:  "/data/replica",
				Interval: 30,
				LogFile:  "/var/log/foldersync.log",
			}),
			expConfig: SyncConfig{
				Version:  InitialSyncConfigVersion,
				Source:   "/data/source",
				Replica:  "/data/replica",
				Interval: 30,
				LogFile:  "/var/log/foldersync.log",
				path:     path,
			},
		},
		{
			name: "AllFields",
			input: []byte(`
version: v1alpha1
source: /data/source
replica: /data/replica
interval: 5
logFile: /var/log/foldersync.log
dryRun: true
metricsAddress: ":9090"
`),
			expConfig: SyncConfig{
				Version:        SupportedSyncConfigVersion,
				Source:         "/data/source",
				Replica:        "/data/replica",
				Interval:       5,
				LogFile:        "/var/log/foldersync.log",
				DryRun:         true,
				MetricsAddress: ":9090",
				path:           path,
			},
		},
		{
			name: "RelativeAndHomePaths",
			input: mustMarshal(SyncConfig{
				Version:  SupportedSyncConfigVersion,
				Source:   "~/documents",
				Replica:  "backup/../replica",
				Interval: 30,
				LogFile:  "foldersync.log",
			}),
			expConfig: SyncConfig{
				Version:  SupportedSyncConfigVersion,
				Source:   "/home/user/documents",
				Replica:  "/etc/foldersync/replica",
				Interval: 30,
				LogFile:  "/etc/foldersync/foldersync.log",
				path:     path,
			},
		},
		{
			// Missing fields are reported by Validate, not while parsing.
			name:  "MissingFields",
			input: mustMarshal(SyncConfig{Version: SupportedSyncConfigVersion}),
			expConfig: SyncConfig{
				Version: SupportedSyncConfigVersion,
				path:    path,
			},
		},
		{
			name: "IncorrectVersion",
			input: mustMarshal(SyncConfig{
				Version: "incorrect_version",
				Source:  "/data/source",
			}),
			expConfig: SyncConfig{},
			expError: errors.WithContext(incompatibleVersionError{
				path:   path,
				exp:    SupportedSyncConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			name: "ExtraFields",
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedSyncConfigVersion)),
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, path,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
		{
			name: "IncorrectVersionAndExtraFields",
			input: []byte(`
version: incorrect_version
extra: fields
`),
			expError: errors.WithContext(incompatibleVersionError{
				path:   path,
				exp:    SupportedSyncConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
	}

	fs = afero.NewMemMapFs()
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			err := afero.WriteFile(fs, path, test.input, 0644)
			assert.NoError(t, err)
			config, err := ParseSyncConfig(path)
			assert.Equal(t, test.expConfig, config)
			assert.Equal(t, test.expError, err)
		})
	}
}

func TestParseSyncConfigMissingFile(t *testing.T) {
	fs = afero.NewMemMapFs()

	_, err := ParseSyncConfig("/does/not/exist.yaml")
	assert.IsType(t, errors.FriendlyError{}, err)
	assert.Contains(t, err.Error(), `"/does/not/exist.yaml" does not exist`)
}

func TestParseSyncConfigUnexpandablePath(t *testing.T) {
	fs = afero.NewMemMapFs()
	path := "/etc/foldersync/foldersync.yaml"
	input := mustMarshal(SyncConfig{
		Version:  SupportedSyncConfigVersion,
		Source:   "~other/documents",
		Replica:  "/data/replica",
		Interval: 30,
		LogFile:  "/var/log/foldersync.log",
	})
	assert.NoError(t, afero.WriteFile(fs, path, input, 0644))

	config, err := ParseSyncConfig(path)
	assert.Equal(t, SyncConfig{}, config)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), `parse: resolve paths: expand "~other/documents"`)
	}
}

func TestValidate(t *testing.T) {
	valid := SyncConfig{
		Source:   "/source",
		Replica:  "/replica",
		Interval: 1,
		LogFile:  "/foldersync.log",
	}

	tests := []struct {
		name     string
		mutate   func(*SyncConfig)
		expError error
	}{
		{
			name:   "Valid",
			mutate: func(*SyncConfig) {},
		},
		{
			name:     "MissingSource",
			mutate:   func(c *SyncConfig) { c.Source = "" },
			expError: errors.ConfigurationError{Err: errors.MissingFieldError{Field: "source"}},
		},
		{
			name:     "MissingReplica",
			mutate:   func(c *SyncConfig) { c.Replica = "" },
			expError: errors.ConfigurationError{Err: errors.MissingFieldError{Field: "replica"}},
		},
		{
			name:     "MissingLogFile",
			mutate:   func(c *SyncConfig) { c.LogFile = "" },
			expError: errors.ConfigurationError{Err: errors.MissingFieldError{Field: "logFile"}},
		},
		{
			name:   "ZeroInterval",
			mutate: func(c *SyncConfig) { c.Interval = 0 },
			expError: errors.ConfigurationError{Err: fmt.Errorf(
				"interval must be a positive number of seconds, got 0")},
		},
		{
			name:   "NegativeInterval",
			mutate: func(c *SyncConfig) { c.Interval = -5 },
			expError: errors.ConfigurationError{Err: fmt.Errorf(
				"interval must be a positive number of seconds, got -5")},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			config := valid
			test.mutate(&config)
			assert.Equal(t, test.expError, config.Validate())
		})
	}
}

func TestIntervalDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, SyncConfig{Interval: 90}.IntervalDuration())
}

func mustMarshal(cfg interface{}) []byte {
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		panic(fmt.Errorf("bad test input, unable to marshal to yaml: %s", err))
	}
	return yamlBytes
}
