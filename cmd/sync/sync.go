package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/metrics"
	"github.com/sidkik/foldersync/pkg/schedule"
	"github.com/sidkik/foldersync/pkg/sync"
)

// Mocked for unit testing.
var (
	fs                  afero.Fs  = afero.NewOsFs()
	stderr              io.Writer = os.Stderr
	getWorkingDirectory           = os.Getwd
	newClock                      = clockwork.NewRealClock
)

type options struct {
	once           bool
	dryRun         bool
	configPath     string
	metricsAddress string
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "sync SOURCE REPLICA INTERVAL LOG_FILE",
		Short: "Keep a replica folder identical to a source folder",
		Long: "Mirror SOURCE into REPLICA every INTERVAL seconds.\n\n" +
			"Files missing from the replica or with a different modification " +
			"time are copied from the source. Anything in the replica that " +
			"isn't in the source is removed. Every change is logged to stderr " +
			"and appended to LOG_FILE.\n\n" +
			"The arguments can instead be read from a YAML file with --config.",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := resolveConfig(opts, args)
			if err != nil {
				var configErr errors.ConfigurationError
				if errors.As(err, &configErr) {
					fmt.Fprint(stderr, cmd.UsageString())
				}
				util.HandleFatalError(err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := run(ctx, cfg, opts.once); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false,
		"Run a single pass and exit. Exits non-zero if any operation failed.")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"Log the changes that would be made without touching the replica.")
	cmd.Flags().StringVar(&opts.configPath, "config", "",
		"Read the source, replica, interval and log file from a YAML file "+
			"instead of the arguments.")
	cmd.Flags().StringVar(&opts.metricsAddress, "metrics-address", "",
		"Serve Prometheus metrics on this address, such as \":9090\".")
	return cmd
}

// resolveConfig builds the sync config from either the positional arguments
// or the config file, and validates it.
func resolveConfig(opts options, args []string) (config.SyncConfig, error) {
	var cfg config.SyncConfig
	if opts.configPath != "" {
		if len(args) != 0 {
			return config.SyncConfig{}, errors.ConfigurationError{
				Err: errors.New("arguments can't be combined with --config")}
		}

		var err error
		cfg, err = config.ParseSyncConfig(opts.configPath)
		if err != nil {
			return config.SyncConfig{}, errors.WithContext(err, "parse config")
		}
	} else {
		if len(args) != 4 {
			return config.SyncConfig{}, errors.ConfigurationError{Err: fmt.Errorf(
				"expected 4 arguments, got %d", len(args))}
		}

		interval, err := strconv.Atoi(args[2])
		if err != nil {
			return config.SyncConfig{}, errors.ConfigurationError{Err: fmt.Errorf(
				"interval must be a whole number of seconds, got %q", args[2])}
		}

		cfg = config.SyncConfig{
			Source:   args[0],
			Replica:  args[1],
			Interval: interval,
			LogFile:  args[3],
		}

		wd, err := getWorkingDirectory()
		if err != nil {
			return config.SyncConfig{}, errors.WithContext(err, "get working directory")
		}

		if err := cfg.ResolvePaths(wd); err != nil {
			return config.SyncConfig{}, errors.WithContext(err, "resolve paths")
		}
	}

	if opts.dryRun {
		cfg.DryRun = true
	}
	if opts.metricsAddress != "" {
		cfg.MetricsAddress = opts.metricsAddress
	}

	if err := cfg.Validate(); err != nil {
		return config.SyncConfig{}, err
	}

	if err := sync.CheckNesting(cfg.Source, cfg.Replica); err != nil {
		return config.SyncConfig{}, err
	}

	// Anything in the replica that isn't in the source gets pruned, including
	// the log file.
	if cfg.LogFile == cfg.Replica || sync.IsWithin(cfg.Replica, cfg.LogFile) {
		return config.SyncConfig{}, errors.ConfigurationError{
			Err: errors.New("log file is inside the replica directory")}
	}
	return cfg, nil
}

// run synchronizes the folders in `cfg` until ctx is cancelled. If `once` is
// set, it runs a single pass and returns its error instead.
func run(ctx context.Context, cfg config.SyncConfig, once bool) error {
	logger, logFile, err := newLogger(cfg.LogFile)
	if err != nil {
		return errors.WithContext(err, "open log file")
	}
	defer logFile.Close()

	logger.WithFields(logrus.Fields{
		"source":   cfg.Source,
		"replica":  cfg.Replica,
		"interval": cfg.IntervalDuration(),
		"dryRun":   cfg.DryRun,
	}).Info("Folder synchronization started")

	if cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddress, logger); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	syncer := sync.New(fs, logger)
	syncer.DryRun = cfg.DryRun
	runPass := func(ctx context.Context) sync.Result {
		res := syncer.Synchronize(ctx, cfg.Source, cfg.Replica)
		metrics.Observe(res)
		return res
	}

	if once {
		return runPass(ctx).Err()
	}

	schedule.Run(ctx, newClock(), cfg.IntervalDuration(), func(ctx context.Context) {
		runPass(ctx)
	})
	logger.Info("Execution interrupted")
	return nil
}

// newLogger creates a logger that writes to both stderr and the file at
// `path`. The file is appended to so that the history survives restarts.
func newLogger(path string) (*logrus.Logger, afero.File, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, errors.WithContext(err, "create log directory")
	}

	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(stderr, f))
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})
	logger.SetLevel(logrus.GetLevel())
	return logger, f, nil
}
