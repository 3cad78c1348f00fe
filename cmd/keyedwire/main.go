package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tarungka/keyedwire/checkpoint"
	"github.com/tarungka/keyedwire/engine"
	"github.com/tarungka/keyedwire/internal/config"
	"github.com/tarungka/keyedwire/internal/logger"
	"github.com/tarungka/keyedwire/internal/partitioner"
	"github.com/tarungka/keyedwire/internal/tracker"
	"github.com/tarungka/keyedwire/server"
	"github.com/tarungka/keyedwire/sinks"
	"github.com/tarungka/keyedwire/sources"
	"github.com/tarungka/keyedwire/state"
)

var buildString = "unknown"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		logger.AdHocLogger.Error().Err(err).Msg("keyedwire failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(stdout, config.Usage())
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.Version {
		fmt.Fprintln(stdout, buildString)
		return nil
	}

	var logFile *os.File
	if cfg.Log.File != "" {
		logFile, err = os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		logger.Configure(cfg.Log.Level, cfg.Log.Dev, logFile)
	} else {
		logger.Configure(cfg.Log.Level, cfg.Log.Dev, nil)
	}
	log := logger.GetLogger("main")
	log.Info().Str("build", buildString).Msg("starting keyedwire")

	store, err := openStore(cfg.State)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithOwnedStore(),
		engine.WithPartitioner(partitioner.New(
			partitioner.WithLanes(cfg.Engine.Lanes),
			partitioner.WithBufferSize(cfg.Engine.BufferSize),
		)),
		engine.WithRateLimit(cfg.Engine.RateLimit),
	}

	if cfg.Checkpoint.Path != "" {
		compression, err := checkpoint.ParseCompression(cfg.Checkpoint.Compression)
		if err != nil {
			store.Close()
			return err
		}
		backend, err := checkpoint.OpenBolt(cfg.Checkpoint.Path, checkpoint.WithCompression(compression))
		if err != nil {
			store.Close()
			return err
		}
		manager := checkpoint.NewManager(backend)
		defer manager.Close()

		cp, err := manager.RestoreLatest(store)
		switch {
		case errors.Is(err, checkpoint.ErrNoCheckpoint):
			log.Info().Msg("no checkpoint found, starting from the beginning")
		case err != nil:
			store.Close()
			return fmt.Errorf("restore checkpoint: %w", err)
		default:
			log.Info().
				Int64("checkpoint", cp.ID).
				Uint64("offset", cp.Offset).
				Time("created_at", cp.Time()).
				Msg("resuming from checkpoint")
			opts = append(opts, engine.WithStartOffset(cp.Offset))
		}
		opts = append(opts, engine.WithCheckpoints(manager, cfg.Checkpoint.Every))
	}

	source, err := sources.New(cfg.Source)
	if err != nil {
		store.Close()
		return err
	}
	sink, err := sinks.New(cfg.Sink, stdout)
	if err != nil {
		source.Close()
		store.Close()
		return err
	}
	fn, err := tracker.New(cfg.Tracker, logger.GetLogger("tracker"))
	if err != nil {
		source.Close()
		sink.Close()
		store.Close()
		return err
	}

	e := engine.New(source, fn, store, sink, opts...)

	if cfg.HTTP.Addr != "" {
		srv := server.New(cfg.HTTP.Addr, e)
		if err := srv.Start(); err != nil {
			e.Stop()
			source.Close()
			return fmt.Errorf("start web server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("web server shutdown")
			}
		}()
	}

	fmt.Fprintln(stdout, "=== STATEFUL STREAM PROCESSOR ===")
	fmt.Fprintf(stdout, "Alert after %d consecutive readings above %v\n\n", cfg.Tracker.AlertThreshold, cfg.Tracker.HighSpeed)
	printInput(stdout, cfg)

	runErr := e.Run(ctx)
	printSummary(stdout, e.Stats())

	if errors.Is(runErr, context.Canceled) {
		log.Info().Msg("interrupted, state checkpointed")
		return nil
	}
	return runErr
}

func openStore(cfg config.StateConfig) (state.Store, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		return state.OpenBadger(state.BadgerConfig{Dir: cfg.Dir})
	default:
		return state.NewMemoryStore(), nil
	}
}

// printInput lists the readings ahead of the processed records when both end
// up on stdout. Only the sample dataset is known before the run starts.
func printInput(w io.Writer, cfg *config.Config) {
	if cfg.Sink.Type != "" && cfg.Sink.Type != sinks.TypePrint {
		return
	}
	if cfg.Source.Type == "" || cfg.Source.Type == sources.TypeSample {
		fmt.Fprintln(w, "1. All sensor data:")
		for _, ev := range sources.SampleEvents() {
			fmt.Fprintln(w, ev)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "2. Stateful processing - tracking consecutive high speeds:")
}

func printSummary(w io.Writer, stats engine.Stats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== SUMMARY ===")
	fmt.Fprintf(w, "Status:    %s\n", stats.Status)
	fmt.Fprintf(w, "Events:    %d (%d skipped)\n", stats.EventsIn, stats.EventsSkipped)
	fmt.Fprintf(w, "Records:   %d\n", stats.RecordsOut)
	fmt.Fprintf(w, "Alerts:    %d\n", stats.Alerts)
	if stats.Checkpoints > 0 {
		fmt.Fprintf(w, "Snapshots: %d\n", stats.Checkpoints)
	}
}
