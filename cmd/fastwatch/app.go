package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/config"
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/domain/stats"
	"github.com/rpggio/fastwatch/internal/sqlite"
)

// app holds the wired services shared by every command.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	clock  clock.Clock
	userID string

	db        *sqlite.DB
	fastRepo  *sqlite.FastRepository
	keys      *sqlite.APIKeyRepository
	protocols *protocol.Registry
	activity  *activity.Service
	fasts     *fast.Service
	tracker   *fast.Tracker
	stats     *stats.Service

	logFile io.Closer
}

// openApp loads config and wires storage and services. logOutput picks the
// log destination and may adjust cfg first.
func openApp(opts *rootOptions, logOutput func(cfg *config.Config) io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logWriter := logOutput(&cfg)

	a := &app{cfg: cfg, clock: clock.System{}}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			a.logFile = file
			logWriter = fileWriter
		}
	}
	a.logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	a.userID = cfg.User.Default
	if opts.user != "" {
		a.userID = opts.user
	}

	loc, err := time.LoadLocation(cfg.User.Timezone)
	if err != nil {
		a.closeLog()
		return nil, fmt.Errorf("config error: timezone %q: %w", cfg.User.Timezone, err)
	}

	a.protocols = protocol.NewRegistry()
	if cfg.Protocols.Path != "" {
		extra, err := protocol.LoadFile(cfg.Protocols.Path)
		if err != nil {
			a.closeLog()
			return nil, fmt.Errorf("load protocols: %w", err)
		}
		a.protocols.Replace(extra)
	}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		a.closeLog()
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	a.db, err = sqlite.New(cfg.DB.Path)
	if err != nil {
		a.closeLog()
		return nil, err
	}
	if err := a.db.RunMigrations(); err != nil {
		a.db.Close()
		a.closeLog()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a.fastRepo = sqlite.NewFastRepository(a.db, a.clock)
	a.keys = sqlite.NewAPIKeyRepository(a.db)
	a.activity = activity.NewService(sqlite.NewActivityRepository(a.db), a.logger)
	a.fasts = fast.NewService(a.fastRepo, a.protocols, a.clock, a.activity, a.logger)
	a.tracker = fast.NewTracker(a.fasts, a.logger)
	a.stats = stats.NewService(a.fastRepo, sqlite.NewLeaderboardRepository(a.db), a.protocols, a.clock, loc, a.logger)
	return a, nil
}

// watchProtocols hot-reloads the protocol file until ctx ends.
func (a *app) watchProtocols(ctx context.Context) {
	if a.cfg.Protocols.Path == "" {
		return
	}
	go func() {
		if err := protocol.Watch(ctx, a.cfg.Protocols.Path, a.protocols, a.logger); err != nil {
			a.logger.Warn("protocol watch stopped", "error", err)
		}
	}()
}

// ensureState waits for the reconciled state of the current user.
func (a *app) ensureState(ctx context.Context) (fast.State, error) {
	return a.tracker.Ensure(ctx, a.userID)
}

func (a *app) Close() error {
	var errs []error
	if a.tracker != nil {
		errs = append(errs, a.tracker.Close())
	}
	if a.fastRepo != nil {
		a.fastRepo.Close()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	a.closeLog()
	return errors.Join(errs...)
}

func (a *app) closeLog() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
