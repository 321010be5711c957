package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/ytmp3bot/core/logger"
)

const readyTimeout = 30 * time.Second

// RunMigrations applies every pending up migration from the configured
// migrations directory.
func RunMigrations(cfg Config) error {
	dsn := cfg.url()
	if err := waitUntilReady(cfg.dsn(), readyTimeout); err != nil {
		logger.Mig.Error("db not ready", slog.String("err", err.Error()))
		return err
	}

	dir := strings.TrimSpace(cfg.MigrationsDir)
	if dir == "" {
		dir = "migrations"
	}
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	files := upFiles(dir)
	logger.Mig.Debug("migrations resolved",
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview(files, 6)),
	)

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		logger.Mig.Error("migrate init failed", slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Mig.Error("migration failed",
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	to := from
	if upErr == nil {
		to, _, _ = m.Version()
	}
	applied := between(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.Mig.Debug("applied files",
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", preview(applied, 6)),
		)
	}

	logger.Mig.Info("migrations summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// upFiles lists *.up.sql names in dir, sorted, so logs show what the
// source driver is about to see.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// between returns the files whose numeric prefix lies in (from, to].
func between(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		if v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func preview(names []string, max int) string {
	if len(names) == 0 {
		return ""
	}
	if len(names) > max {
		return strings.Join(names[:max], ",") + ",..."
	}
	return strings.Join(names, ",")
}
