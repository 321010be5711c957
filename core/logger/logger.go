// Package logger owns the process-wide logging pipeline: structured
// single-line records with a stable key order, correlation ids pulled
// from the context, token redaction, and asynchronous delivery to
// stdout plus optional files. Components log through the package-level
// loggers or the ctx-first helpers below.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/ytmp3bot/core/buildinfo"
	coreconfig "github.com/m3rciful/ytmp3bot/core/config"
)

var (
	setupOnce sync.Once
	closeOnce sync.Once

	levelVar slog.LevelVar

	mainOut *fanWriter
	warnOut *fanWriter
	sinks   []io.Closer

	debugGate = newSampleGate(1, 50)
	traceOn   bool
)

// Component loggers. Until InitLogger replaces them they log through
// the process default handler, so failures during startup still surface.
var (
	// L is the root logger.
	L = slog.Default()
	// TG covers the Telegram transport.
	TG = slog.Default().With("component", "tg")
	// Wire covers handler and command registration.
	Wire = slog.Default().With("component", "tg.wire")
	// DL covers downloader subprocess activity.
	DL = slog.Default().With("component", "dl")
	// DB covers the database connection.
	DB = slog.Default().With("component", "db")
	// Mig covers schema migrations.
	Mig = slog.Default().With("component", "db.migrate")
	// Hist covers the download history journal.
	Hist = slog.Default().With("component", "history")
)

// InitLogger builds the logging pipeline from the logging section of
// the config. Only the first call takes effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	setupOnce.Do(func() { initErr = setup(cfg) })
	return initErr
}

func setup(cfg *coreconfig.Config) error {
	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}

	levelVar.Set(parseLevel(lc.Level))
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		debugGate.Configure(parseSampleSpec(spec))
	}
	traceOn = envTruthy("TRACE") || envTruthy("LOG_TRACE")

	main := []io.Writer{os.Stdout}
	if f := openSink(lc.Dir, lc.BotFile); f != nil {
		main = append(main, f)
		sinks = append(sinks, f)
	}
	mainOut = newFanWriter(main, 0)

	if f := openSink(lc.Dir, lc.ErrorsFile); f != nil {
		warnOut = newFanWriter([]io.Writer{f}, 0)
		sinks = append(sinks, f)
	}

	h := newLineHandler(handlerOptions{
		level:  &levelVar,
		format: parseFormat(lc.Format, lc.Profile),
		order:  parseKeyOrder(lc.KeysOrder),
		stacks: stacksEnabled(lc.Stacks),
		out:    mainOut,
		errOut: warnOut,
	})
	L = slog.New(h)
	slog.SetDefault(L)

	TG = L.With("component", "tg")
	Wire = L.With("component", "tg.wire")
	DL = L.With("component", "dl")
	DB = L.With("component", "db")
	Mig = L.With("component", "db.migrate")
	Hist = L.With("component", "history")

	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", profileName(lc.Profile)),
	)
	return nil
}

// Shutdown flushes and closes every log sink. Later log calls error out
// instead of blocking.
func Shutdown() error {
	var errs []error
	closeOnce.Do(func() {
		for _, w := range []*fanWriter{mainOut, warnOut} {
			if w == nil {
				continue
			}
			if err := w.Close(); err != nil && !errors.Is(err, errWriterClosed) {
				errs = append(errs, err)
			}
		}
		for _, c := range sinks {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// openSink opens dir/name for append. Problems are reported through the
// stdlib logger since the pipeline is not up yet, and the sink is
// simply skipped.
func openSink(dir, name string) *os.File {
	dir = strings.TrimSpace(dir)
	name = strings.TrimSpace(name)
	if dir == "" || name == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: create %s: %v", dir, err)
		return nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open %s: %v", path, err)
		return nil
	}
	return f
}

func parseFormat(format, profile string) lineFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "kv", "text", "pretty":
		return lineKV
	case "json":
		return lineJSON
	}
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "debug", "dev":
		return lineKV
	}
	return lineJSON
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			order = append(order, p)
		}
	}
	return order
}

// stacksEnabled decides whether panic stack traces reach the sinks.
// Stacks default to on; "off" trims them to keep lines short.
func stacksEnabled(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "off", "false", "0", "no":
		return false
	}
	return true
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func profileName(p string) string {
	if p = strings.TrimSpace(p); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

func envTruthy(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Component returns a logger scoped to the named component.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// Emit writes one event through the given logger, falling back to the
// context logger and then the root. A nil pipeline drops the record.
func Emit(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	logg.LogAttrs(ctx, level, event, attrs...)
}

// Debug logs a debug event for the named component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Emit(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info event for the named component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Emit(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warning for the named component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Emit(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error for the named component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Emit(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug gates high-volume debug details. TRACE=1 or
// LOG_TRACE=1 in the environment forces everything through.
func ShouldSampleDebug() bool {
	return traceOn || debugGate.Allow()
}
