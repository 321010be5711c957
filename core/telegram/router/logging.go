package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"
	tghelpers "github.com/m3rciful/ytmp3bot/core/telegram/helpers"
	"github.com/m3rciful/ytmp3bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary carries the fields of the per-update wrap-up line that vary
// between routed branches. Status and outcome left empty are derived
// from the handler error.
type summary struct {
	handler string
	start   time.Time
	status  string
	outcome string
	extras  []slog.Attr
}

// run executes fn and emits exactly one handler.handled line describing
// what the branch did. The error propagates to telebot untouched.
func (s summary) run(c tele.Context, fn tele.HandlerFunc) error {
	ctx := tghelpers.WithHandler(c, s.handler)
	err := fn(c)
	s.emit(ctx, c, err)
	return err
}

// skip records a branch that matched nothing without running a handler.
func (s summary) skip(c tele.Context) {
	s.status = "skip"
	s.emit(tghelpers.WithHandler(c, s.handler), c, nil)
}

func (s summary) emit(ctx context.Context, c tele.Context, err error) {
	sent, keyboard := middleware.GetCounters(c)

	status, outcome := s.status, s.outcome
	if status == "" {
		status = "ok"
		if err != nil {
			status = "fail"
		}
	}
	if outcome == "" {
		outcome = "ok"
		if err != nil {
			outcome = "fail"
		}
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", sent),
		slog.Bool("kb", keyboard),
		slog.Duration("duration", time.Since(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, s.extras...)

	logger.Emit(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

// routeName flattens a command or callback key into the handler field.
func routeName(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}

// errorCode maps an error to a stable uppercase identifier for log
// aggregation. Errors exposing Code() string win over the type name.
func errorCode(err error) string {
	if err == nil {
		return ""
	}

	type coded interface{ Code() string }
	var c coded
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}

// wrap applies middleware outermost-first, mirroring the order the
// names are written in.
func wrap(h tele.HandlerFunc, chain ...tele.MiddlewareFunc) tele.HandlerFunc {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
