package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ctxKey namespaces the values this package stores in a context.
type ctxKey int

const (
	keyLogger ctxKey = iota
	keyRID
	keyUpdateID
	keyUserID
	keyChatID
	keyHandler
	keyTask
)

// WithLogger stores a logger in the context for downstream layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx, or the package default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(keyLogger).(*slog.Logger); ok {
		return log
	}
	return L
}

// WithRID attaches the request correlation id to the context.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, keyRID, rid)
}

// RIDFrom returns the correlation id stored in ctx, if any.
func RIDFrom(ctx context.Context) string {
	return stringFrom(ctx, keyRID)
}

// WithUpdateMeta records the identifiers of the Telegram update being
// handled so every log line written underneath carries them.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, keyUpdateID, updateID)
	ctx = context.WithValue(ctx, keyUserID, userID)
	return context.WithValue(ctx, keyChatID, chatID)
}

// UpdateIDFrom returns the Telegram update id stored in ctx.
func UpdateIDFrom(ctx context.Context) int {
	return int(int64From(ctx, keyUpdateID))
}

// UserIDFrom returns the Telegram user id stored in ctx.
func UserIDFrom(ctx context.Context) int64 {
	return int64From(ctx, keyUserID)
}

// ChatIDFrom returns the chat id stored in ctx.
func ChatIDFrom(ctx context.Context) int64 {
	return int64From(ctx, keyChatID)
}

// WithHandler names the handler owning the rest of this context's work.
func WithHandler(ctx context.Context, handler string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, keyHandler, handler)
}

// HandlerFrom returns the handler name stored in ctx, if any.
func HandlerFrom(ctx context.Context) string {
	return stringFrom(ctx, keyHandler)
}

// WithTask attaches a download task id so the whole lifetime of the
// subprocess logs under one identifier.
func WithTask(ctx context.Context, task string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if task == "" {
		return ctx
	}
	return context.WithValue(ctx, keyTask, task)
}

// TaskFrom returns the download task id stored in ctx, if any.
func TaskFrom(ctx context.Context) string {
	return stringFrom(ctx, keyTask)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func int64From(ctx context.Context, key ctxKey) int64 {
	if ctx == nil {
		return 0
	}
	switch v := ctx.Value(key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// BuildRID composes the correlation id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID shortens a colon-separated RID into dot-joined base36
// segments. Inputs that do not look like a RID come back unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return ""
	}
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	out := make([]string, 0, 3)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return rid
		}
		out = append(out, strings.ToLower(strconv.FormatInt(n, 36)))
	}
	return strings.Join(out, ".")
}
