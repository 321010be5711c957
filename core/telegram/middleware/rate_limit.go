package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures the per-user limiter.
type RateLimitOptions struct {
	// Interval is the minimum spacing between updates from one user.
	// Zero or negative disables limiting.
	Interval time.Duration

	// Exclude lists update kinds ("callback", "message", "inline_query")
	// that bypass the limiter.
	Exclude map[string]struct{}

	// OnLimited runs for rejected updates. Nil means drop silently.
	OnLimited tele.HandlerFunc
}

type limiter struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
	interval time.Duration
}

func (l *limiter) allow(userID int64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[userID] = now
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Query != nil:
		return "inline_query"
	case upd.Message != nil:
		return "message"
	default:
		return ""
	}
}

// RateLimitMiddleware enforces a minimum interval between updates from
// the same user. Updates without a sender pass through untouched.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := &limiter{lastSeen: make(map[int64]time.Time), interval: opts.Interval}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			from := c.Sender()
			if from == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}
			if lim.allow(from.ID) {
				return next(c)
			}

			attrs := []slog.Attr{
				slog.String("status", "rate_limited"),
				slog.Int64("user_id", from.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.LogAttrs(context.Background(), slog.LevelWarn, "tg.rate_limit", attrs...)

			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
