package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"
	"github.com/m3rciful/ytmp3bot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/ytmp3bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids. An update that fans
// out into several routed branches passes this middleware once per
// branch; only the first pass emits the receipt line.
type seenUpdates struct {
	mu   sync.Mutex
	ids  map[int]time.Time
	keep time.Duration
}

func (s *seenUpdates) firstSight(id int) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for old, at := range s.ids {
		if now.Sub(at) > s.keep {
			delete(s.ids, old)
		}
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = now
	return true
}

var seen = &seenUpdates{ids: make(map[int]time.Time), keep: 10 * time.Second}

// LoggerMiddleware assigns the request id, caches the derived context on
// the telebot context and emits a sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()

		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if from := c.Sender(); from != nil {
			userID = from.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && seen.firstSight(upd.ID) {
			logReceipt(ctx, c)
		}
		return next(c)
	}
}

func logReceipt(ctx context.Context, c tele.Context) {
	attrs := []slog.Attr{slog.String("status", "ok")}

	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if from := c.Sender(); from != nil {
		if from.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(from.Username, 64)))
		}
		if from.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", from.LanguageCode))
		}
	}

	if cb := c.Update().Callback; cb != nil {
		key, payload := callbacks.Split(cb)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", key))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 128)))
		}
	} else if text := c.Text(); text != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
	}

	logger.Debug(ctx, "tg", "update.received", attrs...)
}
