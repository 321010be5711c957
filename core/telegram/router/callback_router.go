package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/ytmp3bot/core/telegram"
	"github.com/m3rciful/ytmp3bot/core/telegram/callbacks"
	"github.com/m3rciful/ytmp3bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises what happens when no handler matches.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute routes raw callback queries through the registry. The
// query is acknowledged up front so the client spinner clears even when
// the handler fails later.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	onCallback := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.Split(cb)

		s := summary{
			handler: "callback." + routeName(key),
			start:   time.Now(),
			extras:  []slog.Attr{slog.String("cb_key", key)},
		}

		_ = c.Respond()

		if h, ok := reg.Callback(key); ok && h != nil {
			return s.run(c, h)
		}

		s.extras = append(s.extras, slog.String("reason", "not_found"))
		fallback := reg.CallbackFallback()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback == nil {
			s.skip(c)
			return nil
		}
		return s.run(c, fallback)
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  wrap(onCallback, middleware.RecoverMiddleware, middleware.LoggerMiddleware),
	}
}
