package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/ytmp3bot/core/logger"
	tghelpers "github.com/m3rciful/ytmp3bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware keeps a panicking handler from taking the poller
// goroutine down with it. The panic is logged with a stack trace and the
// update is considered handled.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				ctx := tghelpers.BuildContext(c)
				logger.Error(ctx, "tg", "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}
