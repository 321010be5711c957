// Package helpers bridges telebot contexts with the bot's context-first
// logging and asynchronous sending conventions.
package helpers

import (
	"context"

	"github.com/m3rciful/ytmp3bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ctxSlot is the tele.Context storage key for the derived context.
const ctxSlot = "logger_ctx"

// StoreContext caches ctx on the telebot context so later helpers reuse
// the same correlation ids.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxSlot, ctx)
}

// ContextFrom returns the context cached by middleware, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxSlot).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext derives a context carrying the RID, update metadata and
// the transport logger from the current update, caching it on c.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}

	upd := c.Update()
	var userID, chatID int64
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the cached context with the handler name so every
// line logged underneath carries it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
