package router

import (
	"time"

	tg "github.com/m3rciful/ytmp3bot/core/telegram"
	"github.com/m3rciful/ytmp3bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the slice of the conversation state manager the text router
// consults before command lookup.
type FSM interface {
	Active(chatID int64) bool
	Dispatch(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the OnText and OnDocument handlers. A pending
// conversation state wins over command lookup so that prompts consume
// the user's reply instead of re-dispatching it.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		s := summary{start: time.Now()}

		if fsm != nil && c.Chat() != nil && fsm.Active(c.Chat().ID) {
			s.handler = "fsm"
			return s.run(c, fsm.Dispatch)
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				s.handler = routeName(key)
				return s.run(c, cmd.Handler)
			}
			if fallback := reg.TextFallback(); fallback != nil {
				s.handler = "fallback"
				return s.run(c, fallback)
			}
		}

		s.handler = "unknown_text"
		if opts.UnknownText != nil {
			return s.run(c, opts.UnknownText)
		}
		s.skip(c)
		return nil
	}

	onDocument := func(c tele.Context) error {
		s := summary{start: time.Now()}

		if fsm != nil && c.Chat() != nil && fsm.Active(c.Chat().ID) {
			s.handler = "fsm_document"
			return s.run(c, fsm.Dispatch)
		}

		s.handler = "unexpected_document"
		if opts.UnknownDocument != nil {
			return s.run(c, opts.UnknownDocument)
		}
		s.skip(c)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText, middleware.RecoverMiddleware, middleware.LoggerMiddleware)},
		{Endpoint: tele.OnDocument, Handler: wrap(onDocument, middleware.RecoverMiddleware, middleware.LoggerMiddleware)},
	}
}
