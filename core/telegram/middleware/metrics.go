package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	sentCountKey = "messages"
	keyboardKey  = "kb"
)

// countingContext wraps a telebot context and counts outgoing messages so
// the per-update summary can report how many replies a handler produced.
type countingContext struct {
	tele.Context
}

func (m countingContext) record(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	n, _ := m.Get(sentCountKey).(int)
	m.Set(sentCountKey, n+1)
	if hasKeyboard(opts) {
		m.Set(keyboardKey, true)
	}
	return nil
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.EditOrSend(what, opts...), opts)
}

func (m countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.EditOrReply(what, opts...), opts)
}

func hasKeyboard(opts []interface{}) bool {
	for _, opt := range opts {
		switch v := opt.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

// MessageMetricsMiddleware swaps the context for a counting wrapper.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return next(countingContext{Context: c})
	}
}

// GetCounters reports how many messages the handler sent during this
// update and whether any of them carried an inline keyboard.
func GetCounters(c tele.Context) (sent int, keyboard bool) {
	sent, _ = c.Get(sentCountKey).(int)
	keyboard, _ = c.Get(keyboardKey).(bool)
	return sent, keyboard
}
