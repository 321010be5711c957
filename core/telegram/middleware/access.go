package middleware

import (
	tele "gopkg.in/telebot.v4"
)

// AdminOptions gates a handler to a single Telegram account.
type AdminOptions struct {
	// AdminID is the only user allowed through. Zero disables the gate.
	AdminID int64

	// OnReject runs for everyone else. Nil means drop silently.
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware drops updates from everyone but the configured admin.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID == 0 {
				return next(c)
			}
			if from := c.Sender(); from != nil && from.ID == opts.AdminID {
				return next(c)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
