// Package router turns the command and callback registry into telebot
// routes, wrapping every branch with recovery, request logging and a
// single summary line per handled update.
package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"
	tg "github.com/m3rciful/ytmp3bot/core/telegram"
	"github.com/m3rciful/ytmp3bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the wrapping applied to command handlers.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes wraps every registered command in the shared middleware
// stack. Admin commands additionally pass the access gate, which sits
// outermost so rejected updates stay out of the logs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	gate := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, cmd := range cmds {
		name := routeName(endpoint)
		handler := cmd.Handler

		wrapped := wrap(command(name, handler),
			middleware.LoggerMiddleware,
			middleware.RecoverMiddleware,
		)
		if cmd.AdminOnly {
			wrapped = gate(wrapped)
		}
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: wrapped})
	}

	logger.Wire.Info("tg.wire",
		slog.Int("items", len(cmds)),
		slog.Int("callbacks", reg.CallbackCount()),
	)
	return routes
}

// command binds the summary line to a directly routed slash command.
func command(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return summary{handler: name, start: time.Now()}.run(c, h)
	}
}
