// Package commands describes the slash commands a bot registers.
package commands

import tele "gopkg.in/telebot.v4"

// Command binds a handler to a slash command plus the metadata the
// registry needs: menu description, visibility and admin gating.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
