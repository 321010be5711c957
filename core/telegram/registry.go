package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/ytmp3bot/core/logger"
	"github.com/m3rciful/ytmp3bot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry collects the bot's commands and callback handlers before the
// routers wire them into telebot endpoints.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	textFallback     tele.HandlerFunc
	callbackFallback tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks default to a
// short notice answer so the client spinner clears.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackFallback: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// RegisterCommand adds a slash command. Invalid and duplicate
// registrations are logged and dropped rather than treated as fatal.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	reason := ""
	switch {
	case r == nil || name == "" || cmd.Handler == nil || cmd.Description == "":
		reason = "invalid"
	case !strings.HasPrefix(name, "/"):
		reason = "no_slash_prefix"
	}
	if reason != "" {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("item", name),
			slog.String("reason", reason),
		)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("item", name),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands renders the registry as telebot menu entries, without
// the slash prefix setMyCommands rejects. With visibleOnly set, hidden
// and admin commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{
			Text:        strings.TrimPrefix(name, "/"),
			Description: cmd.Description,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves text to a registered command, accepting the
// canonical name or any alias, with or without the slash.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	if !strings.HasPrefix(text, "/") {
		text = "/" + text
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[text]; ok {
		return text, cmd, true
	}
	for name, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == text {
				return name, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a snapshot of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]commands.Command, len(r.commands))
	for name, cmd := range r.commands {
		out[name] = cmd
	}
	return out
}

// RegisterCallback binds a handler to a callback unique.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.callback.skip",
			slog.String("cb_key", key),
			slog.String("reason", "invalid"),
		)
		return errors.New("invalid callback registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.callback.duplicate",
			slog.String("cb_key", key),
		)
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackCount reports how many callback handlers are registered.
func (r *Registry) CallbackCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// SetTextFallback installs the handler for text that matches nothing.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textFallback = h
}

// TextFallback returns the installed text fallback, if any.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// SetCallbackFallback replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackFallback(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackFallback = h
}

// CallbackFallback returns the handler for unknown callback keys.
func (r *Registry) CallbackFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackFallback
}

// SyncCommandMenu publishes the visible commands to the Telegram menu.
func SyncCommandMenu(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Wire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Wire.Info("register.commands", slog.Int("items", len(list)))
}
