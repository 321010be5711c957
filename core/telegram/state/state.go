// Package state tracks the conversational step of each chat, so a
// command can ask a question and claim the next message as its answer.
package state

import tele "gopkg.in/telebot.v4"

// State names one step of a chat conversation.
type State string

// Idle means the chat has no conversation in flight.
const Idle State = "idle"

// Manager stores and dispatches per-chat conversation state.
type Manager interface {
	// Set moves the chat into st.
	Set(chatID int64, st State)
	// Current returns the chat's state, Idle when none is stored.
	Current(chatID int64) State
	// Active reports whether the chat is in any non-idle state.
	Active(chatID int64) bool
	// Clear drops the chat's state.
	Clear(chatID int64)
	// Dispatch runs the handler registered for the chat's state.
	Dispatch(c tele.Context) error
}

var handlers = map[State]tele.HandlerFunc{}

// RegisterHandler binds a state to the handler that consumes it. Wiring
// happens once at startup, before updates flow.
func RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	handlers[st] = h
}
