package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/ytmp3bot/core/logger"
	tghelpers "github.com/m3rciful/ytmp3bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// memory keeps chat states in a plain map. Good enough for one process;
// states are cheap to lose on restart since they only gate prompts.
type memory struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryManager returns the in-process Manager implementation.
func NewMemoryManager() Manager {
	return &memory{states: make(map[int64]State)}
}

func (m *memory) Set(chatID int64, st State) {
	m.mu.Lock()
	m.states[chatID] = st
	m.mu.Unlock()
}

func (m *memory) Current(chatID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[chatID]; ok {
		return st
	}
	return Idle
}

func (m *memory) Active(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[chatID]
	return ok && st != Idle
}

func (m *memory) Clear(chatID int64) {
	m.mu.Lock()
	delete(m.states, chatID)
	m.mu.Unlock()
}

func (m *memory) Dispatch(c tele.Context) error {
	chatID := c.Chat().ID
	current := m.Current(chatID)
	logger.Debug(tghelpers.BuildContext(c), "tg", "fsm.dispatch",
		slog.Int64("chat_id", chatID),
		slog.String("state", string(current)),
	)
	if handler, ok := handlers[current]; ok {
		return handler(c)
	}
	return nil
}
