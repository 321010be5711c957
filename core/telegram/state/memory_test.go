package state

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemoryManager()
	const chatID int64 = 100

	if m.Active(chatID) {
		t.Fatal("fresh manager should have no active state")
	}
	if got := m.Current(chatID); got != Idle {
		t.Fatalf("Current = %q, want idle", got)
	}

	m.Set(chatID, State("awaiting_url"))
	if !m.Active(chatID) {
		t.Fatal("state should be active after Set")
	}
	if got := m.Current(chatID); got != State("awaiting_url") {
		t.Fatalf("Current = %q", got)
	}

	m.Clear(chatID)
	if m.Active(chatID) {
		t.Fatal("state should be gone after Clear")
	}
	if got := m.Current(chatID); got != Idle {
		t.Fatalf("Current after clear = %q, want idle", got)
	}
}

func TestMemoryExplicitIdleIsNotActive(t *testing.T) {
	m := NewMemoryManager()
	m.Set(5, Idle)
	if m.Active(5) {
		t.Fatal("explicit idle must not count as active")
	}
}

func TestMemoryChatsAreIndependent(t *testing.T) {
	m := NewMemoryManager()
	m.Set(1, State("awaiting_url"))
	if m.Active(2) {
		t.Fatal("other chats must not inherit state")
	}
}

func TestRegisterHandlerIgnoresNil(t *testing.T) {
	before := len(handlers)
	RegisterHandler(State("nil_handler"), nil)
	if len(handlers) != before {
		t.Fatal("nil handler must not be registered")
	}

	RegisterHandler(State("real_handler"), func(c tele.Context) error { return nil })
	if _, ok := handlers[State("real_handler")]; !ok {
		t.Fatal("handler should be registered")
	}
	delete(handlers, State("real_handler"))
}
