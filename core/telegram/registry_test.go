package telegram

import (
	"testing"

	"github.com/m3rciful/ytmp3bot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noopHandler(tele.Context) error { return nil }

func TestRegistryRejectsInvalidCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("", commands.Command{Handler: noopHandler, Description: "x"})
	reg.RegisterCommand("/nodesc", commands.Command{Handler: noopHandler})
	reg.RegisterCommand("noslash", commands.Command{Handler: noopHandler, Description: "x"})
	reg.RegisterCommand("/nohandler", commands.Command{Description: "x"})

	if n := len(reg.Commands()); n != 0 {
		t.Errorf("registered %d commands, want 0", n)
	}
}

func TestRegistryIgnoresDuplicateCommand(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/yt", commands.Command{Handler: noopHandler, Description: "first"})
	reg.RegisterCommand("/yt", commands.Command{Handler: noopHandler, Description: "second"})

	_, cmd, ok := reg.LookupCommand("/yt")
	if !ok || cmd.Description != "first" {
		t.Errorf("LookupCommand = (%q, %v), want first registration kept", cmd.Description, ok)
	}
}

func TestRegistryLookupAcceptsAliases(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/yt", commands.Command{
		Handler:     noopHandler,
		Description: "download",
		Aliases:     []string{"youtube", "/dl"},
	})

	for _, text := range []string{"/yt", "yt", "/youtube", "youtube", "/dl"} {
		name, _, ok := reg.LookupCommand(text)
		if !ok || name != "/yt" {
			t.Errorf("LookupCommand(%q) = (%q, %v), want (/yt, true)", text, name, ok)
		}
	}
	if _, _, ok := reg.LookupCommand("/nope"); ok {
		t.Error("LookupCommand matched an unregistered command")
	}
}

func TestRegistryMenuHidesInternalCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "greet"})
	reg.RegisterCommand("/yt", commands.Command{Handler: noopHandler, Description: "download"})
	reg.RegisterCommand("/stats", commands.Command{Handler: noopHandler, Description: "admin", AdminOnly: true})
	reg.RegisterCommand("/debug", commands.Command{Handler: noopHandler, Description: "debug", Hidden: true})

	menu := reg.ListCommands(true)
	if len(menu) != 2 {
		t.Fatalf("menu has %d entries, want 2", len(menu))
	}
	// setMyCommands rejects names with the slash prefix.
	if menu[0].Text != "start" || menu[1].Text != "yt" {
		t.Errorf("menu = [%s %s], want [start yt]", menu[0].Text, menu[1].Text)
	}

	all := reg.ListCommands(false)
	if len(all) != 4 {
		t.Errorf("full listing has %d entries, want 4", len(all))
	}
}

func TestRegistryCallbackRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("dl_cancel", noopHandler); err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}
	if err := reg.RegisterCallback("dl_cancel", noopHandler); err == nil {
		t.Error("duplicate registration did not error")
	}
	if err := reg.RegisterCallback("", noopHandler); err == nil {
		t.Error("empty key did not error")
	}
	if err := reg.RegisterCallback("x", nil); err == nil {
		t.Error("nil handler did not error")
	}

	if _, ok := reg.Callback("dl_cancel"); !ok {
		t.Error("registered callback not found")
	}
	if _, ok := reg.Callback("missing"); ok {
		t.Error("unregistered callback found")
	}
	if n := reg.CallbackCount(); n != 1 {
		t.Errorf("CallbackCount = %d, want 1", n)
	}
}
