package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ytmp3bot/core/logger"
	"github.com/m3rciful/ytmp3bot/core/telegram/callbacks"
	"github.com/m3rciful/ytmp3bot/core/telegram/commands"
	tghelpers "github.com/m3rciful/ytmp3bot/core/telegram/helpers"
	"github.com/m3rciful/ytmp3bot/core/telegram/keyboard"
	"github.com/m3rciful/ytmp3bot/core/telegram/state"
	"github.com/m3rciful/ytmp3bot/downloader"
)

// stateAwaitingURL marks a chat that sent a bare /yt and owes us a link.
const stateAwaitingURL state.State = "awaiting_url"

// callbackCancel is the inline button action that aborts a running task.
const callbackCancel = "dl_cancel"

const (
	msgWelcome = "👋 Hi! I turn video links into MP3 audio.\n\n" +
		"Send */yt <url>* to download a track, or the bare */yt* command and I will ask for the link.\n" +
		"Playlists work too. See /help for details."
	msgHelpIntro = "*How to use me*\n\n" +
		"Send a video link with */yt <url>* and I reply with the MP3. " +
		"A bare */yt* makes me ask for the link in the next message. " +
		"Playlist links are downloaded track by track, and a running download " +
		"can be aborted with the Cancel button under the progress message."
	msgSendURL            = "Send me the video link:"
	msgInvalidURL         = "That does not look like a valid link. Send an http(s) URL."
	msgBusy               = "A download is already running in this chat. Cancel it first or wait for it to finish."
	msgUnknownText        = "Send /yt <url> to download audio, or /help for details."
	msgUnexpectedDocument = "I only work with links. Send /yt <url>."
	msgHistoryDisabled    = "History is not configured."
	msgStatsFailed        = "Could not read the stats, try again later."
)

func (a *App) registerHandlers() {
	a.reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the bot",
	})
	a.reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "How to use the bot",
	})
	a.reg.RegisterCommand("/yt", commands.Command{
		Handler:     a.handleYt,
		Description: "Download audio from a video URL",
	})
	a.reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Download totals",
		AdminOnly:   true,
		Hidden:      true,
	})

	if err := a.reg.RegisterCallback(callbackCancel, a.handleCancelCallback); err != nil {
		logger.Wire.Warn("register.callback.fail",
			slog.String("cb_key", callbackCancel),
			slog.String("err", err.Error()),
		)
	}

	state.RegisterHandler(stateAwaitingURL, a.handleAwaitedURL)
}

// handleStart resets any pending conversation and greets the chat.
func (a *App) handleStart(c tele.Context) error {
	a.fsm.Clear(c.Chat().ID)
	return tghelpers.SendMD(c, msgWelcome)
}

// handleHelp renders the usage text plus the visible half of the
// command registry, so new commands show up without touching the text.
func (a *App) handleHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString(msgHelpIntro)
	b.WriteString("\n\n*Commands*\n")
	for _, cmd := range a.reg.ListCommands(true) {
		fmt.Fprintf(&b, "/%s - %s\n", cmd.Text, cmd.Description)
	}
	return tghelpers.SendMD(c, strings.TrimRight(b.String(), "\n"))
}

// handleYt starts a download when the command carries a URL. A bare /yt
// arms the awaiting-url state so the next message is treated as the link.
func (a *App) handleYt(c tele.Context) error {
	arg := ""
	if msg := c.Message(); msg != nil {
		arg = strings.TrimSpace(msg.Payload)
	}
	if arg == "" {
		chatID := c.Chat().ID
		a.fsm.Set(chatID, stateAwaitingURL)
		logger.Debug(tghelpers.BuildContext(c), "tg", "yt.await_url",
			slog.String("status", "ok"),
			slog.Int64("chat_id", chatID),
		)
		return tghelpers.SendText(c, msgSendURL, &tele.SendOptions{ReplyMarkup: keyboard.ForceReply()})
	}
	return a.startDownload(c, arg)
}

// handleAwaitedURL consumes the awaiting-url state. The state is cleared
// before the download attempt so a failure never leaves the chat stuck.
func (a *App) handleAwaitedURL(c tele.Context) error {
	a.fsm.Clear(c.Chat().ID)
	return a.startDownload(c, strings.TrimSpace(c.Text()))
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if a.rec == nil {
		return tghelpers.SendText(c, msgHistoryDisabled)
	}
	st, err := a.rec.Stats(ctx)
	if err != nil {
		logger.Error(ctx, "history", "stats.fail",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgStatsFailed)
	}
	return tghelpers.SendMD(c, statsText(st))
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, msgUnknownText)
}

func (a *App) handleUnexpectedDocument(c tele.Context) error {
	return tghelpers.SendText(c, msgUnexpectedDocument)
}

// handleCancelCallback aborts the task named in the button payload, which
// carries "<chat_id>|<task_id>". The tapped message is the progress message,
// so it is rewritten right away; the delivery goroutine does the final edit.
func (a *App) handleCancelCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	parts, err := callbacks.PayloadParts(c, "|")
	if err != nil || len(parts) != 2 {
		logger.Debug(ctx, "tg", "cancel.stale",
			slog.String("status", "skip"),
			slog.String("reason", "bad_payload"),
		)
		return nil
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	taskID := parts[1]
	if err != nil || !a.running.Cancel(chatID, taskID) {
		logger.Debug(ctx, "tg", "cancel.stale",
			slog.String("status", "skip"),
			slog.String("task", taskID),
		)
		return nil
	}

	logger.Info(ctx, "tg", "cancel.requested",
		slog.String("status", "ok"),
		slog.String("task", taskID),
	)
	return tghelpers.EditMD(c, "🚫 Cancelling…")
}

// startDownload validates the link, claims the per-chat slot, and hands the
// work to a delivery goroutine so the update loop stays responsive.
func (a *App) startDownload(c tele.Context, rawURL string) error {
	ctx := tghelpers.BuildContext(c)

	if err := ValidateURL(rawURL); err != nil {
		logger.Warn(ctx, "tg", "url.rejected",
			slog.String("status", "fail"),
			slog.String("url", logger.SanitizeLimit(rawURL, 256)),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, msgInvalidURL)
	}

	chatID := c.Chat().ID
	taskID := downloader.NewTaskID()
	taskCtx, cancel := context.WithCancel(ctx)
	if !a.running.Begin(chatID, taskID, cancel) {
		cancel()
		return tghelpers.SendText(c, msgBusy)
	}

	playlist := IsPlaylistURL(rawURL)
	go func() {
		defer a.running.End(chatID, taskID)
		a.deliverFn(taskCtx, c, taskID, rawURL, playlist)
	}()
	return nil
}
