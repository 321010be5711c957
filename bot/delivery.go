package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ytmp3bot/core/logger"
	"github.com/m3rciful/ytmp3bot/core/telegram/format"
	tghelpers "github.com/m3rciful/ytmp3bot/core/telegram/helpers"
	"github.com/m3rciful/ytmp3bot/core/telegram/keyboard"
	"github.com/m3rciful/ytmp3bot/downloader"
	"github.com/m3rciful/ytmp3bot/history"
)

const (
	// progressEditInterval throttles progress edits below Telegram's
	// per-chat edit rate limit.
	progressEditInterval = time.Second
	playlistSendPause    = 500 * time.Millisecond
	recordTimeout        = 5 * time.Second

	msgStarting = "⏳ Starting download…"
)

// progressMessage owns the single status message of a task. Edits are
// throttled and deduplicated; the final rewrite drops the cancel button.
type progressMessage struct {
	api      tele.API
	msg      *tele.Message
	markup   *tele.ReplyMarkup
	lastEdit time.Time
	lastText string
}

func newProgressMessage(c tele.Context, text string, markup *tele.ReplyMarkup) (*progressMessage, error) {
	msg, err := c.Bot().Send(c.Recipient(), text, markup)
	if err != nil {
		return nil, err
	}
	return &progressMessage{
		api:      c.Bot(),
		msg:      msg,
		markup:   markup,
		lastEdit: time.Now(),
		lastText: text,
	}, nil
}

func (p *progressMessage) update(text string) {
	if p == nil || text == "" || text == p.lastText {
		return
	}
	if time.Since(p.lastEdit) < progressEditInterval {
		return
	}
	if _, err := p.api.Edit(p.msg, text, p.markup); err == nil {
		p.lastText = text
		p.lastEdit = time.Now()
	}
}

func (p *progressMessage) finish(text string) {
	if p == nil {
		return
	}
	_, _ = p.api.Edit(p.msg, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

// deliver runs one download task end to end: progress surface, fetch,
// file delivery, final summary, and the optional history record. Every
// failure ends up as a chat message, never as a crash.
func (a *App) deliver(ctx context.Context, c tele.Context, taskID, rawURL string, playlist bool) {
	ctx = logger.WithTask(ctx, taskID)
	start := time.Now()

	markup := keyboard.SingleCancelMarkup(callbackCancel, cancelPayload(c.Chat().ID, taskID))
	prog, err := newProgressMessage(c, msgStarting, markup)
	if err != nil {
		logger.Error(ctx, "send", "progress.create.fail",
			slog.String("status", "fail"),
			slog.String("err", logger.RedactToken(err.Error())),
		)
	}

	entry := history.Entry{
		TaskID: taskID,
		ChatID: c.Chat().ID,
		UserID: senderID(c),
		URL:    rawURL,
		Kind:   "single",
	}
	if playlist {
		entry.Kind = "playlist"
	}

	task := downloader.Task{ID: taskID, URL: rawURL}
	onProgress := func(p downloader.Progress) {
		prog.update(progressText(p))
	}

	var (
		res  *downloader.Result
		meta *downloader.Info
	)
	if playlist {
		if info, perr := a.dl.ProbePlaylist(ctx, rawURL); perr == nil && info.Count > 0 {
			prog.update(fmt.Sprintf("🎵 Playlist · %d tracks", info.Count))
		}
		res, err = a.dl.FetchPlaylist(ctx, task, onProgress)
	} else {
		if info, perr := a.dl.Probe(ctx, rawURL); perr == nil {
			meta = info
			prog.update(singleHeader(info))
		}
		res, err = a.dl.Fetch(ctx, task, onProgress)
	}

	if err != nil {
		prog.finish(failureText(err))
		entry.Status = statusFor(err)
		entry.Error = logger.SanitizeLimit(logger.RedactToken(err.Error()), 512)
		entry.DurationMS = logger.Took(start).Milliseconds()
		a.record(ctx, entry)
		return
	}
	defer a.dl.Cleanup(res)

	sent, skipped, failed, sentBytes := a.sendFiles(ctx, c, prog, res, meta)

	summary := deliverySummary(res, sent, skipped, failed)
	entry.Status = history.StatusCompleted
	if sent == 0 {
		entry.Status = history.StatusFailed
		entry.Error = "no files delivered"
	}
	if ctx.Err() != nil {
		summary = fmt.Sprintf("🚫 Cancelled · %d of %d tracks sent", sent, len(res.Files))
		entry.Status = history.StatusCancelled
		entry.Error = ""
	}
	prog.finish(summary)

	entry.Files = sent
	entry.SizeBytes = sentBytes
	entry.DurationMS = logger.Took(start).Milliseconds()
	a.record(ctx, entry)
}

// sendFiles delivers every produced file in order, skipping oversized ones
// and pausing between playlist tracks. Cancellation stops the remainder.
func (a *App) sendFiles(ctx context.Context, c tele.Context, prog *progressMessage, res *downloader.Result, meta *downloader.Info) (sent, skipped, failed int, sentBytes int64) {
	maxBytes := int64(a.cfg.Core.Download.MaxFileMB) * 1024 * 1024
	total := len(res.Files)

	for i, f := range res.Files {
		if ctx.Err() != nil {
			break
		}

		if total > 1 {
			prog.update(fmt.Sprintf("⬆️ Uploading %d/%d · %s", i+1, total, f.Title()))
		} else {
			prog.update("⬆️ Uploading " + f.Title())
		}

		if maxBytes > 0 && f.Size > maxBytes {
			skipped++
			logger.Warn(ctx, "send", "file.skipped",
				slog.String("status", "skip"),
				slog.String("file", f.Name()),
				slog.Int64("size_bytes", f.Size),
			)
			_ = tghelpers.SendText(c, fmt.Sprintf("⚠️ %s is %s, over the %s limit. Skipping it.",
				f.Title(), format.HumanBytes(f.Size), format.HumanBytes(maxBytes)))
			continue
		}

		if err := a.sendAudio(ctx, c, f, meta); err != nil {
			failed++
			logger.Error(ctx, "send", "file.fail",
				slog.String("status", "fail"),
				slog.String("file", f.Name()),
				slog.String("err", logger.RedactToken(err.Error())),
			)
			continue
		}
		sent++
		sentBytes += f.Size

		if total > 1 && i < total-1 {
			select {
			case <-ctx.Done():
			case <-time.After(playlistSendPause):
			}
		}
	}
	return sent, skipped, failed, sentBytes
}

// sendAudio uploads one file as audio and falls back to a plain document
// when Telegram rejects the audio upload.
func (a *App) sendAudio(ctx context.Context, c tele.Context, f downloader.File, meta *downloader.Info) error {
	duration, err := a.dl.DurationSeconds(ctx, f.Path)
	if err != nil {
		logger.Debug(ctx, "dl", "ffprobe.fail",
			slog.String("status", "skip"),
			slog.String("file", f.Name()),
			slog.String("err", err.Error()),
		)
	}

	audio := &tele.Audio{
		File:     tele.FromDisk(f.Path),
		Title:    f.Title(),
		FileName: f.Name(),
		Duration: duration,
	}
	if meta != nil {
		audio.Performer = meta.Uploader
	}
	_, sendErr := c.Bot().Send(c.Recipient(), audio)
	if sendErr == nil {
		logger.Info(ctx, "send", "audio.sent",
			slog.String("status", "ok"),
			slog.String("file", f.Name()),
			slog.Int64("size_bytes", f.Size),
		)
		return nil
	}
	logger.Warn(ctx, "send", "audio.fallback",
		slog.String("status", "fail"),
		slog.String("file", f.Name()),
		slog.String("err", logger.RedactToken(sendErr.Error())),
	)

	doc := &tele.Document{
		File:     tele.FromDisk(f.Path),
		FileName: f.Name(),
		Caption:  "⚠️ Sent as a file because the audio upload failed.",
	}
	if _, err := c.Bot().Send(c.Recipient(), doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	logger.Info(ctx, "send", "document.sent",
		slog.String("status", "ok"),
		slog.String("file", f.Name()),
		slog.Int64("size_bytes", f.Size),
	)
	return nil
}

// record journals the task outcome when a recorder is configured. It uses
// a detached context so cancelled tasks are still written.
func (a *App) record(ctx context.Context, e history.Entry) {
	if a.rec == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	_ = a.rec.Record(rctx, e)
}

func progressText(p downloader.Progress) string {
	if p.Phase == downloader.PhaseConvert {
		if p.Items > 0 {
			return fmt.Sprintf("🎛 Converting track %d/%d…", p.Item, p.Items)
		}
		return "🎛 Converting to MP3…"
	}

	var b strings.Builder
	if p.Items > 0 {
		fmt.Fprintf(&b, "⬇️ Track %d/%d · %.0f%%", p.Item, p.Items, p.Percent)
	} else {
		fmt.Fprintf(&b, "⬇️ Downloading · %.0f%%", p.Percent)
	}
	if p.Speed != "" {
		fmt.Fprintf(&b, " at %s", p.Speed)
	}
	if p.ETA != "" {
		fmt.Fprintf(&b, ", ETA %s", p.ETA)
	}
	return b.String()
}

func failureText(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "🚫 Download cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "⏱ Download timed out. Try a shorter video."
	case errors.Is(err, downloader.ErrNoOutput):
		return "😕 Nothing downloadable was found at that link."
	}
	var runErr *downloader.RunError
	if errors.As(err, &runErr) {
		return "❌ The downloader could not handle that link. Check the URL and try again."
	}
	return "❌ Download failed, try again later."
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return history.StatusCompleted
	case errors.Is(err, context.Canceled):
		return history.StatusCancelled
	default:
		return history.StatusFailed
	}
}

func deliverySummary(res *downloader.Result, sent, skipped, failed int) string {
	if len(res.Files) == 1 && sent == 1 {
		f := res.Files[0]
		title, _ := format.EscapeMarkdown(f.Title(), format.MarkdownV1)
		return fmt.Sprintf("✅ Done: *%s* (%s)", title, format.HumanBytes(f.Size))
	}
	if sent == 0 {
		return "❌ Nothing was delivered."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Sent %d of %d tracks", sent, len(res.Files))
	if skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped (too large)", skipped)
	}
	if failed > 0 {
		fmt.Fprintf(&b, ", %d failed", failed)
	}
	return b.String()
}

func statsText(st *history.Stats) string {
	return fmt.Sprintf(
		"*Download stats, last 24h*\nTotal: %d\nCompleted: %d\nFailed: %d\nCancelled: %d\nChats: %d\nAudio sent: %s",
		st.Total, st.Completed, st.Failed, st.Cancelled, st.Chats, format.HumanBytes(st.SizeBytes),
	)
}

// cancelPayload encodes the button payload consumed by handleCancelCallback.
func cancelPayload(chatID int64, taskID string) string {
	return strconv.FormatInt(chatID, 10) + "|" + taskID
}

// singleHeader renders the probed title line shown while a single video
// downloads. Empty titles produce no update.
func singleHeader(info *downloader.Info) string {
	if info == nil || info.Title == "" {
		return ""
	}
	head := "🎬 " + info.Title
	if info.Duration > 0 {
		head += " (" + format.ShortDuration(time.Duration(info.Duration)*time.Second) + ")"
	}
	return head
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
