package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/ytmp3bot/core/config"
	coretelegram "github.com/m3rciful/ytmp3bot/core/telegram"
	"github.com/m3rciful/ytmp3bot/core/telegram/state"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// fakeContext implements the slice of tele.Context the handlers touch.
// Unimplemented methods panic via the nil embedded interface, which is
// exactly what a test should do when a handler grows a new dependency.
type fakeContext struct {
	tele.Context

	chat     *tele.Chat
	sender   *tele.User
	message  *tele.Message
	callback *tele.Callback
	api      tele.API

	mu    sync.Mutex
	store map[string]any
	sent  []string
	edits []string
}

func newFakeContext(chatID int64, text string) *fakeContext {
	chat := &tele.Chat{ID: chatID, Type: tele.ChatPrivate}
	user := &tele.User{ID: 99}
	return &fakeContext{
		chat:    chat,
		sender:  user,
		message: &tele.Message{Text: text, Chat: chat, Sender: user},
		store:   make(map[string]any),
	}
}

// withPayload mimics telebot's command parsing of "/yt <arg>".
func (f *fakeContext) withPayload(payload string) *fakeContext {
	f.message.Payload = payload
	return f
}

func (f *fakeContext) Update() tele.Update       { return tele.Update{ID: 7, Message: f.message} }
func (f *fakeContext) Message() *tele.Message    { return f.message }
func (f *fakeContext) Callback() *tele.Callback  { return f.callback }
func (f *fakeContext) Chat() *tele.Chat          { return f.chat }
func (f *fakeContext) Sender() *tele.User        { return f.sender }
func (f *fakeContext) Bot() tele.API             { return f.api }
func (f *fakeContext) Recipient() tele.Recipient { return f.chat }

func (f *fakeContext) Text() string {
	if f.message == nil {
		return ""
	}
	return f.message.Text
}

func (f *fakeContext) Get(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *fakeContext) Set(key string, val any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = val
}

func (f *fakeContext) Send(what any, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func (f *fakeContext) Edit(what any, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := what.(string); ok {
		f.edits = append(f.edits, s)
	}
	return nil
}

func (f *fakeContext) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// deliverRecorder captures download starts and blocks each one until the
// test releases it.
type deliverRecorder struct {
	mu       sync.Mutex
	calls    []deliverCall
	started  chan deliverCall
	release  chan struct{}
	released sync.Once
}

type deliverCall struct {
	ctx      context.Context
	taskID   string
	url      string
	playlist bool
}

func newDeliverRecorder() *deliverRecorder {
	return &deliverRecorder{
		started: make(chan deliverCall, 8),
		release: make(chan struct{}),
	}
}

func (d *deliverRecorder) run(ctx context.Context, _ tele.Context, taskID, rawURL string, playlist bool) {
	call := deliverCall{ctx: ctx, taskID: taskID, url: rawURL, playlist: playlist}
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
	d.started <- call
	<-d.release
}

func (d *deliverRecorder) releaseAll() {
	d.released.Do(func() { close(d.release) })
}

func (d *deliverRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *deliverRecorder) waitStart(t *testing.T) deliverCall {
	t.Helper()
	select {
	case call := <-d.started:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("download did not start")
		return deliverCall{}
	}
}

func newTestApp(t *testing.T) (*App, *deliverRecorder) {
	t.Helper()
	rec := newDeliverRecorder()
	a := &App{
		cfg:       &Config{Core: coreconfig.Config{}},
		fsm:       state.NewMemoryManager(),
		reg:       coretelegram.NewRegistry(),
		running:   newRunningTasks(),
		deliverFn: rec.run,
	}
	a.registerHandlers()
	t.Cleanup(func() {
		rec.releaseAll()
		a.running.CancelAll()
	})
	return a, rec
}

// waitIdle blocks until the delivery goroutine released the chat slot.
func waitIdle(t *testing.T, a *App, chatID int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.running.Active(chatID) {
		if time.Now().After(deadline) {
			t.Fatal("chat slot was not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestYtWithURLStartsExactlyOneDownload(t *testing.T) {
	app, rec := newTestApp(t)

	c := newFakeContext(10, "/yt "+testURL).withPayload(testURL)
	if err := app.handleYt(c); err != nil {
		t.Fatalf("handleYt: %v", err)
	}

	call := rec.waitStart(t)
	if call.url != testURL {
		t.Errorf("deliver url = %q, want %q", call.url, testURL)
	}
	if call.playlist {
		t.Error("single watch link classified as playlist")
	}
	if n := rec.count(); n != 1 {
		t.Errorf("deliver calls = %d, want 1", n)
	}
	if app.fsm.Active(10) {
		t.Error("a direct /yt <url> must not arm the url prompt")
	}
	if !app.running.Active(10) {
		t.Error("chat slot must stay claimed while the download runs")
	}

	rec.releaseAll()
	waitIdle(t, app, 10)
}

func TestYtWithoutURLArmsPromptOnly(t *testing.T) {
	app, rec := newTestApp(t)

	c := newFakeContext(11, "/yt")
	if err := app.handleYt(c); err != nil {
		t.Fatalf("handleYt: %v", err)
	}

	if got := app.fsm.Current(11); got != stateAwaitingURL {
		t.Errorf("state = %q, want %q", got, stateAwaitingURL)
	}
	if n := rec.count(); n != 0 {
		t.Errorf("deliver calls = %d, want 0", n)
	}
	sent := c.sentTexts()
	if len(sent) != 1 || sent[0] != msgSendURL {
		t.Errorf("sent = %v, want the url prompt", sent)
	}
}

func TestAwaitedURLConsumesPromptBeforeDownloading(t *testing.T) {
	app, rec := newTestApp(t)
	app.fsm.Set(12, stateAwaitingURL)

	c := newFakeContext(12, testURL)
	if err := app.handleAwaitedURL(c); err != nil {
		t.Fatalf("handleAwaitedURL: %v", err)
	}

	call := rec.waitStart(t)
	// The prompt must already be consumed while the download still runs,
	// otherwise a second message would be swallowed as another url.
	if app.fsm.Active(12) {
		t.Error("awaiting state still set during the download")
	}
	if call.url != testURL {
		t.Errorf("deliver url = %q, want %q", call.url, testURL)
	}
}

func TestAwaitedURLRejectsInvalidLinkWithoutDownload(t *testing.T) {
	app, rec := newTestApp(t)
	app.fsm.Set(13, stateAwaitingURL)

	c := newFakeContext(13, "definitely not a link")
	if err := app.handleAwaitedURL(c); err != nil {
		t.Fatalf("handleAwaitedURL: %v", err)
	}

	if n := rec.count(); n != 0 {
		t.Errorf("deliver calls = %d, want 0", n)
	}
	if app.fsm.Active(13) {
		t.Error("awaiting state must be cleared even for an invalid link")
	}
	sent := c.sentTexts()
	if len(sent) != 1 || sent[0] != msgInvalidURL {
		t.Errorf("sent = %v, want the invalid-url notice", sent)
	}
}

func TestSecondDownloadInChatIsRejected(t *testing.T) {
	app, rec := newTestApp(t)

	first := newFakeContext(14, "/yt "+testURL).withPayload(testURL)
	if err := app.handleYt(first); err != nil {
		t.Fatalf("first handleYt: %v", err)
	}
	rec.waitStart(t)

	second := newFakeContext(14, "/yt "+testURL).withPayload(testURL)
	if err := app.handleYt(second); err != nil {
		t.Fatalf("second handleYt: %v", err)
	}

	if n := rec.count(); n != 1 {
		t.Errorf("deliver calls = %d, want 1", n)
	}
	sent := second.sentTexts()
	if len(sent) != 1 || sent[0] != msgBusy {
		t.Errorf("sent = %v, want the busy notice", sent)
	}
}

func TestPlaylistLinkFlaggedForPlaylistFetch(t *testing.T) {
	app, rec := newTestApp(t)

	url := "https://www.youtube.com/playlist?list=PLabc"
	c := newFakeContext(15, "/yt "+url).withPayload(url)
	if err := app.handleYt(c); err != nil {
		t.Fatalf("handleYt: %v", err)
	}

	if call := rec.waitStart(t); !call.playlist {
		t.Error("playlist link not flagged as playlist")
	}
}

func TestCancelCallbackCancelsRunningTask(t *testing.T) {
	app, rec := newTestApp(t)

	c := newFakeContext(16, "/yt "+testURL).withPayload(testURL)
	if err := app.handleYt(c); err != nil {
		t.Fatalf("handleYt: %v", err)
	}
	call := rec.waitStart(t)

	cb := newFakeContext(16, "")
	cb.callback = &tele.Callback{Unique: callbackCancel, Data: "16|" + call.taskID}
	if err := app.handleCancelCallback(cb); err != nil {
		t.Fatalf("handleCancelCallback: %v", err)
	}

	select {
	case <-call.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled")
	}
	if len(cb.edits) != 1 || !strings.Contains(cb.edits[0], "Cancelling") {
		t.Errorf("edits = %v, want the cancelling notice", cb.edits)
	}
	// The slot is only released when the delivery goroutine exits.
	if !app.running.Active(16) {
		t.Error("slot released before the delivery goroutine finished")
	}
}

func TestCancelCallbackIgnoresStaleButton(t *testing.T) {
	app, rec := newTestApp(t)

	cb := newFakeContext(17, "")
	cb.callback = &tele.Callback{Unique: callbackCancel, Data: "17|ancient-task"}
	if err := app.handleCancelCallback(cb); err != nil {
		t.Fatalf("handleCancelCallback: %v", err)
	}

	if n := rec.count(); n != 0 {
		t.Errorf("deliver calls = %d, want 0", n)
	}
	if len(cb.edits) != 0 {
		t.Errorf("edits = %v, want none for a stale button", cb.edits)
	}
}

func TestStartResetsPendingPrompt(t *testing.T) {
	app, _ := newTestApp(t)
	app.fsm.Set(18, stateAwaitingURL)

	c := newFakeContext(18, "/start")
	if err := app.handleStart(c); err != nil {
		t.Fatalf("handleStart: %v", err)
	}
	if app.fsm.Active(18) {
		t.Error("/start must clear a pending prompt")
	}
	if sent := c.sentTexts(); len(sent) != 1 || !strings.Contains(sent[0], "MP3") {
		t.Errorf("sent = %v, want the welcome message", sent)
	}
}

func TestHelpListsVisibleCommandsOnly(t *testing.T) {
	app, _ := newTestApp(t)

	c := newFakeContext(19, "/help")
	if err := app.handleHelp(c); err != nil {
		t.Fatalf("handleHelp: %v", err)
	}
	sent := c.sentTexts()
	if len(sent) != 1 {
		t.Fatalf("sent = %v, want one help message", sent)
	}
	for _, want := range []string{"/start", "/help", "/yt"} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("help text misses %s: %q", want, sent[0])
		}
	}
	if strings.Contains(sent[0], "/stats") {
		t.Errorf("help text leaks the admin command: %q", sent[0])
	}
}
