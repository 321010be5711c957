package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/ytmp3bot/core/logger"
)

// Options configures the downloader. Zero values fall back to defaults.
type Options struct {
	YtdlpPath   string
	FfprobePath string
	// WorkDir hosts per-task temp directories; empty means the OS temp dir.
	WorkDir      string
	AudioFormat  string
	AudioQuality string
	// Timeout bounds a single yt-dlp run, playlist or not.
	Timeout       time.Duration
	PlaylistLimit int
	// Concurrency caps simultaneous yt-dlp subprocesses across all chats.
	Concurrency int
}

// Task identifies a single fetch request.
type Task struct {
	ID  string
	URL string
}

// ProgressFunc receives progress snapshots while a task is running.
type ProgressFunc func(Progress)

// File is one produced audio file.
type File struct {
	Path string
	Size int64
}

var indexPrefixRe = regexp.MustCompile(`^\d+ - `)

// Name returns the base file name.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// Title returns the human title encoded in the file name, without the
// extension and without the playlist index prefix.
func (f File) Title() string {
	base := strings.TrimSuffix(f.Name(), filepath.Ext(f.Path))
	return indexPrefixRe.ReplaceAllString(base, "")
}

// Result holds the outcome of a finished task. The caller owns Dir and
// must release it via Cleanup once the files were delivered.
type Result struct {
	TaskID string
	Dir    string
	Files  []File
}

// TotalSize sums the sizes of all produced files.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// Downloader runs yt-dlp tasks with bounded concurrency.
type Downloader struct {
	opts Options
	sem  chan struct{}
}

// New constructs a Downloader applying defaults for zeroed options.
func New(opts Options) *Downloader {
	if strings.TrimSpace(opts.YtdlpPath) == "" {
		opts.YtdlpPath = "yt-dlp"
	}
	if strings.TrimSpace(opts.FfprobePath) == "" {
		opts.FfprobePath = "ffprobe"
	}
	if strings.TrimSpace(opts.AudioFormat) == "" {
		opts.AudioFormat = "mp3"
	}
	if strings.TrimSpace(opts.AudioQuality) == "" {
		opts.AudioQuality = "192K"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.PlaylistLimit <= 0 {
		opts.PlaylistLimit = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	return &Downloader{
		opts: opts,
		sem:  make(chan struct{}, opts.Concurrency),
	}
}

// NewTaskID returns a time-ordered task identifier.
func NewTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Fetch downloads a single video as audio.
func (d *Downloader) Fetch(ctx context.Context, task Task, onProgress ProgressFunc) (*Result, error) {
	return d.run(ctx, task, false, onProgress)
}

// FetchPlaylist downloads every entry of a playlist as audio, up to the
// configured playlist limit. Entries that fail are skipped.
func (d *Downloader) FetchPlaylist(ctx context.Context, task Task, onProgress ProgressFunc) (*Result, error) {
	return d.run(ctx, task, true, onProgress)
}

// Cleanup removes the task work directory and everything inside it.
func (d *Downloader) Cleanup(res *Result) {
	if res == nil || res.Dir == "" {
		return
	}
	if err := os.RemoveAll(res.Dir); err != nil {
		logger.DL.Warn("task.cleanup",
			slog.String("status", "fail"),
			slog.String("task", res.TaskID),
			slog.String("err", err.Error()),
		)
	}
}

func (d *Downloader) run(ctx context.Context, task Task, playlist bool, onProgress ProgressFunc) (*Result, error) {
	if strings.TrimSpace(task.URL) == "" {
		return nil, errors.New("downloader: empty url")
	}
	if task.ID == "" {
		task.ID = NewTaskID()
	}

	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	ctx = logger.WithTask(ctx, task.ID)

	dir, err := os.MkdirTemp(d.opts.WorkDir, "ytmp3-")
	if err != nil {
		return nil, fmt.Errorf("downloader: create work dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	args := d.buildArgs(task.URL, dir, playlist)
	logger.Info(ctx, "dl", "task.start",
		slog.String("status", "ok"),
		slog.String("url", task.URL),
		slog.String("kind", taskKind(playlist)),
	)

	start := time.Now()
	cmd := exec.CommandContext(runCtx, d.opts.YtdlpPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("downloader: stdout pipe: %w", err)
	}
	stderrTail := newTailBuffer(4 * 1024)
	cmd.Stderr = stderrTail

	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("downloader: start yt-dlp: %w", err)
	}

	cur := Progress{Phase: PhaseDownload}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		upd, ok := parseProgressLine(scanner.Text())
		if !ok {
			continue
		}
		cur = mergeProgress(cur, upd)
		if onProgress != nil {
			onProgress(cur)
		}
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, "dl", "task.progress",
				slog.String("status", "ok"),
				slog.Float64("percent", cur.Percent),
				slog.String("speed", cur.Speed),
				slog.String("eta", cur.ETA),
				slog.Int("item", cur.Item),
				slog.Int("items", cur.Items),
			)
		}
	}

	waitErr := cmd.Wait()
	took := time.Since(start)

	if waitErr != nil {
		_ = os.RemoveAll(dir)
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			logger.Warn(ctx, "dl", "task.timeout",
				slog.String("status", "fail"),
				slog.String("url", task.URL),
				slog.Int64("duration_ms", logger.RoundMS(took)),
			)
			return nil, fmt.Errorf("downloader: task timed out after %s: %w", d.opts.Timeout, context.DeadlineExceeded)
		case ctx.Err() != nil:
			logger.Info(ctx, "dl", "task.cancelled",
				slog.String("status", "ok"),
				slog.String("url", task.URL),
				slog.Int64("duration_ms", logger.RoundMS(took)),
			)
			return nil, ctx.Err()
		default:
			exitCode := -1
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
			runErr := &RunError{ExitCode: exitCode, Stderr: stderrTail.String()}
			logger.Error(ctx, "dl", "task.fail",
				slog.String("status", "fail"),
				slog.String("url", task.URL),
				slog.String("err", logger.SanitizeLimit(runErr.Error(), 512)),
				slog.Int64("duration_ms", logger.RoundMS(took)),
			)
			return nil, runErr
		}
	}

	files, err := collectFiles(dir, "."+d.opts.AudioFormat)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if len(files) == 0 {
		_ = os.RemoveAll(dir)
		logger.Error(ctx, "dl", "task.fail",
			slog.String("status", "fail"),
			slog.String("url", task.URL),
			slog.String("err", ErrNoOutput.Error()),
		)
		return nil, ErrNoOutput
	}

	res := &Result{TaskID: task.ID, Dir: dir, Files: files}
	logger.Info(ctx, "dl", "task.done",
		slog.String("status", "ok"),
		slog.String("kind", taskKind(playlist)),
		slog.Int("items", len(files)),
		slog.Int64("size_bytes", res.TotalSize()),
		slog.Int64("duration_ms", logger.RoundMS(took)),
	)
	return res, nil
}

func (d *Downloader) acquire(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Downloader) release() {
	<-d.sem
}

func (d *Downloader) buildArgs(rawURL, dir string, playlist bool) []string {
	args := []string{
		"-x",
		"--audio-format", d.opts.AudioFormat,
		"--audio-quality", d.opts.AudioQuality,
		"--newline",
	}
	if playlist {
		args = append(args,
			"--yes-playlist",
			"--ignore-errors",
			"--playlist-end", strconv.Itoa(d.opts.PlaylistLimit),
			// Zero-padded index keeps lexicographic and playback order equal.
			"-o", filepath.Join(dir, "%(playlist_index)03d - %(title)s.%(ext)s"),
		)
	} else {
		args = append(args,
			"--no-playlist",
			"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		)
	}
	return append(args, rawURL)
}

func taskKind(playlist bool) string {
	if playlist {
		return "playlist"
	}
	return "single"
}

func collectFiles(dir, ext string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("downloader: scan work dir: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// tailBuffer keeps the last capacity bytes written to it. It bounds the
// amount of stderr retained for error reporting.
type tailBuffer struct {
	buf []byte
	cap int
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{cap: capacity}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.cap {
		t.buf = t.buf[len(t.buf)-t.cap:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
