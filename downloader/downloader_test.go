package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	d := New(Options{})
	if d.opts.YtdlpPath != "yt-dlp" {
		t.Fatalf("ytdlp path = %q", d.opts.YtdlpPath)
	}
	if d.opts.FfprobePath != "ffprobe" {
		t.Fatalf("ffprobe path = %q", d.opts.FfprobePath)
	}
	if d.opts.AudioFormat != "mp3" || d.opts.AudioQuality != "192K" {
		t.Fatalf("audio defaults = %q/%q", d.opts.AudioFormat, d.opts.AudioQuality)
	}
	if d.opts.Timeout != 10*time.Minute {
		t.Fatalf("timeout = %s", d.opts.Timeout)
	}
	if d.opts.PlaylistLimit != 50 || d.opts.Concurrency != 2 {
		t.Fatalf("limits = %d/%d", d.opts.PlaylistLimit, d.opts.Concurrency)
	}
	if cap(d.sem) != 2 {
		t.Fatalf("semaphore capacity = %d", cap(d.sem))
	}
}

func TestBuildArgsSingle(t *testing.T) {
	d := New(Options{AudioFormat: "mp3", AudioQuality: "192K"})
	args := d.buildArgs("https://youtu.be/abc", "/tmp/work", false)

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-x",
		"--audio-format mp3",
		"--audio-quality 192K",
		"--newline",
		"--no-playlist",
		"-o " + filepath.Join("/tmp/work", "%(title)s.%(ext)s"),
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "--yes-playlist") {
		t.Fatalf("single fetch must not opt into playlists: %s", joined)
	}
	if args[len(args)-1] != "https://youtu.be/abc" {
		t.Fatalf("url must be the last argument, got %q", args[len(args)-1])
	}
}

func TestBuildArgsPlaylist(t *testing.T) {
	d := New(Options{PlaylistLimit: 25})
	args := d.buildArgs("https://www.youtube.com/playlist?list=PL123", "/tmp/work", true)

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--yes-playlist",
		"--ignore-errors",
		"--playlist-end 25",
		"%(playlist_index)03d - %(title)s.%(ext)s",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "--no-playlist") {
		t.Fatalf("playlist fetch must not suppress playlists: %s", joined)
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("002 - Second.mp3", "bb")
	write("001 - First.mp3", "a")
	write("notes.txt", "skip me")
	write("upper.MP3", "ccc")

	files, err := collectFiles(dir, ".mp3")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("file count = %d, want 3", len(files))
	}
	if files[0].Name() != "001 - First.mp3" || files[1].Name() != "002 - Second.mp3" {
		t.Fatalf("files not sorted: %v, %v", files[0].Name(), files[1].Name())
	}
	if files[0].Size != 1 || files[1].Size != 2 {
		t.Fatalf("sizes = %d, %d", files[0].Size, files[1].Size)
	}
}

func TestFileTitle(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/work/007 - Some Track.mp3", "Some Track"},
		{"/work/Plain Title.mp3", "Plain Title"},
		{"/work/12 - 34 - Nested Dashes.mp3", "34 - Nested Dashes"},
	}
	for _, tc := range cases {
		got := File{Path: tc.path}.Title()
		if got != tc.want {
			t.Fatalf("Title(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestResultTotalSize(t *testing.T) {
	res := &Result{Files: []File{{Size: 100}, {Size: 250}}}
	if got := res.TotalSize(); got != 350 {
		t.Fatalf("total size = %d, want 350", got)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	d := New(Options{Concurrency: 1})
	if err := d.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second acquire err = %v, want deadline exceeded", err)
	}

	d.release()
	if err := d.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestTailBufferKeepsTail(t *testing.T) {
	tb := newTailBuffer(8)
	if _, err := tb.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := tb.String(); got != "89abcdef" {
		t.Fatalf("tail = %q, want 89abcdef", got)
	}
}

func TestNewTaskIDUnique(t *testing.T) {
	a, b := NewTaskID(), NewTaskID()
	if a == "" || b == "" || a == b {
		t.Fatalf("task ids not unique: %q, %q", a, b)
	}
}

func TestRunErrorCode(t *testing.T) {
	err := &RunError{ExitCode: 1, Stderr: "ERROR: Unsupported URL"}
	if err.Code() != "YTDLP_EXIT" {
		t.Fatalf("code = %q", err.Code())
	}
	if !strings.Contains(err.Error(), "Unsupported URL") {
		t.Fatalf("error text = %q", err.Error())
	}
}
