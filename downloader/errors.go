package downloader

import (
	"errors"
	"fmt"
)

// ErrNoOutput indicates yt-dlp finished without producing any audio files.
var ErrNoOutput = errors.New("downloader: no output files produced")

// RunError describes a failed yt-dlp subprocess run.
type RunError struct {
	ExitCode int
	Stderr   string
}

func (e *RunError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("yt-dlp exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("yt-dlp exited with code %d", e.ExitCode)
}

// Code labels the failure kind for structured logs.
func (e *RunError) Code() string { return "YTDLP_EXIT" }
