package downloader

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const ffprobeTimeout = 15 * time.Second

// DurationSeconds reads the duration of a local media file via ffprobe.
// A zero duration with nil error means ffprobe could not tell.
func (d *Downloader) DurationSeconds(ctx context.Context, path string) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, d.opts.FfprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("downloader: ffprobe %s: %w", path, err)
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("downloader: parse ffprobe duration %q: %w", raw, err)
	}
	return int(seconds + 0.5), nil
}
