package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"
)

// CheckBinaries verifies that yt-dlp and ffprobe are resolvable. The
// returned error lists every missing binary so the caller can decide
// whether to continue.
func (d *Downloader) CheckBinaries(ctx context.Context) error {
	var missing []string

	if _, err := exec.LookPath(d.opts.YtdlpPath); err != nil {
		missing = append(missing, d.opts.YtdlpPath)
	} else {
		d.logBinaryVersion(ctx)
	}
	if _, err := exec.LookPath(d.opts.FfprobePath); err != nil {
		missing = append(missing, d.opts.FfprobePath)
	}

	if len(missing) > 0 {
		return fmt.Errorf("downloader: binaries not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (d *Downloader) logBinaryVersion(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(runCtx, d.opts.YtdlpPath, "--version").Output()
	if err != nil {
		return
	}
	logger.Info(ctx, "dl", "binary.check",
		slog.String("status", "ok"),
		slog.String("path", d.opts.YtdlpPath),
		slog.String("version", strings.TrimSpace(string(out))),
	)
}
