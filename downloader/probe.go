package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"
)

const probeTimeout = 30 * time.Second

// Info describes a single video resolved by Probe.
type Info struct {
	Title    string
	Uploader string
	// Duration is the source duration in whole seconds.
	Duration int
}

// PlaylistInfo describes a playlist resolved by ProbePlaylist.
type PlaylistInfo struct {
	Title string
	Count int
}

// Probe resolves metadata of a single video without downloading it.
func (d *Downloader) Probe(ctx context.Context, rawURL string) (*Info, error) {
	out, err := d.probeJSON(ctx, rawURL, "--no-playlist")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Title    string  `json:"title"`
		Uploader string  `json:"uploader"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("downloader: parse probe output: %w", err)
	}
	return &Info{
		Title:    payload.Title,
		Uploader: payload.Uploader,
		Duration: int(payload.Duration),
	}, nil
}

// ProbePlaylist resolves the title and entry count of a playlist without
// downloading anything. The count is capped by the playlist limit.
func (d *Downloader) ProbePlaylist(ctx context.Context, rawURL string) (*PlaylistInfo, error) {
	out, err := d.probeJSON(ctx, rawURL,
		"--flat-playlist",
		"--yes-playlist",
		"--playlist-end", strconv.Itoa(d.opts.PlaylistLimit),
	)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Title   string            `json:"title"`
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("downloader: parse playlist probe output: %w", err)
	}
	return &PlaylistInfo{
		Title: payload.Title,
		Count: len(payload.Entries),
	}, nil
}

func (d *Downloader) probeJSON(ctx context.Context, rawURL string, extra ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := append([]string{"-J"}, extra...)
	args = append(args, rawURL)

	start := time.Now()
	out, err := exec.CommandContext(runCtx, d.opts.YtdlpPath, args...).Output()
	took := time.Since(start)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("downloader: probe: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			tail := newTailBuffer(1024)
			_, _ = tail.Write(exitErr.Stderr)
			runErr := &RunError{ExitCode: exitErr.ExitCode(), Stderr: tail.String()}
			logger.Warn(ctx, "dl", "probe.fail",
				slog.String("status", "fail"),
				slog.String("url", rawURL),
				slog.String("err", logger.SanitizeLimit(runErr.Error(), 256)),
				slog.Int64("duration_ms", logger.RoundMS(took)),
			)
			return nil, runErr
		}
		return nil, fmt.Errorf("downloader: probe: %w", err)
	}

	logger.Debug(ctx, "dl", "probe.done",
		slog.String("status", "ok"),
		slog.String("url", rawURL),
		slog.Int64("duration_ms", logger.RoundMS(took)),
	)
	return out, nil
}
