package downloader

import (
	"regexp"
	"strconv"
	"strings"
)

// Phase names the stage a task is currently in.
type Phase string

const (
	// PhaseDownload covers the network transfer stage.
	PhaseDownload Phase = "download"
	// PhaseConvert covers the audio extraction stage.
	PhaseConvert Phase = "convert"
)

// Progress is a point-in-time snapshot of a running task.
type Progress struct {
	Phase   Phase
	Percent float64
	Speed   string
	ETA     string
	// Item and Items are set only for playlist tasks.
	Item  int
	Items int
}

var (
	percentRe = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%(?:\s+of\s+~?\s*\S+)?(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)
	itemRe    = regexp.MustCompile(`^\[download\] Downloading item (\d+) of (\d+)`)
)

// parseProgressLine extracts a progress update from one line of yt-dlp
// output started with --newline. The second return value reports whether
// the line carried any progress information at all.
func parseProgressLine(line string) (Progress, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Progress{}, false
	}

	if m := itemRe.FindStringSubmatch(line); m != nil {
		item, _ := strconv.Atoi(m[1])
		items, _ := strconv.Atoi(m[2])
		return Progress{Phase: PhaseDownload, Item: item, Items: items}, true
	}

	if m := percentRe.FindStringSubmatch(line); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Progress{}, false
		}
		p := Progress{Phase: PhaseDownload, Percent: pct}
		if m[2] != "" && m[2] != "Unknown" {
			p.Speed = m[2]
		}
		if m[3] != "" && m[3] != "Unknown" {
			p.ETA = m[3]
		}
		return p, true
	}

	if strings.HasPrefix(line, "[ExtractAudio]") {
		return Progress{Phase: PhaseConvert, Percent: 100}, true
	}

	return Progress{}, false
}

// mergeProgress folds an update into the running snapshot. Item markers
// reset per-file counters; percent updates refresh transfer fields.
func mergeProgress(cur, upd Progress) Progress {
	if upd.Items > 0 {
		cur.Item = upd.Item
		cur.Items = upd.Items
		cur.Percent = 0
		cur.Speed = ""
		cur.ETA = ""
	}
	if upd.Phase != "" {
		cur.Phase = upd.Phase
	}
	if upd.Percent > 0 {
		cur.Percent = upd.Percent
		cur.Speed = upd.Speed
		cur.ETA = upd.ETA
	}
	return cur
}
