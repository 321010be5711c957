package downloader

import "testing"

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Progress
		ok   bool
	}{
		{
			name: "percent with speed and eta",
			line: "[download]  42.3% of 5.30MiB at 1.25MiB/s ETA 00:03",
			want: Progress{Phase: PhaseDownload, Percent: 42.3, Speed: "1.25MiB/s", ETA: "00:03"},
			ok:   true,
		},
		{
			name: "finished line without eta",
			line: "[download] 100% of 5.30MiB in 00:04",
			want: Progress{Phase: PhaseDownload, Percent: 100},
			ok:   true,
		},
		{
			name: "unknown speed is dropped",
			line: "[download]   0.0% of ~3.52MiB at Unknown speed ETA Unknown",
			want: Progress{Phase: PhaseDownload},
			ok:   true,
		},
		{
			name: "playlist item marker",
			line: "[download] Downloading item 3 of 10",
			want: Progress{Phase: PhaseDownload, Item: 3, Items: 10},
			ok:   true,
		},
		{
			name: "extract audio switches phase",
			line: "[ExtractAudio] Destination: /tmp/ytmp3-1/Track.mp3",
			want: Progress{Phase: PhaseConvert, Percent: 100},
			ok:   true,
		},
		{
			name: "unrelated line",
			line: "[youtube] dQw4w9WgXcQ: Downloading webpage",
			ok:   false,
		},
		{
			name: "empty line",
			line: "   ",
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseProgressLine(tc.line)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if got != tc.want {
				t.Fatalf("progress = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMergeProgressItemMarkerResetsCounters(t *testing.T) {
	cur := Progress{Phase: PhaseDownload, Percent: 88.5, Speed: "2MiB/s", ETA: "00:01"}
	upd := Progress{Phase: PhaseDownload, Item: 2, Items: 5}

	got := mergeProgress(cur, upd)
	if got.Item != 2 || got.Items != 5 {
		t.Fatalf("item counters = %d/%d, want 2/5", got.Item, got.Items)
	}
	if got.Percent != 0 || got.Speed != "" || got.ETA != "" {
		t.Fatalf("transfer fields not reset: %+v", got)
	}
}

func TestMergeProgressKeepsItemAcrossPercentUpdates(t *testing.T) {
	cur := Progress{Phase: PhaseDownload, Item: 4, Items: 9}
	upd := Progress{Phase: PhaseDownload, Percent: 17.2, Speed: "900KiB/s", ETA: "01:12"}

	got := mergeProgress(cur, upd)
	if got.Item != 4 || got.Items != 9 {
		t.Fatalf("item counters lost: %+v", got)
	}
	if got.Percent != 17.2 || got.Speed != "900KiB/s" || got.ETA != "01:12" {
		t.Fatalf("transfer fields not applied: %+v", got)
	}
}

func TestMergeProgressConvertKeepsPercent(t *testing.T) {
	cur := Progress{Phase: PhaseDownload, Percent: 100}
	upd := Progress{Phase: PhaseConvert, Percent: 100}

	got := mergeProgress(cur, upd)
	if got.Phase != PhaseConvert {
		t.Fatalf("phase = %s, want %s", got.Phase, PhaseConvert)
	}
	if got.Percent != 100 {
		t.Fatalf("percent = %v, want 100", got.Percent)
	}
}
