// Package downloader wraps the yt-dlp and ffprobe binaries behind a small
// task-oriented API. Every fetch runs in its own temp directory, reports
// progress parsed from the subprocess output, and is bounded by a shared
// concurrency gate.
package downloader
