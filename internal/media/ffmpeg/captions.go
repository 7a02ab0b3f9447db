package ffmpeg

import (
	"fmt"
	"os"
	"strings"

	"clipper/internal/transcript"
)

// WriteSRT renders the transcript segments that overlap a clip window
// into an SRT file, with timestamps shifted to clip-local time.
// Returns false when no segment overlaps the window.
func WriteSRT(path string, segments []transcript.Segment, clipStart, clipEnd float64) (bool, error) {
	body := BuildSRT(segments, clipStart, clipEnd)
	if body == "" {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return false, fmt.Errorf("write captions: %w", err)
	}
	return true, nil
}

// BuildSRT produces SRT text for the clip window.
func BuildSRT(segments []transcript.Segment, clipStart, clipEnd float64) string {
	var b strings.Builder
	index := 1
	for _, seg := range segments {
		if seg.End <= clipStart || seg.Start >= clipEnd || seg.IsFiller() {
			continue
		}
		start := seg.Start - clipStart
		if start < 0 {
			start = 0
		}
		end := seg.End - clipStart
		if end > clipEnd-clipStart {
			end = clipEnd - clipStart
		}
		if end <= start {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", index, srtTimestamp(start), srtTimestamp(end), strings.TrimSpace(seg.Text))
		index++
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	millis := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, millis)
}
