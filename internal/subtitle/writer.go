package subtitle

import (
	"bytes"
	"fmt"
	"time"
)

// Render writes cues as an SRT document with two text lines per cue. The output parses back
// to the same cues with Extract.
func Render(cues []Cue) []byte {
	var buf bytes.Buffer
	for i, cue := range cues {
		// write index
		fmt.Fprintf(&buf, "%d\n", i+1)

		// write time
		fmt.Fprintf(&buf, "%s --> %s\n", formatDuration(cue.Begin), formatDuration(cue.End))

		fmt.Fprintf(&buf, "%s\n%s\n\n", cue.Source, cue.Target)
	}
	return buf.Bytes()
}

// formatDuration formats time.Duration to SRT time format
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
