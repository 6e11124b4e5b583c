package subtitle

import "time"

// clockFormat renders a cue offset as a wall-clock-of-day string.
const clockFormat = "15:04:05,000"

// Cue represents a single bilingual subtitle entry
type Cue struct {
	Sequence int           // 1-based, contiguous, assigned in file order
	Begin    time.Duration // offset from start of video
	End      time.Duration
	Source   string // first text line
	Target   string // second text line
}

// BeginTimestamp returns the begin offset as HH:MM:SS,mmm in UTC.
func (c Cue) BeginTimestamp() string {
	return clock(c.Begin)
}

// EndTimestamp returns the end offset as HH:MM:SS,mmm in UTC.
func (c Cue) EndTimestamp() string {
	return clock(c.End)
}

func clock(d time.Duration) string {
	return time.UnixMilli(d.Milliseconds()).UTC().Format(clockFormat)
}

// Languages holds the languages detected on each text track of a cue list.
type Languages struct {
	Source string
	Target string
}
