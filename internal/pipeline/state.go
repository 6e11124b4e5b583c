package pipeline

import (
	"fmt"
	"time"
)

// State is the position of the current submission in the upload state machine:
// Idle -> Uploading -> {UploadFailed | Uploaded}, Uploaded -> {CatalogFailed | Catalogued}.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateUploaded
	StateUploadFailed
	StateCatalogFailed
	StateCatalogued
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateUploading:     "uploading",
	StateUploaded:      "uploaded",
	StateUploadFailed:  "upload_failed",
	StateCatalogFailed: "catalog_failed",
	StateCatalogued:    "catalogued",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s ends a submission.
func (s State) Terminal() bool {
	return s == StateUploadFailed || s == StateCatalogFailed || s == StateCatalogued
}

// InFlight reports whether a submission currently owns the pipeline.
func (s State) InFlight() bool {
	return s == StateUploading || s == StateUploaded
}

const (
	FileVideo    = "video"
	FileSubtitle = "subtitle"
)

// Snapshot is an immutable view of pipeline status. A new value is published for
// every change, so readers always see state and progress as one unit.
type Snapshot struct {
	Version uint64 `json:"version"`
	State   State  `json:"state"`
	ItemID  int64  `json:"item_id,omitempty"`

	// ActiveFile is the file currently transferring, "video" or "subtitle".
	ActiveFile string `json:"active_file,omitempty"`
	// Percentage is the progress of ActiveFile, or of the last transfer once uploads end.
	Percentage         int `json:"percentage"`
	VideoPercentage    int `json:"video_percentage"`
	SubtitlePercentage int `json:"subtitle_percentage"`
	Overall            int `json:"overall"`

	VideoURL    string `json:"video_url,omitempty"`
	SubtitleURL string `json:"sub_url,omitempty"`
	CueCount    int    `json:"cue_count,omitempty"`

	Err         error  `json:"-"`
	Error       string `json:"error,omitempty"`
	LedgerError string `json:"ledger_error,omitempty"`

	StartedAt time.Time `json:"started_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (s *Snapshot) setProgress(file string, pct int) {
	switch file {
	case FileVideo:
		if pct > s.VideoPercentage {
			s.VideoPercentage = pct
		}
		s.Percentage = s.VideoPercentage
	case FileSubtitle:
		if pct > s.SubtitlePercentage {
			s.SubtitlePercentage = pct
		}
		s.Percentage = s.SubtitlePercentage
	}
	s.ActiveFile = file
	s.Overall = (s.VideoPercentage + s.SubtitlePercentage) / 2
}

func (s *Snapshot) fail(state State, err error) {
	s.State = state
	s.Err = err
	if err != nil {
		s.Error = err.Error()
	}
}

func percent(consumed, total int64) int {
	if total <= 0 {
		return 0
	}
	if consumed >= total {
		return 100
	}
	if consumed <= 0 {
		return 0
	}
	return int(consumed * 100 / total)
}
