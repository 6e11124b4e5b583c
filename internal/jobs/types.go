package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	VideoFile     string `json:"video_file"`
	SubtitleFile  string `json:"subtitle_file"`
	CategoryID    int    `json:"category_id"`
	SubCategoryID int    `json:"sub_category_id"`
}

// DedupeKey identifies submissions of the same file pair.
func (p JobPayload) DedupeKey() string {
	return p.VideoFile + "|" + p.SubtitleFile
}

type UploadJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	ItemID    int64      `json:"item_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	seq uint64
}
