package ledger

import "fmt"

// Status is the terminal outcome recorded for an upload attempt. The numeric
// values are the ones stored in existing history files.
type Status int

const (
	StatusCatalogFailed Status = 2
	StatusCatalogued    Status = 3
	StatusUploadFailed  Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusCatalogFailed:
		return "catalog_failed"
	case StatusCatalogued:
		return "catalogued"
	case StatusUploadFailed:
		return "upload_failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Retryable reports whether the entry's remote objects exist but its catalog rows do not.
func (s Status) Retryable() bool {
	return s == StatusCatalogFailed
}

// Discardable reports whether the entry may have remote objects worth deleting.
func (s Status) Discardable() bool {
	return s == StatusCatalogFailed || s == StatusUploadFailed
}

// Entry is one line of upload history.
type Entry struct {
	ItemID        int64  `json:"item_id"`
	CreatedAt     int64  `json:"create_time"`
	CategoryID    int    `json:"item_type"`
	SubCategoryID int    `json:"sub_category"`
	VideoURL      string `json:"video_url"`
	SubtitleURL   string `json:"sub_url"`
	Status        Status `json:"upload_status"`
	Error         string `json:"error,omitempty"`
	AttemptID     string `json:"attempt_id,omitempty"`
	UpdatedAt     int64  `json:"update_time,omitempty"`
}
