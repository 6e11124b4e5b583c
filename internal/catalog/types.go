package catalog

// Record is the catalog row describing one uploaded item.
type Record struct {
	ItemID         int64  `json:"item_id"`
	CreatedAt      int64  `json:"create_time"` // epoch seconds
	CategoryID     int    `json:"item_type"`
	SubCategoryID  int    `json:"sub_category"`
	VideoURL       string `json:"video_url"`
	SubtitleURL    string `json:"sub_url"`
	SourceLanguage string `json:"source_lang"`
	TargetLanguage string `json:"target_lang"`
}

// StoredCue is a cue row as persisted, with timestamps already rendered.
type StoredCue struct {
	Sequence  int    `json:"subtitle_id"`
	Source    string `json:"content_eng"`
	Target    string `json:"content_ch"`
	BeginTime string `json:"begin_time"`
	EndTime   string `json:"end_time"`
}
