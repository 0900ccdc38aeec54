package api

// TaskView describes one pipeline task in a transport-friendly format.
type TaskView struct {
	ID          string  `json:"id"`
	User        string  `json:"user"`
	Name        string  `json:"name"`
	Message     string  `json:"message"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
	StartTime   string  `json:"startTime,omitempty"`
	EndTime     string  `json:"endTime,omitempty"`
	Cancellable bool    `json:"cancellable"`
}

// SubmitRequest is the body for a new URL submission.
type SubmitRequest struct {
	MediaURL  string `json:"media_url"`
	NotifyURL string `json:"notify_url"`
	User      string `json:"user"`
}

// SubmitResponse acknowledges a submission with the assigned task id.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// TaskListResponse wraps task snapshots for polling clients.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// CancelResponse reports whether a cancellation request was accepted.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// CaptionPassage is one merged transcript passage in a search result.
type CaptionPassage struct {
	MediaID int64   `json:"media_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// CaptionSearchResponse carries caption search results. IDs are book ids
// where a mapping exists and media ids otherwise, ordered by first match.
type CaptionSearchResponse struct {
	IDs      []string         `json:"ids"`
	Passages []CaptionPassage `json:"passages"`
}

// TitleSearchResponse carries titles matched by the external tool's own
// full-text search.
type TitleSearchResponse struct {
	Titles []string `json:"titles"`
}

// DaemonStatus summarizes daemon runtime state.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Workers      int            `json:"workers"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	TaskCounts   map[string]int `json:"taskCounts"`
}
