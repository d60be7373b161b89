package domain

// Session is the read-only snapshot of the one active task exposed to the UI.
// SosMarks holds user-recorded confusion timestamps in playback order; the
// slice is append-only and replaced wholesale when a new task starts.
type Session struct {
	TaskID        string     `json:"taskId"`
	VideoURL      string     `json:"videoUrl,omitempty"`
	Status        TaskStatus `json:"status"`
	Result        *Result    `json:"result,omitempty"`
	SosMarks      []float64  `json:"sosMarks"`
	PollingActive bool       `json:"pollingActive"`
}
