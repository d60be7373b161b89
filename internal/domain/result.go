package domain

// ResultSegment is one synthesized note section aligned to playback time.
type ResultSegment struct {
	StartSec float64 `json:"startSec"`
	EndSec   float64 `json:"endSec"`
	Heading  string  `json:"heading,omitempty"`
	Text     string  `json:"text"`
}

// Result is the synthesized output of a completed task. It is fetched once
// per entry into the completed phase and never mutated afterwards.
type Result struct {
	TaskID   string          `json:"taskId"`
	Notes    string          `json:"notes"`
	Summary  string          `json:"summary,omitempty"`
	Segments []ResultSegment `json:"segments,omitempty"`
}
