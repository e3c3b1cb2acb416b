package types

import "time"

// JobState is one step of a transcription job's lifecycle.
type JobState string

const (
	StateCreated      JobState = "created"
	StateExtracting   JobState = "extracting"
	StateSegmenting   JobState = "segmenting"
	StateTranscribing JobState = "transcribing"
	StateAssembling   JobState = "assembling"
	StateCompleted    JobState = "completed"
	StateFailed       JobState = "failed"
	StateCancelled    JobState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ChunkResult is the reportable record of one chunk's outcome.
type ChunkResult struct {
	Index      int     `json:"index"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	OK         bool    `json:"ok"`
	Text       string  `json:"text,omitempty"`
	FailKind   string  `json:"fail_kind,omitempty"`
	StatusCode int     `json:"status_code,omitempty"`
	Detail     string  `json:"detail,omitempty"`
	Attempts   int     `json:"attempts"`
	ElapsedMs  int64   `json:"elapsed_ms"`
}

// Artifacts are the persisted outputs of a completed job.
type Artifacts struct {
	TranscriptPath string `json:"transcript_path"`
	AudioPath      string `json:"audio_path"`
	ReportPath     string `json:"report_path,omitempty"`
}

// JobSnapshot is a point-in-time view of a job, served to progress
// consumers and stored as history.
type JobSnapshot struct {
	ID          string     `json:"id"`
	VideoPath   string     `json:"video_path"`
	State       JobState   `json:"state"`
	Progress    float64    `json:"progress"`
	TotalChunks int        `json:"total_chunks"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Summary     string     `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
	Artifacts   Artifacts  `json:"artifacts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// BatchEntry is one row of a batch manifest.
type BatchEntry struct {
	Row       int    `json:"row"`
	VideoPath string `json:"video_path"`
	Label     string `json:"label,omitempty"`
}

// BatchResult is the outcome of one manifest row in batch mode.
type BatchResult struct {
	Entry          BatchEntry `json:"entry"`
	JobID          string     `json:"job_id"`
	State          JobState   `json:"state"`
	Summary        string     `json:"summary"`
	TotalChunks    int        `json:"total_chunks"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	TranscriptPath string     `json:"transcript_path,omitempty"`
	Error          string     `json:"error,omitempty"`
	ElapsedSec     float64    `json:"elapsed_sec"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Videos       int            `json:"videos"`
	ByState      map[string]int `json:"by_state"`
	ChunksOK     int            `json:"chunks_ok"`
	ChunksFailed int            `json:"chunks_failed"`
	EmptyResults int            `json:"empty_results"`
}
