package models

// Step statuses reported during ingestion.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepError      = "error"
)

// ProgressStep is one reportable phase of the ingestion pipeline.
type ProgressStep struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Details     string `json:"details,omitempty"`
}

// ProcessingProgress is a point-in-time snapshot streamed to the caller
// while a PDF is being ingested.
type ProcessingProgress struct {
	CurrentStep     int            `json:"current_step"`
	TotalSteps      int            `json:"total_steps"`
	Steps           []ProgressStep `json:"steps"`
	OverallProgress int            `json:"overall_progress"`
}

// ProgressCallback receives progress snapshots during ingestion.
type ProgressCallback func(ProcessingProgress)

// IngestResult is the final outcome of one PDF ingestion.
type IngestResult struct {
	Success    bool   `json:"success"`
	PageCount  int    `json:"page_count"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}
