package model

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionSkipped ExecutionStatus = "skipped"
	ExecutionError   ExecutionStatus = "error"
)

type ExecutionResult struct {
	Action      Action            `json:"action"`
	Status      ExecutionStatus   `json:"status"`
	Output      map[string]any    `json:"output,omitempty"`
	ExternalIDs map[string]string `json:"externalIds,omitempty"`
	Error       string            `json:"error,omitempty"`
	SkippedBy   string            `json:"skippedBy,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	DurationMs  int64             `json:"durationMs"`
}
