package model

type PlannerStatus string

const (
	PlannerStatusOK       PlannerStatus = "ok"
	PlannerStatusFallback PlannerStatus = "fallback"
)

// PlannerMeta records how a plan was produced.
type PlannerMeta struct {
	Status     PlannerStatus `json:"status"`
	Provider   string        `json:"provider,omitempty"`
	Model      string        `json:"model,omitempty"`
	Message    string        `json:"message,omitempty"`
	ErrorCode  string        `json:"errorCode,omitempty"`
	AIDisabled bool          `json:"aiDisabled,omitempty"`
}

type Hypothesis struct {
	Metric        string  `json:"metric"`
	ExpectedDelta string  `json:"expectedDelta"`
	HorizonHours  FlexInt `json:"horizonHours"`
}

type Plan struct {
	Actions     []Action     `json:"actions"`
	Rationale   string       `json:"rationale"`
	Hypotheses  []Hypothesis `json:"hypotheses"`
	PlannerMeta PlannerMeta  `json:"plannerMeta"`
}
