package model

import "time"

// CycleReport is the durable record of one completed cycle. Written once.
type CycleReport struct {
	CycleID          string            `json:"cycleId"`
	JobID            string            `json:"jobId"`
	CreatedAt        time.Time         `json:"createdAt"`
	Snapshot         Snapshot          `json:"snapshot"`
	ProposedPlan     Plan              `json:"proposedPlan"`
	GovernorDecision GovernorDecision  `json:"governorDecision"`
	ExecutionResults []ExecutionResult `json:"executionResults"`
	DryRun           bool              `json:"dryRun"`
	Apply            bool              `json:"apply"`
}

// ReportSummary is the compact form of a report fed back to the planner.
type ReportSummary struct {
	CycleID   string `json:"cycleId"`
	Approved  int    `json:"approved"`
	Rejected  int    `json:"rejected"`
	Rationale string `json:"rationale"`
}

func (r CycleReport) Summary() ReportSummary {
	rationale := r.ProposedPlan.Rationale
	if rationale == "" {
		rationale = "n/a"
	}
	return ReportSummary{
		CycleID:   r.CycleID,
		Approved:  len(r.GovernorDecision.ApprovedActions),
		Rejected:  len(r.GovernorDecision.RejectedActions),
		Rationale: rationale,
	}
}

// CycleRequest holds the caller inputs that shape one cycle.
type CycleRequest struct {
	WindowHours int  `json:"windowHours"`
	DryRun      bool `json:"dryRun"`
	Apply       bool `json:"apply"`
}
