package model

import "basegraph.app/storepilot/core/config"

type Rejection struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// GovernorDecision partitions a plan into approved and rejected actions.
type GovernorDecision struct {
	ApprovedActions []Action           `json:"approvedActions"`
	RejectedActions []Rejection        `json:"rejectedActions"`
	ConstraintsUsed config.Constraints `json:"constraintsUsed"`
}
