package dto

import (
	"basegraph.app/storepilot/internal/model"
)

type TriggerCycleRequest struct {
	WindowHours int  `json:"windowHours" binding:"omitempty,min=1,max=720"`
	DryRun      bool `json:"dryRun"`
}

type TriggerCycleResponse struct {
	JobID   string          `json:"jobId"`
	CycleID string          `json:"cycleId"`
	Status  model.JobStatus `json:"status"`
}

func ToTriggerCycleResponse(j *model.Job) *TriggerCycleResponse {
	return &TriggerCycleResponse{
		JobID:   j.JobID,
		CycleID: j.CycleID,
		Status:  j.Status,
	}
}

type ReportListResponse struct {
	Reports []model.CycleReport `json:"reports"`
	Count   int                 `json:"count"`
}

func ToReportListResponse(reports []model.CycleReport) *ReportListResponse {
	if reports == nil {
		reports = []model.CycleReport{}
	}
	return &ReportListResponse{Reports: reports, Count: len(reports)}
}
