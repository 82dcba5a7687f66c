package example

type ActionType string

const (
	ActionAdjustPrice ActionType = "adjust_price"
	ActionPauseItem   ActionType = "pause_item"
)

type JobStatus string

const (
	JobStatusQueued JobStatus = "queued"
	JobStatusDone   JobStatus = "done"
)

type Action struct {
	Type ActionType
}

type Job struct {
	Status JobStatus
	Error  string
}

func bad() {
	a := &Action{}
	a.Type = "adjust-price" // want "enum field Type assigned string literal"

	j := Job{Status: "finished"} // want "enum field Status set to string literal"
	j.Status = "done"            // want "enum field Status assigned string literal"
	_ = j
}

func good() {
	a := &Action{Type: ActionPauseItem}
	a.Type = ActionAdjustPrice

	j := Job{Status: JobStatusQueued, Error: "free text is fine"}
	j.Status = JobStatusDone
	_ = j
}

func alsoGood() {
	status := JobStatusDone
	j := Job{Status: status}
	_ = j
}
