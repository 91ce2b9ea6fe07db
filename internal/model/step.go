package model

// Step statuses reported in StepResult.
const (
	StepOK       = "ok"
	StepError    = "error"    // fatal step failed, emission aborted
	StepDegraded = "degraded" // best-effort step failed, emission continued
	StepSkipped  = "skipped"  // not run because an earlier fatal step failed
)

// StepResult captures the outcome of a processing step.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"` // error kind, when the step failed
}
