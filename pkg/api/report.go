package api

import "time"

type (
	// RunReport summarizes a pipeline run as recorded on its snapshot
	RunReport struct {
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`
		Pipeline   string    `json:"pipeline"`
		Snapshot   string    `json:"snapshot"`
		Error      string    `json:"error,omitempty"`
		Steps      []*Step   `json:"steps"`
	}
)

// Failed reports whether any executed step returned a non-zero exit code
func (r *RunReport) Failed() bool {
	for _, s := range r.Steps {
		if res, ok := s.Result(); ok && !res.Succeeded() {
			return true
		}
	}
	return r.Error != ""
}

// Executed returns the steps that carry a recorded result
func (r *RunReport) Executed() []*Step {
	var res []*Step
	for _, s := range r.Steps {
		if _, ok := s.Result(); ok {
			res = append(res, s)
		}
	}
	return res
}
