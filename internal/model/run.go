package model

import "time"

// RunStatus is the state of a pipeline run
type RunStatus string

const (
	StatusIdle       RunStatus = "idle"
	StatusGenerating RunStatus = "generating"
	StatusVerifying  RunStatus = "verifying"
	StatusComplete   RunStatus = "complete"
	StatusError      RunStatus = "error"
)

var transitions = map[RunStatus][]RunStatus{
	StatusIdle:       {StatusGenerating, StatusVerifying},
	StatusGenerating: {StatusVerifying, StatusError},
	StatusVerifying:  {StatusComplete, StatusError},
}

// CanTransition reports whether a run may move from s to next
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s RunStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Run is the externally visible record of one pipeline run.
// Sinks receive snapshots of it after every transition.
type Run struct {
	ID        string               `json:"id" bson:"_id"`
	Question  string               `json:"question" bson:"question"`
	Answer    string               `json:"answer" bson:"answer"`
	Status    RunStatus            `json:"status" bson:"status"`
	Claims    []Claim              `json:"claims" bson:"claims"`
	Results   []VerificationResult `json:"results" bson:"results"`
	Dropped   []DroppedClaim       `json:"dropped,omitempty" bson:"dropped,omitempty"`
	Metrics   *TrustMetrics        `json:"metrics" bson:"metrics"`
	Error     string               `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" bson:"updated_at"`
}

// Clone returns a copy that shares no slices with r
func (r Run) Clone() Run {
	out := r
	out.Claims = append([]Claim(nil), r.Claims...)
	out.Results = make([]VerificationResult, len(r.Results))
	for i, res := range r.Results {
		res.Evidence = append([]string(nil), res.Evidence...)
		out.Results[i] = res
	}
	out.Dropped = append([]DroppedClaim(nil), r.Dropped...)
	if r.Metrics != nil {
		m := *r.Metrics
		out.Metrics = &m
	}
	return out
}
