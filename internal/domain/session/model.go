package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no session matches a lookup.
var ErrNotFound = errors.New("session not found")

// Stage is the coarse lifecycle phase of a visit, distinct from the
// fine-grained workflow state.
type Stage string

const (
	StageRegistration Stage = "registration"
	StageAssessment   Stage = "assessment"
	StageTreatment    Stage = "treatment"
	StageDischarge    Stage = "discharge"
)

// Priority is the triage severity, ordered red > yellow > green > unknown.
type Priority string

const (
	PriorityRed     Priority = "red"
	PriorityYellow  Priority = "yellow"
	PriorityGreen   Priority = "green"
	PriorityUnknown Priority = "unknown"
)

var priorityRank = map[Priority]int{
	PriorityRed:     3,
	PriorityYellow:  2,
	PriorityGreen:   1,
	PriorityUnknown: 0,
}

// ParsePriority normalizes a raw priority value; anything unrecognized maps
// to unknown.
func ParsePriority(raw string) Priority {
	switch Priority(raw) {
	case PriorityRed, PriorityYellow, PriorityGreen:
		return Priority(raw)
	default:
		return PriorityUnknown
	}
}

// Rank orders priorities for severity comparisons.
func (p Priority) Rank() int { return priorityRank[p] }

// Session maps to the clinical_session table: one clinical visit.
type Session struct {
	ID             int64      `db:"id" json:"id"`
	PatientID      int64      `db:"patient_id" json:"patient_id"`
	DocID          *string    `db:"doc_id" json:"doc_id,omitempty"`
	Stage          Stage      `db:"stage" json:"stage"`
	State          State      `db:"state" json:"state"`
	Priority       Priority   `db:"priority" json:"priority"`
	Complaint      *string    `db:"complaint" json:"complaint,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	TreatmentPlan  *string    `db:"treatment_plan" json:"treatment_plan,omitempty"`
	DocUpdatedAt   *time.Time `db:"doc_updated_at" json:"doc_updated_at,omitempty"`
	StateUpdatedAt time.Time  `db:"state_updated_at" json:"state_updated_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Closed reports whether the session has reached its terminal state.
func (s *Session) Closed() bool { return s.State == StateClosed }

// Transition maps to the state_transition table: the append-only audit trail
// of every workflow-state change. Rows are never mutated or deleted; replaying
// them in timestamp order reconstructs the session's current state.
type Transition struct {
	ID        int64             `db:"id" json:"id"`
	SessionID int64             `db:"session_id" json:"session_id"`
	FromState State             `db:"from_state" json:"from_state"`
	ToState   State             `db:"to_state" json:"to_state"`
	ActorID   *int64            `db:"actor_id" json:"actor_id,omitempty"`
	Reason    string            `db:"reason" json:"reason"`
	Metadata  map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// ReplayState re-derives the workflow state from an ordered audit trail.
// Used as a governance consistency check against the stored state.
func ReplayState(history []*Transition) State {
	state := StateNew
	for _, t := range history {
		state = t.ToState
	}
	return state
}
