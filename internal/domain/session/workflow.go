package session

import (
	"fmt"
	"sort"
)

// State is the fine-grained workflow state of a clinical session.
type State string

const (
	StateNew            State = "NEW"
	StateTriaged        State = "TRIAGED"
	StateReferred       State = "REFERRED"
	StateInReview       State = "IN_REVIEW"
	StateUnderTreatment State = "UNDER_TREATMENT"
	StateClosed         State = "CLOSED"
)

// States lists every workflow state in lifecycle order.
var States = []State{
	StateNew, StateTriaged, StateReferred, StateInReview, StateUnderTreatment, StateClosed,
}

// Valid reports whether s is one of the enumerated workflow states.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool { return s == StateClosed }

// ParseState normalizes a raw state value.
func ParseState(raw string) (State, bool) {
	s := State(raw)
	return s, s.Valid()
}

// TransitionError reports an attempt to move a session along an edge that is
// not in the legal-transition table. It is recoverable: the caller should
// re-query allowed transitions and retry with a legal target.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal workflow transition %s -> %s", e.From, e.To)
}

// ReasonRequiredError reports a transition that demands a non-empty
// justification but received none.
type ReasonRequiredError struct {
	From State
	To   State
}

func (e *ReasonRequiredError) Error() string {
	return fmt.Sprintf("transition %s -> %s requires a reason", e.From, e.To)
}

type statePair struct {
	from State
	to   State
}

// Workflow owns the legal-transition table, the reason-required subset, and
// the per-edge reason vocabulary. It is immutable after construction, so a
// single instance is safe to share across workers.
type Workflow struct {
	transitions    map[State][]State
	reasonRequired map[statePair]bool
	reasons        map[statePair][]string
}

// DefaultWorkflow builds the clinical encounter lifecycle:
//
//	NEW             -> TRIAGED
//	TRIAGED         -> REFERRED, UNDER_TREATMENT, CLOSED
//	REFERRED        -> IN_REVIEW, CLOSED
//	IN_REVIEW       -> UNDER_TREATMENT, REFERRED, CLOSED
//	UNDER_TREATMENT -> CLOSED, IN_REVIEW
//	CLOSED          -> (terminal)
//
// Every transition into REFERRED or CLOSED requires a justification.
func DefaultWorkflow() *Workflow {
	wf := &Workflow{
		transitions: map[State][]State{
			StateNew:            {StateTriaged},
			StateTriaged:        {StateReferred, StateUnderTreatment, StateClosed},
			StateReferred:       {StateInReview, StateClosed},
			StateInReview:       {StateUnderTreatment, StateReferred, StateClosed},
			StateUnderTreatment: {StateClosed, StateInReview},
			StateClosed:         {},
		},
		reasonRequired: make(map[statePair]bool),
		reasons: map[statePair][]string{
			{StateNew, StateTriaged}:             {ReasonAssessmentCompleted},
			{StateTriaged, StateReferred}:        {ReasonSpecialistRequired, ReasonSecondOpinion, ReasonEscalation},
			{StateTriaged, StateUnderTreatment}:  {ReasonTreatmentStarted},
			{StateTriaged, StateClosed}:          {ReasonNoTreatmentRequired, ReasonPatientLeft, ReasonDeceased},
			{StateReferred, StateInReview}:       {ReasonReferralAccepted},
			{StateReferred, StateClosed}:         {ReasonReferralRejected, ReasonPatientLeft},
			{StateInReview, StateUnderTreatment}: {ReasonTreatmentStarted},
			{StateInReview, StateReferred}:       {ReasonSpecialistRequired, ReasonSecondOpinion},
			{StateInReview, StateClosed}:         {ReasonResolvedInReview, ReasonReferralRejected},
			{StateUnderTreatment, StateClosed}:   {ReasonTreatmentCompleted, ReasonPatientLeft, ReasonDeceased},
			{StateUnderTreatment, StateInReview}: {ReasonComplicationReview},
		},
	}

	for from, targets := range wf.transitions {
		for _, to := range targets {
			if to == StateReferred || to == StateClosed {
				wf.reasonRequired[statePair{from, to}] = true
			}
		}
	}

	return wf
}

// Standardized reason vocabulary used by the convenience wrappers.
const (
	ReasonAssessmentCompleted  = "assessment_completed"
	ReasonSpecialistRequired   = "specialist_required"
	ReasonSecondOpinion        = "second_opinion"
	ReasonEscalation           = "escalation"
	ReasonTreatmentStarted     = "treatment_started"
	ReasonTreatmentCompleted   = "treatment_completed"
	ReasonNoTreatmentRequired  = "no_treatment_required"
	ReasonReferralAccepted     = "referral_accepted"
	ReasonReferralRejected     = "referral_rejected"
	ReasonResolvedInReview     = "resolved_in_review"
	ReasonComplicationReview   = "complication_review"
	ReasonPatientLeft          = "patient_left"
	ReasonDeceased             = "deceased"
	ReasonAutoTriageEscalation = "auto_triage_escalation"
)

// CanTransition is a pure predicate over the legal-transition table. It is
// safe to call for UI hints without committing anything.
func (w *Workflow) CanTransition(from, to State) bool {
	for _, allowed := range w.transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal next states from a given state.
func (w *Workflow) AllowedTransitions(from State) []State {
	return append([]State(nil), w.transitions[from]...)
}

// ReasonRequired reports whether the (from, to) edge demands a non-empty
// justification.
func (w *Workflow) ReasonRequired(from, to State) bool {
	return w.reasonRequired[statePair{from, to}]
}

// ValidReasons returns the configured reason vocabulary for an edge. An
// empty result means any free-text reason (or none, if not required) is
// acceptable.
func (w *Workflow) ValidReasons(from, to State) []string {
	return append([]string(nil), w.reasons[statePair{from, to}]...)
}

// Config is the read-only workflow description exposed to external UI and
// reporting collaborators so they can render legal next actions without
// duplicating the transition table.
type Config struct {
	States            []State             `json:"states"`
	Transitions       map[State][]State   `json:"transitions"`
	TransitionReasons map[string][]string `json:"transitionReasons"`
}

// Config returns a copy of the workflow's transition table and reason
// vocabulary.
func (w *Workflow) Config() Config {
	cfg := Config{
		States:            append([]State(nil), States...),
		Transitions:       make(map[State][]State, len(w.transitions)),
		TransitionReasons: make(map[string][]string, len(w.reasons)),
	}
	for from, targets := range w.transitions {
		cfg.Transitions[from] = append([]State(nil), targets...)
	}
	for edge, vocab := range w.reasons {
		key := fmt.Sprintf("%s->%s", edge.from, edge.to)
		cfg.TransitionReasons[key] = append([]string(nil), vocab...)
	}
	for _, vocab := range cfg.TransitionReasons {
		sort.Strings(vocab)
	}
	return cfg
}
