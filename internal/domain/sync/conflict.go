package sync

import "time"

// Decision is the conflict resolver's verdict for an incoming write.
type Decision int

const (
	// DecisionApply writes the incoming document over the stored row.
	DecisionApply Decision = iota
	// DecisionSkip discards the incoming document as stale. Skips are logged,
	// never errors.
	DecisionSkip
)

func (d Decision) String() string {
	if d == DecisionSkip {
		return "skip"
	}
	return "apply"
}

// Decide applies last-write-wins on the document-declared update time: the
// incoming write is applied when it is not older than the stored one. Equal
// timestamps apply, which keeps redelivery of the same revision idempotent.
//
// A missing timestamp on either side always applies. Kinds without a
// meaningful update timestamp (forms, reports, imaging, AI logs) never call
// Decide and trust the feed's ordering instead.
func Decide(incoming, stored *time.Time) Decision {
	if incoming == nil || stored == nil {
		return DecisionApply
	}
	if incoming.Before(*stored) {
		return DecisionSkip
	}
	return DecisionApply
}
