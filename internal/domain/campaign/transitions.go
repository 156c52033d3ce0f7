// internal/domain/campaign/transitions.go
package campaign

// transitionTable is the static map of legal status edges. Loaded once,
// read-only. Guard conditions (date checks) live in the state manager; this
// table only answers legality.
var transitionTable = map[Status][]Status{
	StatusDraft:     {StatusScheduled, StatusActive, StatusArchived},
	StatusScheduled: {StatusActive, StatusDraft, StatusExpired, StatusArchived},
	StatusActive:    {StatusPaused, StatusScheduled, StatusExpired, StatusDraft, StatusArchived},
	StatusPaused:    {StatusActive, StatusScheduled, StatusExpired, StatusDraft, StatusArchived},
	StatusExpired:   {StatusDraft, StatusArchived},
	StatusArchived:  {StatusDraft},
}

// CanTransition reports whether from -> to is a legal edge. Identical from/to
// is always allowed (no-op); statuses outside the fixed set quietly return
// false.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, t := range transitionTable[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal targets from a status, excluding the
// no-op self edge.
func AllowedTransitions(from Status) []Status {
	targets := transitionTable[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}
