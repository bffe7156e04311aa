package workflow

// State represents a request's position in the procurement lifecycle
type State string

const (
	StateDraft                 State = "DRAFT"
	StateInReview              State = "IN_REVIEW"
	StateApprovedForSubmission State = "APPROVED_FOR_SUBMISSION"
	StateBidding               State = "BIDDING"
	StateBidEvaluation         State = "BID_EVALUATION"
	StateRecommended           State = "RECOMMENDED"
	StateSentToOrdering        State = "SENT_TO_ORDERING"
	StateOrdered               State = "ORDERED"
	StateRejected              State = "REJECTED"
	StateExpired               State = "EXPIRED"
)

var validStates = map[State]bool{
	StateDraft:                 true,
	StateInReview:              true,
	StateApprovedForSubmission: true,
	StateBidding:               true,
	StateBidEvaluation:         true,
	StateRecommended:           true,
	StateSentToOrdering:        true,
	StateOrdered:               true,
	StateRejected:              true,
	StateExpired:               true,
}

// EXPIRED is not terminal: the owner may reactivate it back to
// APPROVED_FOR_SUBMISSION.
var terminalStates = map[State]bool{
	StateOrdered:  true,
	StateRejected: true,
}

// IsTerminal reports whether the lifecycle ends here. Terminal requests
// accept no further triggers.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

func (s State) String() string {
	return string(s)
}

// IsValid reports whether s is one of the lifecycle states.
func (s State) IsValid() bool {
	return validStates[s]
}
