package engine

import (
	"github.com/procurahq/procura/internal/domain/workflow"
)

// BuildRequestStateMachine creates a state machine positioned at initialState,
// wired from the authoritative transition table. Terminal states end up with
// no outbound edges, so any Fire on them reports an invalid state.
func BuildRequestStateMachine(initialState workflow.State) *workflow.Machine {
	return workflow.NewMachine(initialState, workflow.Rules())
}
