package workflow

import (
	"fmt"
	"sort"
)

// Machine tracks the state of one request and validates transitions against
// an edge table. Build one per operation; it is not safe for concurrent use.
type Machine struct {
	current State
	edges   map[State]map[Trigger]State
}

// NewMachine positions a machine at initial with the given transition rules.
// The rule table is authored in this package, so malformed edges are
// programming errors and panic.
func NewMachine(initial State, rules []Rule) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}

	edges := make(map[State]map[Trigger]State)
	for _, r := range rules {
		if !r.From.IsValid() || !r.To.IsValid() {
			panic(fmt.Sprintf("invalid rule edge: %s -> %s", r.From, r.To))
		}
		out, ok := edges[r.From]
		if !ok {
			out = make(map[Trigger]State)
			edges[r.From] = out
		}
		out[r.Trigger] = r.To
	}

	return &Machine{current: initial, edges: edges}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.current
}

// CanFire reports whether the trigger has an edge from the current state.
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.edges[m.current][trigger]
	return ok
}

// Fire follows the trigger's edge. States without an edge for the trigger,
// including terminal states, report ErrInvalidState.
func (m *Machine) Fire(trigger Trigger) error {
	to, ok := m.edges[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidState, trigger, m.current)
	}
	m.current = to
	return nil
}

// PermittedTriggers lists the triggers with an edge from the current state,
// sorted for stable output.
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.edges[m.current]))
	for t := range m.edges[m.current] {
		triggers = append(triggers, t)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
