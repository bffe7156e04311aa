package workflow

import (
	"fmt"

	"github.com/procurahq/procura/internal/domain/identity"
)

// Rule describes one legal transition edge: the trigger, its endpoints, and
// who may fire it. System rules are fired by the engine's background checks
// only, never by a caller.
type Rule struct {
	Trigger   Trigger
	From      State
	To        State
	Role      identity.Role
	OwnerOnly bool
	System    bool
}

// rules is the authoritative transition table. Exactly one caller role is
// authorized per trigger; OwnerOnly additionally pins the caller to the
// request owner. RECOMMEND carries a second edge so an evaluator can switch
// the recommendation; the previously recommended offer is demoted as a side
// effect.
var rules = []Rule{
	{Trigger: TriggerSubmitForReview, From: StateDraft, To: StateInReview, Role: identity.RoleInitiator, OwnerOnly: true},
	{Trigger: TriggerApprove, From: StateInReview, To: StateApprovedForSubmission, Role: identity.RoleReviewer},
	{Trigger: TriggerReject, From: StateInReview, To: StateRejected, Role: identity.RoleReviewer},
	{Trigger: TriggerSubmitForBidding, From: StateApprovedForSubmission, To: StateBidding, Role: identity.RoleInitiator, OwnerOnly: true},
	{Trigger: TriggerExpire, From: StateBidding, To: StateExpired, System: true},
	{Trigger: TriggerAdvanceToEvaluation, From: StateBidding, To: StateBidEvaluation, System: true},
	{Trigger: TriggerReactivate, From: StateExpired, To: StateApprovedForSubmission, Role: identity.RoleInitiator, OwnerOnly: true},
	{Trigger: TriggerRecommend, From: StateBidEvaluation, To: StateRecommended, Role: identity.RoleEvaluator},
	{Trigger: TriggerRecommend, From: StateRecommended, To: StateRecommended, Role: identity.RoleEvaluator},
	{Trigger: TriggerSendToOrdering, From: StateRecommended, To: StateSentToOrdering, Role: identity.RoleInitiator, OwnerOnly: true},
	{Trigger: TriggerPlaceOrder, From: StateSentToOrdering, To: StateOrdered, Role: identity.RoleOrdering},
}

// Rules returns a copy of the transition table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// RuleFor returns the authorization rule for a trigger. Triggers with
// multiple edges share one authorization, so the first match is definitive.
func RuleFor(t Trigger) (Rule, bool) {
	for _, r := range rules {
		if r.Trigger == t {
			return r, true
		}
	}
	return Rule{}, false
}

// Authorize checks the caller against a rule's role and ownership
// requirements. State legality is the state machine's concern, checked
// separately so wrong-role and wrong-state failures stay distinct kinds.
func Authorize(r Rule, owner string, actor identity.Actor) error {
	if actor.User == "" || !actor.Role.IsValid() {
		return ErrUnauthenticated
	}
	if r.System {
		return fmt.Errorf("%w: %s is not caller-triggered", ErrForbidden, r.Trigger)
	}
	if actor.Role != r.Role {
		return fmt.Errorf("%w: role %s cannot fire %s", ErrForbidden, actor.Role, r.Trigger)
	}
	if r.OwnerOnly && actor.User != owner {
		return fmt.Errorf("%w: only the request owner may fire %s", ErrForbidden, r.Trigger)
	}
	return nil
}

// AuthorizeDraftEdit guards update and delete: the owning initiator may
// mutate a request only while it is still a draft.
func AuthorizeDraftEdit(status State, owner string, actor identity.Actor) error {
	if actor.User == "" || !actor.Role.IsValid() {
		return ErrUnauthenticated
	}
	if actor.Role != identity.RoleInitiator {
		return fmt.Errorf("%w: role %s cannot edit requests", ErrForbidden, actor.Role)
	}
	if actor.User != owner {
		return fmt.Errorf("%w: only the request owner may edit it", ErrForbidden)
	}
	if status != StateDraft {
		return fmt.Errorf("%w: request is %s, only drafts can be edited", ErrInvalidState, status)
	}
	return nil
}
