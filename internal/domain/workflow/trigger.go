package workflow

// Trigger names a lifecycle action that moves a request between states.
type Trigger string

const (
	TriggerSubmitForReview     Trigger = "SUBMIT_FOR_REVIEW"
	TriggerApprove             Trigger = "APPROVE"
	TriggerReject              Trigger = "REJECT"
	TriggerSubmitForBidding    Trigger = "SUBMIT_FOR_BIDDING"
	TriggerExpire              Trigger = "EXPIRE"
	TriggerAdvanceToEvaluation Trigger = "ADVANCE_TO_EVALUATION"
	TriggerReactivate          Trigger = "REACTIVATE"
	TriggerRecommend           Trigger = "RECOMMEND"
	TriggerSendToOrdering      Trigger = "SEND_TO_ORDERING"
	TriggerPlaceOrder          Trigger = "PLACE_ORDER"
)

func (t Trigger) String() string {
	return string(t)
}
