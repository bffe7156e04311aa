package event

// Type names a lifecycle event emitted by the engine or the offer intake.
// Values are dotted subject.verb strings so log filters can match on the
// subject prefix.
type Type string

const (
	TypeRequestCreated  Type = "request.created"
	TypeStatusChanged   Type = "request.status_changed"
	TypeRequestExpired  Type = "request.expired"
	TypeEvaluationReady Type = "request.evaluation_ready"
	TypeOfferSubmitted  Type = "offer.submitted"
	TypeOrderPlaced     Type = "order.placed"
)

var knownTypes = map[Type]bool{
	TypeRequestCreated:  true,
	TypeStatusChanged:   true,
	TypeRequestExpired:  true,
	TypeEvaluationReady: true,
	TypeOfferSubmitted:  true,
	TypeOrderPlaced:     true,
}

func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t is one of the declared event types.
func (t Type) IsValid() bool {
	return knownTypes[t]
}
