package identity

// Role represents a workflow role asserted for a caller
type Role string

const (
	RoleInitiator Role = "INITIATOR"
	RoleReviewer  Role = "REVIEWER"
	RoleEvaluator Role = "EVALUATOR"
	RoleOrdering  Role = "ORDERING"
	RoleProvider  Role = "PROVIDER"
	RoleAdmin     Role = "ADMIN"
)

// SystemActor is recorded as the actor for transitions applied by the
// engine itself rather than a caller.
const SystemActor = "system"

var validRoles = map[Role]bool{
	RoleInitiator: true,
	RoleReviewer:  true,
	RoleEvaluator: true,
	RoleOrdering:  true,
	RoleProvider:  true,
	RoleAdmin:     true,
}

func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is one of the defined workflow roles
func (r Role) IsValid() bool {
	return validRoles[r]
}
