package identity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingIdentity is returned when a caller asserts no usable identity
	ErrMissingIdentity = errors.New("missing identity assertion")

	// ErrUnknownRole is returned when a role string cannot be folded to a known role
	ErrUnknownRole = errors.New("unknown role")
)

// Actor is a normalized caller identity: a lowercased username and a
// canonical role. All guard evaluation compares Actors, never raw strings.
type Actor struct {
	User string
	Role Role
}

// Normalizer folds raw role assertions to the closed Role enum. Beyond the
// canonical names it accepts a configurable alias table so deployments can
// map their own titles onto workflow roles.
type Normalizer struct {
	aliases map[string]Role
}

// DefaultAliases maps common deployment titles to workflow roles. Config may
// extend or override these.
func DefaultAliases() map[string]string {
	return map[string]string{
		"project manager":     string(RoleInitiator),
		"requester":           string(RoleInitiator),
		"resource planner":    string(RoleReviewer),
		"approver":            string(RoleReviewer),
		"bid evaluator":       string(RoleEvaluator),
		"procurement officer": string(RoleOrdering),
		"po team":             string(RoleOrdering),
		"supplier":            string(RoleProvider),
		"vendor":              string(RoleProvider),
	}
}

// NewNormalizer creates a Normalizer from an alias table. Alias keys are
// folded the same way raw assertions are, so config casing does not matter.
func NewNormalizer(aliases map[string]string) (*Normalizer, error) {
	n := &Normalizer{aliases: make(map[string]Role, len(aliases))}
	for raw, target := range aliases {
		role := Role(strings.ToUpper(strings.TrimSpace(target)))
		if !role.IsValid() {
			return nil, fmt.Errorf("%w: alias %q maps to %q", ErrUnknownRole, raw, target)
		}
		n.aliases[fold(raw)] = role
	}
	return n, nil
}

// NormalizeRole folds a raw role string (case, surrounding whitespace,
// separator variants, configured synonyms) to a canonical Role.
func (n *Normalizer) NormalizeRole(raw string) (Role, error) {
	folded := fold(raw)
	if folded == "" {
		return "", ErrMissingIdentity
	}
	if role, ok := n.aliases[folded]; ok {
		return role, nil
	}
	role := Role(strings.ToUpper(strings.ReplaceAll(folded, " ", "_")))
	if role.IsValid() {
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// NormalizeActor builds an Actor from raw identity and role assertions.
func (n *Normalizer) NormalizeActor(rawUser, rawRole string) (Actor, error) {
	user := NormalizeUser(rawUser)
	if user == "" {
		return Actor{}, ErrMissingIdentity
	}
	role, err := n.NormalizeRole(rawRole)
	if err != nil {
		return Actor{}, err
	}
	return Actor{User: user, Role: role}, nil
}

// NormalizeUser lowercases and trims an identity string.
func NormalizeUser(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// fold collapses case, trims, and normalizes separators so that
// "Resource_Planner" and "resource planner" hit the same alias entry.
func fold(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}
