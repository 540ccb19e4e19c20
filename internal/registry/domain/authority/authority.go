// Package authority answers capability checks and gates capability grants.
package authority

import (
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/deedflow/deedflow/internal/platform/errors"
)

// Capability is a named permission held by zero or more identities.
type Capability string

const (
	// CapabilityNotary marks identities that may act as a transfer's notary.
	CapabilityNotary Capability = "NOTARY"
	// CapabilityGovernment marks identities that may seal transfers.
	CapabilityGovernment Capability = "GOVERNMENT"
	// CapabilityAdmin marks identities that may grant capabilities.
	CapabilityAdmin Capability = "ADMIN"
)

var (
	// ErrUnauthorized indicates the caller lacks the capability required to grant.
	ErrUnauthorized = apperrors.New(apperrors.CodeUnauthorized, "caller is not authorized to grant capabilities")
	// ErrEmptyIdentity indicates a missing identity argument.
	ErrEmptyIdentity = apperrors.New(apperrors.CodeIdentityEmpty, "identity is required")
	// ErrEmptyAdmin indicates the authority was constructed without an admin.
	ErrEmptyAdmin = apperrors.New(apperrors.CodeAdminIdentityEmpty, "admin identity is required")
)

// CapabilityFromLabel parses a string label into a Capability.
func CapabilityFromLabel(value string) (Capability, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	switch trimmed {
	case "NOTARY":
		return CapabilityNotary, nil
	case "GOVERNMENT":
		return CapabilityGovernment, nil
	case "ADMIN":
		return CapabilityAdmin, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeCapabilityUnknown,
			fmt.Sprintf("unknown capability: %s", value),
			map[string]string{"Capability": value},
		)
	}
}

// Authority maps (identity, capability) pairs to held grants.
//
// Grants are additive only: no revocation surface exists. The admin
// capability, seeded once at construction, is the only capability that
// authorizes further grants.
type Authority struct {
	mu     sync.RWMutex
	grants map[Capability]map[string]bool
}

// New creates an authority with the admin capability granted to admin.
func New(admin string) (*Authority, error) {
	admin = strings.TrimSpace(admin)
	if admin == "" {
		return nil, ErrEmptyAdmin
	}
	a := &Authority{
		grants: map[Capability]map[string]bool{
			CapabilityNotary:     {},
			CapabilityGovernment: {},
			CapabilityAdmin:      {admin: true},
		},
	}
	return a, nil
}

// Has reports whether identity holds capability. Pure lookup, no side effects.
func (a *Authority) Has(identity string, capability Capability) bool {
	if a == nil {
		return false
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.grants[capability][identity]
}

// Grant grants capability to identity. Only callers holding the admin
// capability may grant; granting an already-held capability is a no-op.
func (a *Authority) Grant(caller string, capability Capability, identity string) error {
	if a == nil {
		return fmt.Errorf("authority is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}
	if _, err := CapabilityFromLabel(string(capability)); err != nil {
		return err
	}
	if !a.Has(caller, CapabilityAdmin) {
		return ErrUnauthorized
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants[capability][identity] = true
	return nil
}
