// Package property defines the property transfer record and its status machine.
package property

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/deedflow/deedflow/internal/platform/errors"
)

// DocHashSize is the byte length of the document dossier digest.
const DocHashSize = 32

var (
	// ErrEmptyBuyer indicates a missing buyer identity.
	ErrEmptyBuyer = apperrors.New(apperrors.CodePropertyEmptyBuyer, "buyer identity is required")
	// ErrEmptyNotary indicates a missing notary identity.
	ErrEmptyNotary = apperrors.New(apperrors.CodePropertyEmptyNotary, "notary identity is required")
	// ErrEmptySeller indicates a missing seller identity.
	ErrEmptySeller = apperrors.New(apperrors.CodePropertyEmptySeller, "seller identity is required")
	// ErrInvalidDocHash indicates a malformed document digest.
	ErrInvalidDocHash = apperrors.New(apperrors.CodePropertyInvalidDocHash, "doc hash must be a 32-byte hex digest")
	// ErrInvalidStatusTransition indicates a disallowed status change.
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodePropertyInvalidState, "property status transition is not allowed")
)

// Property represents one property transfer record.
//
// DocHash is the integrity anchor for the off-chain dossier: set once at
// registration, never mutated. The three milestone flags mirror information
// already implied by Status and exist for convenient external querying.
type Property struct {
	ID     uint64
	Seller string
	Buyer  string
	Notary string
	// Government is the identity of the authority that sealed the record,
	// populated only at sealing time.
	Government string
	DocHash    string
	Status     Status

	NotaryApproved   bool
	BuyerApproved    bool
	GovernmentSealed bool

	// CreatedAt is the timestamp when the record was registered.
	CreatedAt time.Time
	// UpdatedAt is the timestamp of the most recent state-changing operation.
	UpdatedAt time.Time
}

// RegisterInput describes the data needed to register a property transfer.
type RegisterInput struct {
	DocHash string
	Buyer   string
	Notary  string
}

// NormalizeRegisterInput trims and validates registration input.
// Buyer and notary must be non-empty identities and the doc hash must decode
// to a 32-byte digest; the hash is normalized to lowercase hex.
//
// buyer == seller and buyer == notary are deliberately not rejected here.
func NormalizeRegisterInput(input RegisterInput) (RegisterInput, error) {
	input.Buyer = strings.TrimSpace(input.Buyer)
	if input.Buyer == "" {
		return RegisterInput{}, ErrEmptyBuyer
	}
	input.Notary = strings.TrimSpace(input.Notary)
	if input.Notary == "" {
		return RegisterInput{}, ErrEmptyNotary
	}
	input.DocHash = strings.ToLower(strings.TrimSpace(input.DocHash))
	raw, err := hex.DecodeString(input.DocHash)
	if err != nil || len(raw) != DocHashSize {
		return RegisterInput{}, ErrInvalidDocHash
	}
	return input, nil
}

// New builds a freshly registered property record. The identifier comes from
// the store's sequence; the caller registering the transfer becomes the seller.
func New(id uint64, seller string, input RegisterInput, now func() time.Time) Property {
	if now == nil {
		now = time.Now
	}
	createdAt := now().UTC()
	return Property{
		ID:        id,
		Seller:    seller,
		Buyer:     input.Buyer,
		Notary:    input.Notary,
		DocHash:   input.DocHash,
		Status:    StatusPendingNotary,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Transition applies a status transition, updates the timestamp, and sets the
// milestone flag matching the target status.
func Transition(p Property, target Status, now func() time.Time) (Property, error) {
	if now == nil {
		now = time.Now
	}
	if !isStatusTransitionAllowed(p.Status, target) {
		fromStatus := StatusLabel(p.Status)
		toStatus := StatusLabel(target)
		return Property{}, apperrors.WithMetadata(
			apperrors.CodePropertyInvalidState,
			fmt.Sprintf("property status transition not allowed: %s -> %s", fromStatus, toStatus),
			map[string]string{"FromStatus": fromStatus, "ToStatus": toStatus},
		)
	}

	updated := p
	updated.Status = target
	updated.UpdatedAt = now().UTC()
	switch target {
	case StatusNotaryApproved:
		updated.NotaryApproved = true
	case StatusBuyerApproved:
		updated.BuyerApproved = true
	case StatusGovernmentSealed:
		updated.GovernmentSealed = true
	}
	return updated, nil
}
