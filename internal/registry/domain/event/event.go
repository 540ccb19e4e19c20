// Package event defines the append-only notification records emitted after
// each successful workflow mutation.
package event

import "time"

// Name identifies the workflow operation an event records.
type Name string

const (
	// NamePropertyRegistered records a new property transfer registration.
	NamePropertyRegistered Name = "PROPERTY_REGISTERED"
	// NameNotaryApproved records notary approval.
	NameNotaryApproved Name = "NOTARY_APPROVED"
	// NameBuyerApproved records buyer approval.
	NameBuyerApproved Name = "BUYER_APPROVED"
	// NameGovernmentSealed records the government seal.
	NameGovernmentSealed Name = "GOVERNMENT_SEALED"
	// NameTransferCompleted records completion of the transfer.
	NameTransferCompleted Name = "TRANSFER_COMPLETED"
	// NameTransferCancelled records seller cancellation.
	NameTransferCancelled Name = "TRANSFER_CANCELLED"
	// NameOwnershipTransferred records a post-finalization seller change.
	NameOwnershipTransferred Name = "OWNERSHIP_TRANSFERRED"
)

// Event is one entry in the durable notification log. Exactly one event is
// appended per successful mutation, none on failure.
type Event struct {
	// Seq is the global append order, assigned by the log.
	Seq uint64
	// Name is the operation that produced the event.
	Name Name
	// PropertyID is the affected record.
	PropertyID uint64
	// Actor is the authenticated caller that triggered the operation.
	Actor string
	// Subject is the other identity relevant to the operation, when one
	// exists (buyer at registration, new seller at ownership transfer).
	Subject string
	// DocHash carries the dossier digest for registration events.
	DocHash string
	// RequestID correlates the event with the originating call.
	RequestID string
	// Timestamp is when the mutation committed.
	Timestamp time.Time
}
