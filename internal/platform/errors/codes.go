// Package errors provides structured error handling for the registry.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Property errors
	CodePropertyNotFound       Code = "PROPERTY_NOT_FOUND"
	CodePropertyInvalidState   Code = "PROPERTY_INVALID_STATE"
	CodePropertyEmptyBuyer     Code = "PROPERTY_EMPTY_BUYER"
	CodePropertyEmptyNotary    Code = "PROPERTY_EMPTY_NOTARY"
	CodePropertyEmptySeller    Code = "PROPERTY_EMPTY_SELLER"
	CodePropertyInvalidDocHash Code = "PROPERTY_INVALID_DOC_HASH"

	// Authority errors
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeCapabilityUnknown  Code = "CAPABILITY_UNKNOWN"
	CodeNotaryNotCapable   Code = "NOTARY_NOT_CAPABLE"
	CodeIdentityEmpty      Code = "IDENTITY_EMPTY"
	CodeAdminIdentityEmpty Code = "ADMIN_IDENTITY_EMPTY"

	// Workflow errors
	CodeReentrantCall Code = "REENTRANT_CALL"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePropertyEmptyBuyer,
		CodePropertyEmptyNotary,
		CodePropertyEmptySeller,
		CodePropertyInvalidDocHash,
		CodeNotaryNotCapable,
		CodeCapabilityUnknown,
		CodeIdentityEmpty,
		CodeAdminIdentityEmpty:
		return codes.InvalidArgument

	// FailedPrecondition - record state disallows the operation
	case CodePropertyInvalidState:
		return codes.FailedPrecondition

	// PermissionDenied - caller lacks the required identity or capability
	case CodeUnauthorized:
		return codes.PermissionDenied

	// Aborted - nested mutating call rejected by the reentrancy guard
	case CodeReentrantCall:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodePropertyNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
