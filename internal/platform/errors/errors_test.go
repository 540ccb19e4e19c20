package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodePropertyNotFound, "record 7 not found")
	other := New(CodePropertyNotFound, "different message")
	if !errors.Is(base, other) {
		t.Fatalf("expected errors with the same code to match")
	}
	if errors.Is(base, New(CodeUnauthorized, "record 7 not found")) {
		t.Fatalf("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodeUnknown, "put property", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to unwrap")
	}
	if err.Error() != "put property" {
		t.Fatalf("expected message, got %q", err.Error())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodePropertyNotFound, codes.NotFound},
		{CodeNotFound, codes.NotFound},
		{CodePropertyInvalidState, codes.FailedPrecondition},
		{CodeUnauthorized, codes.PermissionDenied},
		{CodeReentrantCall, codes.Aborted},
		{CodePropertyEmptyBuyer, codes.InvalidArgument},
		{CodePropertyInvalidDocHash, codes.InvalidArgument},
		{CodeNotaryNotCapable, codes.InvalidArgument},
		{CodeIdentityEmpty, codes.InvalidArgument},
		{CodeUnknown, codes.Internal},
		{Code("SOMETHING_ELSE"), codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.code, tt.want, got)
		}
	}
}

func TestToGRPCStatus(t *testing.T) {
	err := WithMetadata(CodePropertyNotFound, "record 7 not found", map[string]string{
		"property_id": "7",
	})

	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatalf("expected a gRPC status error")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("expected NotFound, got %s", st.Code())
	}
	if st.Message() != "record 7 not found" {
		t.Fatalf("unexpected message %q", st.Message())
	}

	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if d, ok := detail.(*errdetails.ErrorInfo); ok {
			info = d
		}
	}
	if info == nil {
		t.Fatalf("expected ErrorInfo detail")
	}
	if info.Reason != string(CodePropertyNotFound) {
		t.Fatalf("expected reason %s, got %s", CodePropertyNotFound, info.Reason)
	}
	if info.Domain != Domain {
		t.Fatalf("expected domain %s, got %s", Domain, info.Domain)
	}
	if info.Metadata["property_id"] != "7" {
		t.Fatalf("expected metadata carried, got %v", info.Metadata)
	}
}
