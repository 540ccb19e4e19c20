package property

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const docHash = "8f434346648f6b96df89dda901c5176b10a6d83961dd3c1ac88b59b2dc327aa4"

func TestNormalizeRegisterInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		input RegisterInput
		err   error
	}{
		{
			name: "empty buyer",
			input: RegisterInput{
				DocHash: docHash,
				Buyer:   "   ",
				Notary:  "addr-notary",
			},
			err: ErrEmptyBuyer,
		},
		{
			name: "empty notary",
			input: RegisterInput{
				DocHash: docHash,
				Buyer:   "addr-buyer",
				Notary:  "",
			},
			err: ErrEmptyNotary,
		},
		{
			name: "empty doc hash",
			input: RegisterInput{
				Buyer:  "addr-buyer",
				Notary: "addr-notary",
			},
			err: ErrInvalidDocHash,
		},
		{
			name: "doc hash wrong length",
			input: RegisterInput{
				DocHash: "abcdef",
				Buyer:   "addr-buyer",
				Notary:  "addr-notary",
			},
			err: ErrInvalidDocHash,
		},
		{
			name: "doc hash not hex",
			input: RegisterInput{
				DocHash: strings.Repeat("zz", 32),
				Buyer:   "addr-buyer",
				Notary:  "addr-notary",
			},
			err: ErrInvalidDocHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRegisterInput(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected error %v, got %v", tt.err, err)
			}
		})
	}
}

func TestNormalizeRegisterInputLowercasesHash(t *testing.T) {
	input := RegisterInput{
		DocHash: "  " + strings.ToUpper(docHash) + "  ",
		Buyer:   " addr-buyer ",
		Notary:  " addr-notary ",
	}

	normalized, err := NormalizeRegisterInput(input)
	if err != nil {
		t.Fatalf("normalize register input: %v", err)
	}
	if normalized.DocHash != docHash {
		t.Fatalf("expected lowercased hash, got %q", normalized.DocHash)
	}
	if normalized.Buyer != "addr-buyer" || normalized.Notary != "addr-notary" {
		t.Fatalf("expected trimmed identities, got %q and %q", normalized.Buyer, normalized.Notary)
	}
}

func TestNewStartsPendingNotary(t *testing.T) {
	fixedTime := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	input := RegisterInput{
		DocHash: docHash,
		Buyer:   "addr-buyer",
		Notary:  "addr-notary",
	}

	p := New(7, "addr-seller", input, func() time.Time { return fixedTime })
	if p.ID != 7 {
		t.Fatalf("expected id 7, got %d", p.ID)
	}
	if p.Status != StatusPendingNotary {
		t.Fatalf("expected pending notary, got %v", p.Status)
	}
	if p.Seller != "addr-seller" {
		t.Fatalf("expected seller set, got %q", p.Seller)
	}
	if p.NotaryApproved || p.BuyerApproved || p.GovernmentSealed {
		t.Fatalf("expected all milestone flags unset")
	}
	if !p.CreatedAt.Equal(fixedTime) || !p.UpdatedAt.Equal(fixedTime) {
		t.Fatalf("expected timestamps to match fixed time")
	}
}

func TestTransitionForwardChain(t *testing.T) {
	baseTime := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	p := New(1, "addr-seller", RegisterInput{
		DocHash: docHash,
		Buyer:   "addr-buyer",
		Notary:  "addr-notary",
	}, func() time.Time { return baseTime })

	steps := []struct {
		target Status
		check  func(Property) bool
	}{
		{StatusNotaryApproved, func(p Property) bool { return p.NotaryApproved }},
		{StatusBuyerApproved, func(p Property) bool { return p.BuyerApproved }},
		{StatusGovernmentSealed, func(p Property) bool { return p.GovernmentSealed }},
		{StatusCompleted, func(p Property) bool { return true }},
	}

	clock := baseTime
	for _, step := range steps {
		clock = clock.Add(time.Hour)
		now := clock
		updated, err := Transition(p, step.target, func() time.Time { return now })
		if err != nil {
			t.Fatalf("transition to %s: %v", StatusLabel(step.target), err)
		}
		if updated.Status != step.target {
			t.Fatalf("expected status %s, got %s", StatusLabel(step.target), StatusLabel(updated.Status))
		}
		if !step.check(updated) {
			t.Fatalf("expected milestone flag set for %s", StatusLabel(step.target))
		}
		if !updated.UpdatedAt.Equal(now) {
			t.Fatalf("expected updated timestamp %v, got %v", now, updated.UpdatedAt)
		}
		if updated.UpdatedAt.Before(updated.CreatedAt) {
			t.Fatalf("updated timestamp precedes creation")
		}
		p = updated
	}
}

func TestTransitionDisallowed(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		target Status
	}{
		{"skip notary", StatusPendingNotary, StatusBuyerApproved},
		{"skip buyer", StatusNotaryApproved, StatusGovernmentSealed},
		{"regress", StatusBuyerApproved, StatusNotaryApproved},
		{"cancel after approval", StatusNotaryApproved, StatusCancelled},
		{"advance cancelled", StatusCancelled, StatusNotaryApproved},
		{"advance completed", StatusCompleted, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Property{ID: 1, Status: tt.from}
			_, err := Transition(p, tt.target, nil)
			if !errors.Is(err, ErrInvalidStatusTransition) {
				t.Fatalf("expected invalid transition error, got %v", err)
			}
		})
	}
}

func TestTransitionCancelFromPending(t *testing.T) {
	p := Property{ID: 1, Status: StatusPendingNotary}
	updated, err := Transition(p, StatusCancelled, nil)
	if err != nil {
		t.Fatalf("cancel pending record: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", StatusLabel(updated.Status))
	}
	if !updated.Status.IsTerminal() {
		t.Fatalf("expected cancelled to be terminal")
	}
}

func TestStatusFromLabel(t *testing.T) {
	for _, status := range []Status{
		StatusPendingNotary, StatusNotaryApproved, StatusBuyerApproved,
		StatusGovernmentSealed, StatusCompleted, StatusCancelled,
	} {
		parsed, err := StatusFromLabel(StatusLabel(status))
		if err != nil {
			t.Fatalf("parse %s: %v", StatusLabel(status), err)
		}
		if parsed != status {
			t.Fatalf("expected %v, got %v", status, parsed)
		}
	}

	if _, err := StatusFromLabel(""); err == nil {
		t.Fatalf("expected error for empty label")
	}
	if _, err := StatusFromLabel("SOLD"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}
