// Package workflow implements the role-gated state machine that drives a
// property transfer from registration through completion.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/deedflow/deedflow/internal/platform/errors"
	"github.com/deedflow/deedflow/internal/registry/domain/authority"
	"github.com/deedflow/deedflow/internal/registry/domain/event"
	"github.com/deedflow/deedflow/internal/registry/domain/property"
	"github.com/deedflow/deedflow/internal/registry/storage"
)

var (
	// ErrReentrant indicates a mutating operation was invoked while another
	// mutating operation on the same engine was still executing.
	ErrReentrant = apperrors.New(apperrors.CodeReentrantCall, "mutating operation already in progress")
	// ErrUnauthorized indicates the caller lacks the identity or capability
	// the operation requires.
	ErrUnauthorized = apperrors.New(apperrors.CodeUnauthorized, "caller is not authorized for this operation")
	// ErrNotaryNotCapable indicates the designated notary does not hold the
	// notary capability at registration time.
	ErrNotaryNotCapable = apperrors.New(apperrors.CodeNotaryNotCapable, "designated notary does not hold the notary capability")
)

// Engine executes transition operations against the record table.
//
// Every mutating operation runs read, check, mutate, emit to completion
// under a whole-table reentrancy guard; a nested mutating call is rejected
// with ErrReentrant rather than interleaved.
type Engine struct {
	store        storage.Store
	authority    *authority.Authority
	clock        func() time.Time
	newRequestID func() string
	tracer       trace.Tracer
	inFlight     atomic.Bool
}

// Option configures engine behavior.
type Option func(*Engine)

// WithClock injects the time source used for record timestamps and events.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRequestIDGenerator injects the request id source stamped on events.
func WithRequestIDGenerator(generator func() string) Option {
	return func(e *Engine) {
		e.newRequestID = generator
	}
}

// New creates a workflow engine over the given store and role authority.
func New(store storage.Store, auth *authority.Authority, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authority is required")
	}
	e := &Engine{
		store:        store,
		authority:    auth,
		clock:        time.Now,
		newRequestID: uuid.NewString,
		tracer:       otel.Tracer("deedflow/registry/workflow"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// begin acquires the whole-table reentrancy guard. The returned release
// function must run before the call returns to the environment.
func (e *Engine) begin() (func(), error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	return func() { e.inFlight.Store(false) }, nil
}

// Register allocates a new record for a transfer dossier. Any caller may
// register; the caller becomes the seller. The designated notary must hold
// the notary capability and buyer and notary must be non-empty identities.
func (e *Engine) Register(ctx context.Context, caller string, input property.RegisterInput) (property.Property, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Register")
	defer span.End()

	release, err := e.begin()
	if err != nil {
		return property.Property{}, err
	}
	defer release()

	caller = strings.TrimSpace(caller)
	if caller == "" {
		return property.Property{}, property.ErrEmptySeller
	}
	normalized, err := property.NormalizeRegisterInput(input)
	if err != nil {
		return property.Property{}, err
	}
	if !e.authority.Has(normalized.Notary, authority.CapabilityNotary) {
		return property.Property{}, ErrNotaryNotCapable
	}

	id, err := e.store.NextPropertyID(ctx)
	if err != nil {
		return property.Property{}, fmt.Errorf("allocate property id: %w", err)
	}
	span.SetAttributes(attribute.Int64("property.id", int64(id)))

	p := property.New(id, caller, normalized, e.clock)
	if err := e.store.CreateProperty(ctx, p); err != nil {
		return property.Property{}, fmt.Errorf("create property: %w", err)
	}

	e.emit(ctx, event.Event{
		Name:       event.NamePropertyRegistered,
		PropertyID: p.ID,
		Actor:      caller,
		Subject:    p.Buyer,
		DocHash:    p.DocHash,
		Timestamp:  p.CreatedAt,
	})
	return p, nil
}

// NotaryApprove advances a pending record to NotaryApproved. Only the
// record's designated notary may approve.
func (e *Engine) NotaryApprove(ctx context.Context, caller string, id uint64) (property.Property, error) {
	return e.transition(ctx, "workflow.NotaryApprove", caller, id,
		property.StatusNotaryApproved, event.NameNotaryApproved,
		func(p property.Property, caller string) bool {
			return caller == p.Notary
		}, nil)
}

// BuyerApprove advances a notary-approved record to BuyerApproved. Only the
// record's buyer may approve.
func (e *Engine) BuyerApprove(ctx context.Context, caller string, id uint64) (property.Property, error) {
	return e.transition(ctx, "workflow.BuyerApprove", caller, id,
		property.StatusBuyerApproved, event.NameBuyerApproved,
		func(p property.Property, caller string) bool {
			return caller == p.Buyer
		}, nil)
}

// GovernmentSeal advances a buyer-approved record to GovernmentSealed and
// records the sealing authority. The caller must hold the government
// capability.
func (e *Engine) GovernmentSeal(ctx context.Context, caller string, id uint64) (property.Property, error) {
	return e.transition(ctx, "workflow.GovernmentSeal", caller, id,
		property.StatusGovernmentSealed, event.NameGovernmentSealed,
		func(p property.Property, caller string) bool {
			return e.authority.Has(caller, authority.CapabilityGovernment)
		},
		func(p property.Property, caller string) property.Property {
			p.Government = caller
			return p
		})
}

// MarkCompleted finishes a sealed transfer. The seller, the buyer, or any
// government-capable identity may complete.
func (e *Engine) MarkCompleted(ctx context.Context, caller string, id uint64) (property.Property, error) {
	return e.transition(ctx, "workflow.MarkCompleted", caller, id,
		property.StatusCompleted, event.NameTransferCompleted,
		func(p property.Property, caller string) bool {
			return caller == p.Seller || caller == p.Buyer ||
				e.authority.Has(caller, authority.CapabilityGovernment)
		}, nil)
}

// Cancel aborts a transfer before notary approval. Only the seller may
// cancel, and only while the record is still pending.
func (e *Engine) Cancel(ctx context.Context, caller string, id uint64) (property.Property, error) {
	return e.transition(ctx, "workflow.Cancel", caller, id,
		property.StatusCancelled, event.NameTransferCancelled,
		func(p property.Property, caller string) bool {
			return caller == p.Seller
		}, nil)
}

// TransferOwnership reassigns the seller slot after finalization. Only the
// current seller may transfer, and only once the record is sealed or
// completed. The new seller's index gains the id; the old entry is retained.
func (e *Engine) TransferOwnership(ctx context.Context, caller string, id uint64, newSeller string) (property.Property, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.TransferOwnership",
		trace.WithAttributes(attribute.Int64("property.id", int64(id))))
	defer span.End()

	release, err := e.begin()
	if err != nil {
		return property.Property{}, err
	}
	defer release()

	newSeller = strings.TrimSpace(newSeller)
	if newSeller == "" {
		return property.Property{}, property.ErrEmptySeller
	}

	p, err := e.loadProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	caller = strings.TrimSpace(caller)
	if caller != p.Seller {
		return property.Property{}, unauthorizedError("TRANSFER_OWNERSHIP", caller, id)
	}
	if p.Status != property.StatusGovernmentSealed && p.Status != property.StatusCompleted {
		return property.Property{}, apperrors.WithMetadata(
			apperrors.CodePropertyInvalidState,
			fmt.Sprintf("ownership transfer requires a sealed or completed record, status is %s", property.StatusLabel(p.Status)),
			map[string]string{"Status": property.StatusLabel(p.Status)},
		)
	}

	previousSeller := p.Seller
	p.Seller = newSeller
	p.UpdatedAt = e.clock().UTC()
	if err := e.store.ReassignSeller(ctx, p); err != nil {
		return property.Property{}, fmt.Errorf("reassign seller: %w", err)
	}

	e.emit(ctx, event.Event{
		Name:       event.NameOwnershipTransferred,
		PropertyID: p.ID,
		Actor:      previousSeller,
		Subject:    newSeller,
		Timestamp:  p.UpdatedAt,
	})
	return p, nil
}

// transition runs the shared gate sequence for single-step status advances:
// guard, load, authorize, transition, store, emit.
func (e *Engine) transition(
	ctx context.Context,
	span string,
	caller string,
	id uint64,
	target property.Status,
	name event.Name,
	authorized func(property.Property, string) bool,
	mutate func(property.Property, string) property.Property,
) (property.Property, error) {
	ctx, sp := e.tracer.Start(ctx, span,
		trace.WithAttributes(attribute.Int64("property.id", int64(id))))
	defer sp.End()

	release, err := e.begin()
	if err != nil {
		return property.Property{}, err
	}
	defer release()

	p, err := e.loadProperty(ctx, id)
	if err != nil {
		return property.Property{}, err
	}
	caller = strings.TrimSpace(caller)
	if caller == "" || !authorized(p, caller) {
		return property.Property{}, unauthorizedError(string(name), caller, id)
	}
	if mutate != nil {
		p = mutate(p, caller)
	}
	updated, err := property.Transition(p, target, e.clock)
	if err != nil {
		return property.Property{}, err
	}
	if err := e.store.PutProperty(ctx, updated); err != nil {
		return property.Property{}, fmt.Errorf("store property: %w", err)
	}

	e.emit(ctx, event.Event{
		Name:       name,
		PropertyID: updated.ID,
		Actor:      caller,
		Timestamp:  updated.UpdatedAt,
	})
	return updated, nil
}

// emit appends the post-commit notification. A failed append is logged and
// never rolls back the committed mutation.
func (e *Engine) emit(ctx context.Context, evt event.Event) {
	evt.RequestID = e.newRequestID()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.clock().UTC()
	}
	if _, err := e.store.AppendEvent(ctx, evt); err != nil {
		log.Printf("append %s event for property %d: %v", evt.Name, evt.PropertyID, err)
	}
}

// loadProperty fetches a record, mapping missing ids to the not-found kind.
func (e *Engine) loadProperty(ctx context.Context, id uint64) (property.Property, error) {
	p, err := e.store.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return property.Property{}, apperrors.WithMetadata(
				apperrors.CodePropertyNotFound,
				fmt.Sprintf("property %d does not exist", id),
				map[string]string{"PropertyID": fmt.Sprintf("%d", id)},
			)
		}
		return property.Property{}, fmt.Errorf("load property: %w", err)
	}
	return p, nil
}

func unauthorizedError(operation, caller string, id uint64) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeUnauthorized,
		fmt.Sprintf("caller is not authorized for %s on property %d", operation, id),
		map[string]string{
			"Operation":  operation,
			"Caller":     caller,
			"PropertyID": fmt.Sprintf("%d", id),
		},
	)
}

// Get fetches a record by id. Read-only, no authorization required.
func (e *Engine) Get(ctx context.Context, id uint64) (property.Property, error) {
	return e.loadProperty(ctx, id)
}

// ListAsSeller returns insertion-ordered ids where address is or was seller.
func (e *Engine) ListAsSeller(ctx context.Context, address string) ([]uint64, error) {
	return e.store.ListPropertiesBySeller(ctx, strings.TrimSpace(address))
}

// ListAsBuyer returns insertion-ordered ids where address is the buyer.
func (e *Engine) ListAsBuyer(ctx context.Context, address string) ([]uint64, error) {
	return e.store.ListPropertiesByBuyer(ctx, strings.TrimSpace(address))
}

// ListEvents returns the notification log in append order.
func (e *Engine) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	return e.store.ListEvents(ctx, afterSeq, limit)
}

// ListEventsByProperty returns the notification log for one record.
func (e *Engine) ListEventsByProperty(ctx context.Context, id uint64, afterSeq uint64, limit int) ([]event.Event, error) {
	return e.store.ListEventsByProperty(ctx, id, afterSeq, limit)
}

// Statistics returns aggregate registry counts.
func (e *Engine) Statistics(ctx context.Context) (storage.RegistryStatistics, error) {
	return e.store.GetRegistryStatistics(ctx)
}
