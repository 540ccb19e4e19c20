// Package storage defines the persistence boundary for the registry: the
// property record table, the per-party indices, and the durable event log.
package storage

import (
	"context"

	apperrors "github.com/deedflow/deedflow/internal/platform/errors"
	"github.com/deedflow/deedflow/internal/registry/domain/event"
	"github.com/deedflow/deedflow/internal/registry/domain/property"
)

// ErrNotFound indicates a requested persistence record is missing.
// Identifier 0 is reserved to mean "does not exist" and always resolves here.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// PropertyStore owns the record table, identifier allocation, and the
// per-address index entries written alongside records.
type PropertyStore interface {
	// NextPropertyID returns the next unused identifier. Identifiers start
	// at 1, increase monotonically, and are never reused.
	NextPropertyID(ctx context.Context) (uint64, error)
	// CreateProperty stores a new record and indexes its seller and buyer
	// in one atomic step. A failure leaves no partial effects.
	CreateProperty(ctx context.Context, p property.Property) error
	// PutProperty overwrites an existing record in place.
	PutProperty(ctx context.Context, p property.Property) error
	// ReassignSeller overwrites the record and appends the new seller's
	// index entry in one atomic step. Prior index entries are retained.
	ReassignSeller(ctx context.Context, p property.Property) error
	// GetProperty fetches a record by id. Returns ErrNotFound when no
	// record with that id exists.
	GetProperty(ctx context.Context, id uint64) (property.Property, error)
	// ListProperties returns up to limit records with id greater than
	// afterID, ordered by id ascending.
	ListProperties(ctx context.Context, afterID uint64, limit int) ([]property.Property, error)
}

// PartyIndexStore answers queries over the append-only per-address id lists.
// Entries are never removed, even when a property is cancelled or its seller
// changes.
type PartyIndexStore interface {
	// ListPropertiesBySeller returns insertion-ordered ids where address is
	// or was the seller. Unknown addresses yield an empty list.
	ListPropertiesBySeller(ctx context.Context, address string) ([]uint64, error)
	// ListPropertiesByBuyer returns insertion-ordered ids where address is
	// the buyer. Unknown addresses yield an empty list.
	ListPropertiesByBuyer(ctx context.Context, address string) ([]uint64, error)
}

// EventStore owns the append-only notification log that external indexers
// and dashboards consume.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with its
	// sequence number set.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns up to limit events with seq greater than afterSeq,
	// ordered by seq ascending.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// ListEventsByProperty returns events for one record, ordered by seq.
	ListEventsByProperty(ctx context.Context, propertyID uint64, afterSeq uint64, limit int) ([]event.Event, error)
}

// RegistryStatistics contains aggregate counters used by dashboards.
type RegistryStatistics struct {
	PropertyCount  int64
	CompletedCount int64
	CancelledCount int64
	EventCount     int64
}

// StatisticsStore centralizes aggregate count queries for observability.
type StatisticsStore interface {
	GetRegistryStatistics(ctx context.Context) (RegistryStatistics, error)
}

// Store is a composite interface for all registry persistence concerns.
type Store interface {
	PropertyStore
	PartyIndexStore
	EventStore
	StatisticsStore
	Close() error
}
