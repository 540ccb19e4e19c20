// Package memory provides an in-process store backed by the registry's
// process-wide record table. It backs unit tests and path-less startups.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deedflow/deedflow/internal/registry/domain/event"
	"github.com/deedflow/deedflow/internal/registry/domain/property"
	"github.com/deedflow/deedflow/internal/registry/storage"
)

// Store keeps all registry state in memory behind one mutex.
type Store struct {
	mu          sync.RWMutex
	nextID      uint64
	properties  map[uint64]property.Property
	sellerIndex map[string][]uint64
	buyerIndex  map[string][]uint64
	events      []event.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		properties:  make(map[uint64]property.Property),
		sellerIndex: make(map[string][]uint64),
		buyerIndex:  make(map[string][]uint64),
	}
}

// Close releases nothing; it exists to satisfy the composite Store interface.
func (s *Store) Close() error {
	return nil
}

// NextPropertyID allocates the next identifier, starting at 1.
func (s *Store) NextPropertyID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

// CreateProperty stores a new record and indexes its parties under one
// mutex hold, so a failure leaves nothing behind.
func (s *Store) CreateProperty(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}
	if p.Seller == "" || p.Buyer == "" {
		return fmt.Errorf("seller and buyer are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; ok {
		return fmt.Errorf("property %d already exists", p.ID)
	}
	s.properties[p.ID] = p
	s.sellerIndex[p.Seller] = append(s.sellerIndex[p.Seller], p.ID)
	s.buyerIndex[p.Buyer] = append(s.buyerIndex[p.Buyer], p.ID)
	return nil
}

// PutProperty overwrites an existing record in place.
func (s *Store) PutProperty(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
	return nil
}

// ReassignSeller overwrites the record and appends the new seller's index
// entry under one mutex hold. The previous seller's entry is retained.
func (s *Store) ReassignSeller(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}
	if p.Seller == "" {
		return fmt.Errorf("seller is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; !ok {
		return storage.ErrNotFound
	}
	s.properties[p.ID] = p
	s.sellerIndex[p.Seller] = append(s.sellerIndex[p.Seller], p.ID)
	return nil
}

// GetProperty fetches a record by id.
func (s *Store) GetProperty(ctx context.Context, id uint64) (property.Property, error) {
	if err := ctx.Err(); err != nil {
		return property.Property{}, err
	}
	if s == nil {
		return property.Property{}, fmt.Errorf("storage is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return property.Property{}, storage.ErrNotFound
	}
	return p, nil
}

// ListProperties returns up to limit records with id greater than afterID.
func (s *Store) ListProperties(ctx context.Context, afterID uint64, limit int) ([]property.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.properties))
	for id := range s.properties {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	records := make([]property.Property, 0, len(ids))
	for _, id := range ids {
		records = append(records, s.properties[id])
	}
	return records, nil
}

// ListPropertiesBySeller returns the insertion-ordered seller index for address.
func (s *Store) ListPropertiesBySeller(ctx context.Context, address string) ([]uint64, error) {
	return s.listIndex(ctx, s.sellerIndex, address)
}

// ListPropertiesByBuyer returns the insertion-ordered buyer index for address.
func (s *Store) ListPropertiesByBuyer(ctx context.Context, address string) ([]uint64, error) {
	return s.listIndex(ctx, s.buyerIndex, address)
}

func (s *Store) listIndex(ctx context.Context, index map[string][]uint64, address string) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := index[address]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

// AppendEvent appends an event with the next global sequence number.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	evt.Seq = uint64(len(s.events)) + 1
	s.events = append(s.events, evt)
	return evt, nil
}

// ListEvents returns up to limit events with seq greater than afterSeq.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	return s.listEvents(ctx, 0, afterSeq, limit)
}

// ListEventsByProperty returns events for one record ordered by seq.
func (s *Store) ListEventsByProperty(ctx context.Context, propertyID uint64, afterSeq uint64, limit int) ([]event.Event, error) {
	if propertyID == 0 {
		return nil, fmt.Errorf("property id is required")
	}
	return s.listEvents(ctx, propertyID, afterSeq, limit)
}

func (s *Store) listEvents(ctx context.Context, propertyID uint64, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]event.Event, 0, limit)
	for _, evt := range s.events {
		if evt.Seq <= afterSeq {
			continue
		}
		if propertyID != 0 && evt.PropertyID != propertyID {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetRegistryStatistics returns aggregate counts over all records.
func (s *Store) GetRegistryStatistics(ctx context.Context) (storage.RegistryStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.RegistryStatistics{}, err
	}
	if s == nil {
		return storage.RegistryStatistics{}, fmt.Errorf("storage is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := storage.RegistryStatistics{
		PropertyCount: int64(len(s.properties)),
		EventCount:    int64(len(s.events)),
	}
	for _, p := range s.properties {
		switch p.Status {
		case property.StatusCompleted:
			stats.CompletedCount++
		case property.StatusCancelled:
			stats.CancelledCount++
		}
	}
	return stats, nil
}
