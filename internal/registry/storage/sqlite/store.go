// Package sqlite provides the durable SQLite-backed registry store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deedflow/deedflow/internal/platform/storage/sqlitemigrate"
	"github.com/deedflow/deedflow/internal/registry/domain/event"
	"github.com/deedflow/deedflow/internal/registry/domain/property"
	"github.com/deedflow/deedflow/internal/registry/storage"
	"github.com/deedflow/deedflow/internal/registry/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

const (
	roleSeller = "seller"
	roleBuyer  = "buyer"
)

// Store provides a SQLite-backed store implementing all storage interfaces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite registry store at the provided path and applies
// embedded migrations before the store is handed to higher layers.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.RegistryFS, "registry"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// NextPropertyID allocates the next identifier, starting at 1.
func (s *Store) NextPropertyID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var next int64
	row := s.sqlDB.QueryRowContext(ctx,
		"UPDATE property_seq SET next_id = next_id + 1 WHERE id = 1 RETURNING next_id")
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate property id: %w", err)
	}
	if next <= 0 {
		return 0, fmt.Errorf("property sequence returned %d", next)
	}
	return uint64(next), nil
}

// CreateProperty inserts a new record and its seller and buyer index rows
// in one transaction, so a failure rolls back all three writes.
func (s *Store) CreateProperty(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}
	if strings.TrimSpace(p.Seller) == "" || strings.TrimSpace(p.Buyer) == "" {
		return fmt.Errorf("seller and buyer are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create property: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO properties (
    id, seller, buyer, notary, government, doc_hash, status,
    notary_approved, buyer_approved, government_sealed, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(p.ID), p.Seller, p.Buyer, p.Notary, p.Government, p.DocHash,
		property.StatusLabel(p.Status), boolToInt(p.NotaryApproved),
		boolToInt(p.BuyerApproved), boolToInt(p.GovernmentSealed),
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert property: %w", err)
	}
	for _, row := range []struct {
		address string
		role    string
	}{
		{p.Seller, roleSeller},
		{p.Buyer, roleBuyer},
	} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO party_index (address, role, property_id) VALUES (?, ?, ?)",
			row.address, row.role, int64(p.ID)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append %s index: %w", row.role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create property: %w", err)
	}
	return nil
}

// PutProperty stores a record, overwriting in place.
func (s *Store) PutProperty(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO properties (
    id, seller, buyer, notary, government, doc_hash, status,
    notary_approved, buyer_approved, government_sealed, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    seller = excluded.seller,
    buyer = excluded.buyer,
    notary = excluded.notary,
    government = excluded.government,
    doc_hash = excluded.doc_hash,
    status = excluded.status,
    notary_approved = excluded.notary_approved,
    buyer_approved = excluded.buyer_approved,
    government_sealed = excluded.government_sealed,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`,
		int64(p.ID), p.Seller, p.Buyer, p.Notary, p.Government, p.DocHash,
		property.StatusLabel(p.Status), boolToInt(p.NotaryApproved),
		boolToInt(p.BuyerApproved), boolToInt(p.GovernmentSealed),
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put property: %w", err)
	}
	return nil
}

// GetProperty fetches a record by id.
func (s *Store) GetProperty(ctx context.Context, id uint64) (property.Property, error) {
	if err := ctx.Err(); err != nil {
		return property.Property{}, err
	}
	if s == nil || s.sqlDB == nil {
		return property.Property{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, seller, buyer, notary, government, doc_hash, status,
    notary_approved, buyer_approved, government_sealed, created_at, updated_at
FROM properties WHERE id = ?`, int64(id))
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return property.Property{}, storage.ErrNotFound
		}
		return property.Property{}, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}

// ListProperties returns up to limit records with id greater than afterID.
func (s *Store) ListProperties(ctx context.Context, afterID uint64, limit int) ([]property.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, seller, buyer, notary, government, doc_hash, status,
    notary_approved, buyer_approved, government_sealed, created_at, updated_at
FROM properties WHERE id > ? ORDER BY id ASC LIMIT ?`, int64(afterID), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	records := make([]property.Property, 0, limit)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	return records, nil
}

// ReassignSeller overwrites the record and appends the new seller's index
// row in one transaction. The previous seller's row is retained.
func (s *Store) ReassignSeller(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}
	if strings.TrimSpace(p.Seller) == "" {
		return fmt.Errorf("seller is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reassign seller: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE properties SET seller = ?, updated_at = ? WHERE id = ?",
		p.Seller, toMillis(p.UpdatedAt), int64(p.ID))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update seller: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update seller: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO party_index (address, role, property_id) VALUES (?, ?, ?)",
		p.Seller, roleSeller, int64(p.ID)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append seller index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reassign seller: %w", err)
	}
	return nil
}

// ListPropertiesBySeller returns the insertion-ordered seller index for address.
func (s *Store) ListPropertiesBySeller(ctx context.Context, address string) ([]uint64, error) {
	return s.listIndex(ctx, address, roleSeller)
}

// ListPropertiesByBuyer returns the insertion-ordered buyer index for address.
func (s *Store) ListPropertiesByBuyer(ctx context.Context, address string) ([]uint64, error) {
	return s.listIndex(ctx, address, roleBuyer)
}

func (s *Store) listIndex(ctx context.Context, address, role string) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT property_id FROM party_index WHERE address = ? AND role = ? ORDER BY pos ASC",
		address, role)
	if err != nil {
		return nil, fmt.Errorf("list %s index: %w", role, err)
	}
	defer rows.Close()

	ids := make([]uint64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s index: %w", role, err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s index: %w", role, err)
	}
	return ids, nil
}

// AppendEvent appends an event and returns it with its sequence number set.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if evt.Name == "" {
		return event.Event{}, fmt.Errorf("event name is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	var seq int64
	row := s.sqlDB.QueryRowContext(ctx, `
INSERT INTO events (name, property_id, actor, subject, doc_hash, request_id, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING seq`,
		string(evt.Name), int64(evt.PropertyID), evt.Actor, evt.Subject,
		evt.DocHash, evt.RequestID, toMillis(evt.Timestamp))
	if err := row.Scan(&seq); err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	evt.Seq = uint64(seq)
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
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	query := `
SELECT seq, name, property_id, actor, subject, doc_hash, request_id, timestamp
FROM events WHERE seq > ?`
	args := []any{int64(afterSeq)}
	if propertyID != 0 {
		query += " AND property_id = ?"
		args = append(args, int64(propertyID))
	}
	query += " ORDER BY seq ASC LIMIT ?"
	args = append(args, int64(limit))

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		var evt event.Event
		var seq, pid, ts int64
		var name string
		if err := rows.Scan(&seq, &name, &pid, &evt.Actor, &evt.Subject, &evt.DocHash, &evt.RequestID, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Name = event.Name(name)
		evt.PropertyID = uint64(pid)
		evt.Timestamp = fromMillis(ts)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// GetRegistryStatistics returns aggregate counts over all records.
func (s *Store) GetRegistryStatistics(ctx context.Context) (storage.RegistryStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.RegistryStatistics{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RegistryStatistics{}, fmt.Errorf("storage is not configured")
	}

	var stats storage.RegistryStatistics
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(*) FROM properties),
    (SELECT COUNT(*) FROM properties WHERE status = ?),
    (SELECT COUNT(*) FROM properties WHERE status = ?),
    (SELECT COUNT(*) FROM events)`,
		property.StatusLabel(property.StatusCompleted),
		property.StatusLabel(property.StatusCancelled))
	if err := row.Scan(&stats.PropertyCount, &stats.CompletedCount, &stats.CancelledCount, &stats.EventCount); err != nil {
		return storage.RegistryStatistics{}, fmt.Errorf("get registry statistics: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (property.Property, error) {
	var p property.Property
	var id, createdAt, updatedAt int64
	var status string
	var notaryApproved, buyerApproved, governmentSealed int
	if err := row.Scan(&id, &p.Seller, &p.Buyer, &p.Notary, &p.Government,
		&p.DocHash, &status, &notaryApproved, &buyerApproved,
		&governmentSealed, &createdAt, &updatedAt); err != nil {
		return property.Property{}, err
	}
	parsed, err := property.StatusFromLabel(status)
	if err != nil {
		return property.Property{}, err
	}
	p.ID = uint64(id)
	p.Status = parsed
	p.NotaryApproved = notaryApproved != 0
	p.BuyerApproved = buyerApproved != 0
	p.GovernmentSealed = governmentSealed != 0
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
