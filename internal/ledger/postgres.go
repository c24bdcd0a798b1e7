package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists the audit ledger to PostgreSQL. It implements Store.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// tenantLockKey derives a stable advisory-lock key from a tenant id. Each
// tenant gets its own key so chains of different tenants never contend.
func tenantLockKey(tenantID string) int64 {
	sum := sha256.Sum256([]byte(tenantID))
	return int64(binary.BigEndian.Uint64(sum[:8])) //nolint:gosec // intentional wraparound
}

const entryColumns = `
	id, tenant_id, sequence_number, action, entity_type,
	COALESCE(entity_id, ''), COALESCE(actor_id, ''), COALESCE(actor_name, ''),
	previous_state, new_state, metadata,
	COALESCE(ip_address, ''), COALESCE(user_agent, ''),
	timestamp, hash_chain, COALESCE(previous_hash, ''), archived`

// Append implements Store. It runs AppendTx inside its own transaction.
func (s *PostgresStore) Append(ctx context.Context, in AppendInput) (*AuditEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err := s.AppendTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit audit tx: %w", err)
	}
	return entry, nil
}

// AppendTx is the write-side contract for callers that record audit entries
// inside their own unit of work: the entry commits and aborts atomically
// with the caller's transaction.
//
// A transaction-scoped advisory lock keyed by tenant serializes the
// read-tip/assign-next/insert sequence, so two concurrent writers can never
// read the same chain tip. The lock releases on commit or rollback. No
// retries happen here — retry policy belongs above the chain-assignment
// boundary, otherwise one logical write could consume two sequence numbers.
func (s *PostgresStore) AppendTx(ctx context.Context, tx pgx.Tx, in AppendInput) (*AuditEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", tenantLockKey(in.TenantID)); err != nil {
		return nil, fmt.Errorf("acquire tenant lock: %w", err)
	}

	// Read the chain tip. The tip is always derived from storage here,
	// under the lock — never cached.
	var prevSeq int64
	var prevHash string
	err := tx.QueryRow(ctx,
		`SELECT sequence_number, hash_chain FROM audit_entries
		 WHERE tenant_id = $1 ORDER BY sequence_number DESC LIMIT 1`,
		in.TenantID,
	).Scan(&prevSeq, &prevHash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		prevSeq, prevHash = 0, ""
	case err != nil:
		return nil, fmt.Errorf("read chain tip: %w", err)
	}

	entry := &AuditEntry{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		SequenceNumber: prevSeq + 1,
		Action:         in.Action,
		EntityType:     in.EntityType,
		EntityID:       in.EntityID,
		ActorID:        in.ActorID,
		ActorName:      in.ActorName,
		PreviousState:  in.PreviousState,
		NewState:       in.NewState,
		Metadata:       in.Metadata,
		IPAddress:      in.IPAddress,
		UserAgent:      in.UserAgent,
		Timestamp:      time.Now().UTC().Truncate(time.Microsecond),
		PreviousHash:   prevHash,
	}
	entry.HashChain = Digest(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_entries (
			id, tenant_id, sequence_number, action, entity_type,
			entity_id, actor_id, actor_name,
			previous_state, new_state, metadata,
			ip_address, user_agent, timestamp, hash_chain, previous_hash, archived
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16, false
		)`,
		entry.ID, entry.TenantID, entry.SequenceNumber, entry.Action, entry.EntityType,
		nullIfEmpty(entry.EntityID), nullIfEmpty(entry.ActorID), nullIfEmpty(entry.ActorName),
		entry.PreviousState, entry.NewState, entry.Metadata,
		nullIfEmpty(entry.IPAddress), nullIfEmpty(entry.UserAgent),
		entry.Timestamp, entry.HashChain, nullIfEmpty(entry.PreviousHash),
	); err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	s.logger.Debug("audit entry appended",
		zap.String("tenant_id", entry.TenantID),
		zap.Int64("sequence_number", entry.SequenceNumber),
		zap.String("action", entry.Action),
	)
	return entry, nil
}

// List implements Store. Results are ordered timestamp ascending with the
// per-tenant sequence number as tie-break — the order Verify expects.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*AuditEntry, int, error) {
	where := `
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3 = '' OR entity_type = $3)
		  AND ($4 = '' OR entity_id = $4)
		  AND ($5 = '' OR actor_id = $5)
		  AND ($6 = '' OR actor_name ILIKE '%' || $6 || '%')
		  AND ($7 = '' OR action ILIKE '%' || $7 || '%'
		       OR entity_id ILIKE '%' || $7 || '%'
		       OR actor_name ILIKE '%' || $7 || '%')
		  AND ($8::timestamptz IS NULL OR timestamp >= $8)
		  AND ($9::timestamptz IS NULL OR timestamp <= $9)
		  AND ($10 OR NOT archived)`
	args := []any{
		f.TenantID, f.Action, f.EntityType, f.EntityID, f.ActorID,
		f.ActorName, f.Search, f.DateFrom, f.DateTo, f.IncludeArchived,
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := "SELECT " + entryColumns + " FROM audit_entries" + where +
		" ORDER BY timestamp ASC, sequence_number ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Offset())
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Latest implements Store.
func (s *PostgresStore) Latest(ctx context.Context, tenantID string) (*AuditEntry, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+entryColumns+` FROM audit_entries
		 WHERE tenant_id = $1 ORDER BY sequence_number DESC LIMIT 1`,
		tenantID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_entries WHERE ($1 = '' OR tenant_id = $1)",
		tenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

func scanEntry(row pgx.Row) (*AuditEntry, error) {
	e := &AuditEntry{}
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.SequenceNumber, &e.Action, &e.EntityType,
		&e.EntityID, &e.ActorID, &e.ActorName,
		&e.PreviousState, &e.NewState, &e.Metadata,
		&e.IPAddress, &e.UserAgent,
		&e.Timestamp, &e.HashChain, &e.PreviousHash, &e.Archived,
	); err != nil {
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}
	return e, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
