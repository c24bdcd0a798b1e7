package ledger

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a tenant has no entries yet.
var ErrNotFound = errors.New("audit entry not found")

// ErrInvalidInput is returned when an append is missing required fields.
var ErrInvalidInput = errors.New("invalid append input")

// AppendInput carries everything the caller knows about an action. The
// store assigns ID, SequenceNumber, Timestamp, PreviousHash, and HashChain.
type AppendInput struct {
	TenantID      string         `json:"tenantId"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId,omitempty"`
	ActorID       string         `json:"actorId,omitempty"`
	ActorName     string         `json:"actorName,omitempty"`
	PreviousState map[string]any `json:"previousState,omitempty"`
	NewState      map[string]any `json:"newState,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	IPAddress     string         `json:"ipAddress,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
}

func (in AppendInput) validate() error {
	if in.TenantID == "" {
		return errors.Join(ErrInvalidInput, errors.New("tenant id is required"))
	}
	if in.Action == "" {
		return errors.Join(ErrInvalidInput, errors.New("action is required"))
	}
	if in.EntityType == "" {
		return errors.Join(ErrInvalidInput, errors.New("entity type is required"))
	}
	return nil
}

// Store is the interface for the append-only audit ledger. Both MemoryStore
// and PostgresStore implement it. Append is the only write; nothing ever
// updates or deletes an entry.
type Store interface {
	// Append assigns the next gap-free sequence number for the tenant,
	// links the entry to the current chain tip, and persists it. Safe for
	// concurrent use; appends for the same tenant are serialized, different
	// tenants never contend. No retries are performed — a storage failure
	// propagates to the caller untouched.
	Append(ctx context.Context, in AppendInput) (*AuditEntry, error)

	// List returns the entries matching f ordered by timestamp ascending,
	// insertion order ascending, plus the total match count before
	// pagination. This is the exact order Verify requires.
	List(ctx context.Context, f Filter) ([]*AuditEntry, int, error)

	// Latest returns the chain tip for a tenant, or ErrNotFound. The tip is
	// always derived from storage, never cached.
	Latest(ctx context.Context, tenantID string) (*AuditEntry, error)

	// Count returns the number of entries for a tenant (all entries when
	// tenantID is empty).
	Count(ctx context.Context, tenantID string) (int64, error)
}
