package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenesisSentinel is substituted for the missing PreviousHash when computing
// the digest of the first entry in a tenant's chain. It is never stored.
const GenesisSentinel = "GENESIS"

// PendingHash marks an entry whose hash has not been finalized yet. It only
// appears in databases backfilled from the predecessor system; the write
// path always assigns hashes synchronously. Verify skips such entries
// instead of flagging them.
const PendingHash = "PENDING"

// canonicalTimeLayout renders timestamps at microsecond precision, matching
// what PostgreSQL timestamptz preserves. Digest recomputation after a
// storage round-trip is byte-for-byte identical only at this precision.
const canonicalTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// AuditEntry is a single immutable record in the ledger. Once written it is
// never updated or deleted; corrections are new entries that reference the
// original via Metadata.
type AuditEntry struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       string         `json:"tenantId"`
	SequenceNumber int64          `json:"sequenceNumber"`
	Action         string         `json:"action"`     // dotted verb, e.g. "purchase_order.approved"
	EntityType     string         `json:"entityType"`
	EntityID       string         `json:"entityId,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`   // empty for system/automation actors
	ActorName      string         `json:"actorName,omitempty"` // display-name snapshot taken at write time
	PreviousState  map[string]any `json:"previousState,omitempty"`
	NewState       map[string]any `json:"newState,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IPAddress      string         `json:"ipAddress,omitempty"`
	UserAgent      string         `json:"userAgent,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	HashChain      string         `json:"hashChain"`
	PreviousHash   string         `json:"previousHash,omitempty"` // empty for the first entry of a tenant
	Archived       bool           `json:"archived,omitempty"`
}

// CanonicalTimestamp returns the fixed string representation of t that the
// digest is computed over. Callers persisting entries must truncate to
// microseconds first (Append does) so the stored value re-renders
// identically.
func CanonicalTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(canonicalTimeLayout)
}

// Digest computes the deterministic SHA-256 digest of an entry's identity
// fields and returns it as 64 lowercase hex characters. Fields are joined by
// '|', which cannot appear in sequence numbers, timestamps, or hex digests;
// an absent PreviousHash is replaced by GenesisSentinel. Pure: no I/O, no
// error paths.
func Digest(e *AuditEntry) string {
	prev := e.PreviousHash
	if prev == "" {
		prev = GenesisSentinel
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s",
		e.TenantID, e.SequenceNumber, e.Action, e.EntityType, e.EntityID,
		CanonicalTimestamp(e.Timestamp), prev,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum returns the hex-encoded SHA-256 digest of data. It is the same
// primitive Digest is built on, applied to raw bytes; the export engine uses
// it to checksum rendered artifacts.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
