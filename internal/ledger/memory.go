package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for tests and single-process development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*AuditEntry          // insertion order
	tips    map[string]*AuditEntry // chain tip per tenant
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tips: make(map[string]*AuditEntry)}
}

// Append implements Store. The single mutex serializes all appends, which
// trivially satisfies the per-tenant sequencing requirement.
func (s *MemoryStore) Append(_ context.Context, in AppendInput) (*AuditEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prevSeq int64
	var prevHash string
	if tip := s.tips[in.TenantID]; tip != nil {
		prevSeq, prevHash = tip.SequenceNumber, tip.HashChain
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

	s.entries = append(s.entries, entry)
	s.tips[in.TenantID] = entry
	return entry, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*AuditEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*AuditEntry
	for _, e := range s.entries {
		if f.Matches(e) {
			matched = append(matched, e)
		}
	}
	// Stable sort keeps insertion order for equal timestamps, matching the
	// order sequence numbers were assigned in.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	total := len(matched)
	if f.Limit > 0 {
		start := f.Offset()
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context, tenantID string) (*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tip := s.tips[tenantID]
	if tip == nil {
		return nil, ErrNotFound
	}
	return tip, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, tenantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tenantID == "" {
		return int64(len(s.entries)), nil
	}
	var n int64
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}
