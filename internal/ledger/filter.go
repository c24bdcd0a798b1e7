package ledger

import (
	"strings"
	"time"
)

// Filter selects a window of the ledger for listing, verification, or
// export. Zero-valued fields are ignored. Filters are echoed back verbatim
// inside structured exports, so every field carries a JSON tag.
type Filter struct {
	TenantID        string     `json:"tenantId,omitempty"`
	Action          string     `json:"action,omitempty"`
	EntityType      string     `json:"entityType,omitempty"`
	EntityID        string     `json:"entityId,omitempty"`
	ActorID         string     `json:"actorId,omitempty"`
	ActorName       string     `json:"actorName,omitempty"`
	Search          string     `json:"search,omitempty"` // substring over action, entity id, actor name
	DateFrom        *time.Time `json:"dateFrom,omitempty"`
	DateTo          *time.Time `json:"dateTo,omitempty"`
	IncludeArchived bool       `json:"includeArchived,omitempty"`

	// Page starts at 1. Limit <= 0 means unbounded — integrity checks walk
	// the whole window; the HTTP layer applies its own defaults and caps.
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Offset returns the row offset implied by Page and Limit.
func (f Filter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Matches reports whether e satisfies every criterion of the filter except
// pagination. Used by MemoryStore; PostgresStore compiles the same
// predicates into SQL.
func (f Filter) Matches(e *AuditEntry) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.ActorName != "" && !containsFold(e.ActorName, f.ActorName) {
		return false
	}
	if f.Search != "" &&
		!containsFold(e.Action, f.Search) &&
		!containsFold(e.EntityID, f.Search) &&
		!containsFold(e.ActorName, f.Search) {
		return false
	}
	if f.DateFrom != nil && e.Timestamp.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.Timestamp.After(*f.DateTo) {
		return false
	}
	if !f.IncludeArchived && e.Archived {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
