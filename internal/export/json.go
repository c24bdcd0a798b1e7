package export

import (
	"encoding/json"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/ledger"
)

// Envelope is the structured export document. Filters echo back the exact
// criteria that selected the entries, and HashChainValid is the verifier
// verdict over exactly this slice — together they make the export itself
// auditable.
type Envelope struct {
	ExportedAt     time.Time            `json:"exportedAt"`
	ExportedBy     string               `json:"exportedBy"`
	TenantID       string               `json:"tenantId,omitempty"`
	Filters        ledger.Filter        `json:"filters"`
	HashChainValid bool                 `json:"hashChainValid"`
	TotalEntries   int                  `json:"totalEntries"`
	Entries        []*ledger.AuditEntry `json:"entries"`
}

func renderJSON(entries []*ledger.AuditEntry, exportCtx Context) ([]byte, error) {
	if entries == nil {
		entries = []*ledger.AuditEntry{} // render [] rather than null
	}
	env := Envelope{
		ExportedAt:     exportCtx.ExportedAt.UTC(),
		ExportedBy:     exportCtx.ExportedBy,
		TenantID:       exportCtx.TenantID,
		Filters:        exportCtx.Filter,
		HashChainValid: exportCtx.Report.Valid,
		TotalEntries:   len(entries),
		Entries:        entries,
	}
	return json.MarshalIndent(env, "", "  ")
}
