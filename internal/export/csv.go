package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ledgerguard/ledgerguard/internal/ledger"
)

// csvHeader is the fixed, caller-independent column set of the tabular
// export. Changing it breaks downstream compliance tooling.
var csvHeader = []string{
	"timestamp", "action", "entity_type", "entity_id", "actor_id", "actor_name",
	"previous_state", "new_state", "metadata", "ip_address", "user_agent",
	"sequence_number", "hash_chain", "previous_hash",
}

// renderCSV writes one row per entry. Structured fields are serialized to
// canonical JSON; encoding/csv quotes any field containing the separator,
// quotes, or newlines. Absent fields render empty.
func renderCSV(entries []*ledger.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		prev, err := jsonField(e.PreviousState)
		if err != nil {
			return nil, fmt.Errorf("entry %s previous state: %w", e.ID, err)
		}
		next, err := jsonField(e.NewState)
		if err != nil {
			return nil, fmt.Errorf("entry %s new state: %w", e.ID, err)
		}
		meta, err := jsonField(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("entry %s metadata: %w", e.ID, err)
		}

		row := []string{
			ledger.CanonicalTimestamp(e.Timestamp),
			e.Action,
			e.EntityType,
			e.EntityID,
			e.ActorID,
			e.ActorName,
			prev,
			next,
			meta,
			e.IPAddress,
			e.UserAgent,
			strconv.FormatInt(e.SequenceNumber, 10),
			e.HashChain,
			e.PreviousHash,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// jsonField serializes a structured document, rendering absence as empty.
func jsonField(doc map[string]any) (string, error) {
	if doc == nil {
		return "", nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
