package ledger_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ledgerguard/ledgerguard/internal/ledger"
)

func TestAppend_assignsSequenceAndLinks(t *testing.T) {
	store := ledger.NewMemoryStore()

	e1, err := store.Append(ctx, ledger.AppendInput{
		TenantID: "T1", Action: "order.created", EntityType: "work_order",
	})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := store.Append(ctx, ledger.AppendInput{
		TenantID: "T1", Action: "order.updated", EntityType: "work_order",
	})
	if err != nil {
		t.Fatal(err)
	}

	if e1.SequenceNumber != 1 || e2.SequenceNumber != 2 {
		t.Errorf("sequence numbers: got %d, %d, want 1, 2", e1.SequenceNumber, e2.SequenceNumber)
	}
	if e1.PreviousHash != "" {
		t.Errorf("first entry has previous hash %q", e1.PreviousHash)
	}
	if e2.PreviousHash != e1.HashChain {
		t.Errorf("chain broken: e2.PreviousHash=%q, want e1.HashChain=%q", e2.PreviousHash, e1.HashChain)
	}

	report := ledger.Verify([]*ledger.AuditEntry{e1, e2})
	if !report.Valid {
		t.Errorf("freshly written chain invalid: %+v", report.Violations)
	}
}

func TestAppend_tenantsGetIndependentSequences(t *testing.T) {
	store := ledger.NewMemoryStore()

	a, _ := store.Append(ctx, ledger.AppendInput{TenantID: "a", Action: "x.y", EntityType: "t"})
	b, _ := store.Append(ctx, ledger.AppendInput{TenantID: "b", Action: "x.y", EntityType: "t"})

	if a.SequenceNumber != 1 || b.SequenceNumber != 1 {
		t.Errorf("each tenant must start at sequence 1, got %d and %d", a.SequenceNumber, b.SequenceNumber)
	}
	if a.HashChain == b.HashChain {
		t.Error("identical payloads for different tenants hashed identically")
	}
}

func TestAppend_rejectsMissingFields(t *testing.T) {
	store := ledger.NewMemoryStore()

	cases := []ledger.AppendInput{
		{Action: "x.y", EntityType: "t"},
		{TenantID: "a", EntityType: "t"},
		{TenantID: "a", Action: "x.y"},
	}
	for i, in := range cases {
		if _, err := store.Append(ctx, in); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestAppend_concurrentWritersKeepChainIntact(t *testing.T) {
	store := ledger.NewMemoryStore()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := store.Append(ctx, ledger.AppendInput{
					TenantID:   "T1",
					Action:     "stress.write",
					EntityType: "item",
					EntityID:   fmt.Sprintf("w%d-%d", w, i),
				})
				if err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	entries, total, err := store.List(ctx, ledger.Filter{TenantID: "T1"})
	if err != nil {
		t.Fatal(err)
	}
	if total != writers*perWriter {
		t.Fatalf("expected %d entries, got %d", writers*perWriter, total)
	}

	report := ledger.Verify(entries)
	if !report.Valid {
		t.Errorf("chain forked under concurrency: %d violations", report.ViolationCount)
	}
}

func TestLatest_returnsChainTip(t *testing.T) {
	store := ledger.NewMemoryStore()

	if _, err := store.Latest(ctx, "nobody"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown tenant, got %v", err)
	}

	chain(t, store, "T1", 3)
	tip, err := store.Latest(ctx, "T1")
	if err != nil {
		t.Fatal(err)
	}
	if tip.SequenceNumber != 3 {
		t.Errorf("tip sequence = %d, want 3", tip.SequenceNumber)
	}
}

func TestList_filtering(t *testing.T) {
	store := ledger.NewMemoryStore()
	_, _ = store.Append(ctx, ledger.AppendInput{TenantID: "T1", Action: "order.created", EntityType: "work_order", ActorName: "Ada Lovelace"})
	_, _ = store.Append(ctx, ledger.AppendInput{TenantID: "T1", Action: "order.approved", EntityType: "work_order"})
	_, _ = store.Append(ctx, ledger.AppendInput{TenantID: "T2", Action: "order.created", EntityType: "invoice"})

	entries, total, err := store.List(ctx, ledger.Filter{Action: "order.created"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(entries) != 2 {
		t.Errorf("action filter: got %d/%d, want 2/2", len(entries), total)
	}

	entries, _, _ = store.List(ctx, ledger.Filter{TenantID: "T1", EntityType: "work_order"})
	if len(entries) != 2 {
		t.Errorf("tenant+entityType filter: got %d, want 2", len(entries))
	}

	entries, _, _ = store.List(ctx, ledger.Filter{Search: "lovelace"})
	if len(entries) != 1 {
		t.Errorf("search filter: got %d, want 1", len(entries))
	}
}

func TestList_pagination(t *testing.T) {
	store := ledger.NewMemoryStore()
	chain(t, store, "T1", 10)

	page2, total, err := store.List(ctx, ledger.Filter{TenantID: "T1", Page: 2, Limit: 4})
	if err != nil {
		t.Fatal(err)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
	if len(page2) != 4 {
		t.Fatalf("page 2 size = %d, want 4", len(page2))
	}
	if page2[0].SequenceNumber != 5 {
		t.Errorf("page 2 starts at sequence %d, want 5", page2[0].SequenceNumber)
	}

	tail, _, _ := store.List(ctx, ledger.Filter{TenantID: "T1", Page: 3, Limit: 4})
	if len(tail) != 2 {
		t.Errorf("last page size = %d, want 2", len(tail))
	}
}

func TestList_excludesArchivedByDefault(t *testing.T) {
	store := ledger.NewMemoryStore()
	entries := chain(t, store, "T1", 2)
	entries[0].Archived = true

	visible, _, _ := store.List(ctx, ledger.Filter{TenantID: "T1"})
	if len(visible) != 1 {
		t.Errorf("archived entry not excluded: got %d entries", len(visible))
	}

	all, _, _ := store.List(ctx, ledger.Filter{TenantID: "T1", IncludeArchived: true})
	if len(all) != 2 {
		t.Errorf("includeArchived: got %d entries, want 2", len(all))
	}
}

func TestCount(t *testing.T) {
	store := ledger.NewMemoryStore()
	chain(t, store, "T1", 3)
	chain(t, store, "T2", 2)

	if n, _ := store.Count(ctx, "T1"); n != 3 {
		t.Errorf("Count(T1) = %d, want 3", n)
	}
	if n, _ := store.Count(ctx, ""); n != 5 {
		t.Errorf("Count(all) = %d, want 5", n)
	}
}
