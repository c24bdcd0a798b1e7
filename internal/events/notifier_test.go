package events_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/events"
	"github.com/ledgerguard/ledgerguard/internal/ledger"
	"go.uber.org/zap"
)

var ctx = context.Background()

func newEntry(t *testing.T) *ledger.AuditEntry {
	t.Helper()
	store := ledger.NewMemoryStore()
	e, err := store.Append(ctx, ledger.AppendInput{
		TenantID: "T1", Action: "order.created", EntityType: "work_order",
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEntryCreated_deliversSignedEvent(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := events.NewNotifier([]events.Sink{{URL: srv.URL, Secret: "s3cret"}}, zap.NewNop())
	entry := newEntry(t)
	n.EntryCreated(ctx, entry)

	select {
	case r := <-received:
		body := <-bodies

		var event events.Event
		if err := json.Unmarshal(body, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != events.EventEntryCreated {
			t.Errorf("event type = %q", event.Type)
		}
		if event.TenantID != "T1" || event.SequenceNumber != 1 {
			t.Errorf("event coordinates: %+v", event)
		}
		if event.HashChain != entry.HashChain {
			t.Error("event hash does not match entry")
		}

		mac := hmac.New(sha256.New, []byte("s3cret"))
		mac.Write(body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("X-Ledger-Signature"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery within 2s")
	}
}

func TestEntryCreated_noSinksIsNoop(t *testing.T) {
	n := events.NewNotifier(nil, zap.NewNop())
	n.EntryCreated(ctx, newEntry(t)) // must not panic or block
}

func TestEntryCreated_recordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	outcome := make(chan bool, 1)
	n := events.NewNotifier([]events.Sink{{URL: srv.URL}}, zap.NewNop())
	n.SetMetricsRecorder(func(success bool) { outcome <- success })

	n.EntryCreated(ctx, newEntry(t))

	select {
	case ok := <-outcome:
		if !ok {
			t.Error("expected successful delivery")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("metrics callback not invoked within 2s")
	}
}
