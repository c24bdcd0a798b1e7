package client_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ledgerguard/ledgerguard/pkg/client"
)

var ctx = context.Background()

func TestRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/audit" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req client.RecordRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TenantID != "T1" || req.Action != "order.created" {
			t.Errorf("payload not forwarded: %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(client.RecordResult{
			ID: "abc", SequenceNumber: 7, HashChain: "deadbeef",
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	result, err := c.Record(ctx, client.RecordRequest{
		TenantID: "T1", Action: "order.created", EntityType: "work_order",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.SequenceNumber != 7 {
		t.Errorf("sequence = %d, want 7", result.SequenceNumber)
	}
}

func TestList_sendsFiltersAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("authorization header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("tenantId") != "T1" || q.Get("page") != "2" {
			t.Errorf("query not forwarded: %v", q)
		}
		json.NewEncoder(w).Encode(client.ListResult{Total: 0, Page: 2, Limit: 50})
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithBearerToken("tok123"))
	if _, err := c.List(ctx, client.Filter{TenantID: "T1", Page: 2}); err != nil {
		t.Fatal(err)
	}
}

func TestExport_verifiesChecksum(t *testing.T) {
	body := []byte(`{"entries":[]}`)
	sum := sha256.Sum256(body)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Export-Checksum", hex.EncodeToString(sum[:]))
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export-x.json"`)
		w.Write(body)
	}))
	defer srv.Close()

	artifact, err := client.New(srv.URL).Export(ctx, "json", client.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if artifact.Filename != "audit-export-x.json" {
		t.Errorf("filename = %q", artifact.Filename)
	}
}

func TestExport_rejectsCorruptedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Export-Checksum", strings.Repeat("0", 64))
		w.Write([]byte("tampered in transit"))
	}))
	defer srv.Close()

	if _, err := client.New(srv.URL).Export(ctx, "csv", client.Filter{}); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestAPIError_surfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unsupported export format"})
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).List(ctx, client.Filter{})
	if err == nil || !strings.Contains(err.Error(), "unsupported export format") {
		t.Errorf("error does not surface server message: %v", err)
	}
}
