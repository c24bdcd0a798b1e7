// Package events pushes near-real-time notifications of new ledger entries
// to configured HTTP sinks. Delivery is fire-and-forget: the write path has
// already committed by the time a notification goes out, and a failed
// delivery never affects ledger correctness.
package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerguard/ledgerguard/internal/ledger"
	"go.uber.org/zap"
)

// EventEntryCreated is emitted after an audit entry commits.
const EventEntryCreated = "audit.entry.created"

// Sink is a delivery target. Secret, when set, signs the payload so the
// receiver can authenticate it.
type Sink struct {
	URL    string
	Secret string
}

// Event is the notification payload. It carries the chain coordinates of
// the new entry, not its full body — consumers fetch details through the
// read API.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	TenantID       string    `json:"tenantId"`
	SequenceNumber int64     `json:"sequenceNumber"`
	Action         string    `json:"action"`
	HashChain      string    `json:"hashChain"`
}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Notifier fans events out to all configured sinks.
type Notifier struct {
	sinks      []Sink
	httpClient *http.Client
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

// NewNotifier creates a Notifier. With no sinks it is a cheap no-op.
func NewNotifier(sinks []Sink, logger *zap.Logger) *Notifier {
	return &Notifier{
		sinks:      sinks,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (n *Notifier) SetMetricsRecorder(fn MetricsRecorder) {
	n.onMetrics = fn
}

// EntryCreated dispatches an entry-created event to every sink. It returns
// immediately; deliveries run in their own goroutines.
func (n *Notifier) EntryCreated(ctx context.Context, e *ledger.AuditEntry) {
	if len(n.sinks) == 0 {
		return
	}
	event := Event{
		ID:             uuid.New(),
		Type:           EventEntryCreated,
		Timestamp:      time.Now().UTC(),
		TenantID:       e.TenantID,
		SequenceNumber: e.SequenceNumber,
		Action:         e.Action,
		HashChain:      e.HashChain,
	}
	for _, sink := range n.sinks {
		go n.deliver(ctx, sink, event)
	}
}

// deliver sends one event to one sink with bounded retries.
func (n *Notifier) deliver(ctx context.Context, sink Sink, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("events: marshal event", zap.Error(err))
		return
	}

	delays := []time.Duration{0, 1 * time.Second, 5 * time.Second}
	for attempt := 0; attempt < len(delays); attempt++ {
		if delays[attempt] > 0 {
			time.Sleep(delays[attempt])
		}

		ok, status := n.post(ctx, sink, body)
		if n.onMetrics != nil {
			n.onMetrics(ok)
		}
		if ok {
			return
		}
		n.logger.Warn("events: delivery failed",
			zap.String("url", sink.URL),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
		)
	}
}

func (n *Notifier) post(ctx context.Context, sink Sink, body []byte) (bool, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sink.URL, bytes.NewReader(body))
	if err != nil {
		return false, 0
	}
	req.Header.Set("Content-Type", "application/json")
	if sink.Secret != "" {
		req.Header.Set("X-Ledger-Signature", signPayload(body, sink.Secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, 0
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	return resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode
}

// signPayload computes the HMAC-SHA256 signature header value.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
