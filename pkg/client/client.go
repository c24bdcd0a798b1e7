// Package client is the Go SDK for the ledgerguard audit service.
//
// Business services use Record to append audit entries over HTTP; operator
// tooling uses List, Export, IntegrityCheck, and Latest. Exported artifacts
// are checksum-verified locally before being returned.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Entry mirrors the service's audit entry representation.
type Entry struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenantId"`
	SequenceNumber int64          `json:"sequenceNumber"`
	Action         string         `json:"action"`
	EntityType     string         `json:"entityType"`
	EntityID       string         `json:"entityId,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	ActorName      string         `json:"actorName,omitempty"`
	PreviousState  map[string]any `json:"previousState,omitempty"`
	NewState       map[string]any `json:"newState,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IPAddress      string         `json:"ipAddress,omitempty"`
	UserAgent      string         `json:"userAgent,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	HashChain      string         `json:"hashChain"`
	PreviousHash   string         `json:"previousHash,omitempty"`
	Archived       bool           `json:"archived,omitempty"`
}

// RecordRequest is the payload for Record.
type RecordRequest struct {
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

// RecordResult holds the chain coordinates assigned to a recorded entry.
type RecordResult struct {
	ID             string `json:"id"`
	SequenceNumber int64  `json:"sequenceNumber"`
	HashChain      string `json:"hashChain"`
}

// Filter mirrors the service's query parameters.
type Filter struct {
	TenantID        string
	Action          string
	EntityType      string
	EntityID        string
	ActorID         string
	ActorName       string
	Search          string
	DateFrom        string // RFC 3339 or YYYY-MM-DD
	DateTo          string
	IncludeArchived bool
	Page            int
	Limit           int
}

func (f Filter) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("tenantId", f.TenantID)
	set("action", f.Action)
	set("entityType", f.EntityType)
	set("entityId", f.EntityID)
	set("actorId", f.ActorID)
	set("actorName", f.ActorName)
	set("search", f.Search)
	set("dateFrom", f.DateFrom)
	set("dateTo", f.DateTo)
	if f.IncludeArchived {
		v.Set("includeArchived", "true")
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// ListResult is a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
}

// IntegrityReport mirrors the verifier's report.
type IntegrityReport struct {
	TotalChecked   int  `json:"totalChecked"`
	ViolationCount int  `json:"violationCount"`
	Valid          bool `json:"valid"`
	Violations     []struct {
		Type           string `json:"type"`
		TenantID       string `json:"tenantId"`
		SequenceNumber int64  `json:"sequenceNumber"`
		Detail         string `json:"detail"`
	} `json:"violations,omitempty"`
}

// ChainTip describes a tenant's latest entry.
type ChainTip struct {
	TenantID       string    `json:"tenantId"`
	SequenceNumber int64     `json:"sequenceNumber"`
	HashChain      string    `json:"hashChain"`
	Timestamp      time.Time `json:"timestamp"`
}

// ExportArtifact is a downloaded export with its verified checksum.
type ExportArtifact struct {
	Body        []byte
	ContentType string
	Filename    string
	Checksum    string
}

// Client talks to a ledgerguard service.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches an operator token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record appends an audit entry.
func (c *Client) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	var result RecordResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/audit", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List fetches a filtered page of entries.
func (c *Client) List(ctx context.Context, f Filter) (*ListResult, error) {
	var result ListResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/audit", f.values(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IntegrityCheck verifies the filtered window server-side.
func (c *Client) IntegrityCheck(ctx context.Context, f Filter) (*IntegrityReport, error) {
	body := map[string]any{}
	if f.TenantID != "" {
		body["tenantId"] = f.TenantID
	}
	if f.Action != "" {
		body["action"] = f.Action
	}
	if f.EntityType != "" {
		body["entityType"] = f.EntityType
	}
	if f.IncludeArchived {
		body["includeArchived"] = true
	}
	var report IntegrityReport
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/audit/integrity-check", nil, body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Latest fetches a tenant's chain tip.
func (c *Client) Latest(ctx context.Context, tenantID string) (*ChainTip, error) {
	var tip ChainTip
	path := "/api/v1/audit/" + url.PathEscape(tenantID) + "/latest"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &tip); err != nil {
		return nil, err
	}
	return &tip, nil
}

// Export downloads an export artifact and verifies its checksum against the
// X-Export-Checksum header before returning it.
func (c *Client) Export(ctx context.Context, format string, f Filter) (*ExportArtifact, error) {
	q := f.values()
	q.Set("format", format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/audit/export?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	checksum := resp.Header.Get("X-Export-Checksum")
	sum := sha256.Sum256(body)
	if got := hex.EncodeToString(sum[:]); checksum != "" && got != checksum {
		return nil, fmt.Errorf("export checksum mismatch: header %s, body %s", checksum, got)
	}

	filename := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			filename = params["filename"]
		}
	}

	return &ExportArtifact{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filename,
		Checksum:    checksum,
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func apiError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("HTTP %d: %s", status, e.Error)
	}
	return fmt.Errorf("HTTP %d", status)
}
