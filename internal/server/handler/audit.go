// Package handler exposes the operator-facing HTTP surface of the audit
// ledger: recording entries, filtered listing, integrity checks, and
// checksummed exports.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerguard/ledgerguard/internal/events"
	"github.com/ledgerguard/ledgerguard/internal/export"
	"github.com/ledgerguard/ledgerguard/internal/ledger"
	"go.uber.org/zap"
)

const (
	defaultPageSize  = 50
	maxPageSize      = 500
	defaultMaxExport = 10000
)

// AuditHandler serves the audit ledger routes.
type AuditHandler struct {
	store     ledger.Store
	exporter  *export.Engine
	notifier  *events.Notifier // nil disables notifications
	maxExport int
	logger    *zap.Logger
}

// NewAuditHandler creates an AuditHandler. maxExport caps the number of
// entries a single export may render; 0 selects the default.
func NewAuditHandler(store ledger.Store, exporter *export.Engine, notifier *events.Notifier, maxExport int, logger *zap.Logger) *AuditHandler {
	if maxExport <= 0 {
		maxExport = defaultMaxExport
	}
	return &AuditHandler{
		store:     store,
		exporter:  exporter,
		notifier:  notifier,
		maxExport: maxExport,
		logger:    logger,
	}
}

// Register mounts the audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/audit")
	{
		a.POST("", h.Record)
		a.GET("", h.List)
		a.GET("/export", h.Export)
		a.POST("/integrity-check", h.IntegrityCheck)
		a.GET("/:tenantId/latest", h.Latest)
	}
}

// Record handles POST /audit — appends an entry for a remote business
// service. In-process callers use the store's transactional append directly;
// this endpoint runs the append in its own transaction.
func (h *AuditHandler) Record(c *gin.Context) {
	var in ledger.AppendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	// Request provenance defaults to the calling connection when the
	// service did not forward the original values.
	if in.IPAddress == "" {
		in.IPAddress = c.ClientIP()
	}
	if in.UserAgent == "" {
		in.UserAgent = c.Request.UserAgent()
	}

	entry, err := h.store.Append(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("append audit entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record audit entry"})
		return
	}

	RecordAppend(entry.TenantID)
	if h.notifier != nil {
		// Deliveries outlive the request.
		h.notifier.EntryCreated(context.WithoutCancel(c.Request.Context()), entry)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":             entry.ID,
		"sequenceNumber": entry.SequenceNumber,
		"hashChain":      entry.HashChain,
	})
}

// List handles GET /audit — a filtered, paginated entry listing.
func (h *AuditHandler) List(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	entries, total, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit entries"})
		return
	}
	if entries == nil {
		entries = []*ledger.AuditEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"page":    f.Page,
		"limit":   f.Limit,
	})
}

// Export handles GET /audit/export — renders the filtered window into the
// requested format. The format is validated before any query executes; a
// window with no matching entries is a valid, empty export, not an error.
func (h *AuditHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.Limit <= 0 || f.Limit > h.maxExport {
		f.Limit = h.maxExport
	}

	entries, _, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("query export window", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	report := ledger.Verify(entries)
	artifact, err := h.exporter.Export(format, entries, export.Context{
		TenantID:   f.TenantID,
		ExportedBy: operatorFrom(c),
		ExportedAt: time.Now().UTC(),
		Filter:     f,
		Report:     report,
	})
	if err != nil {
		h.logger.Error("render export", zap.String("format", string(format)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	RecordExport(string(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Header("X-Export-Checksum", artifact.Checksum)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Body)
}

// IntegrityCheck handles POST /audit/integrity-check — verifies the
// filtered window and returns itemized findings. Violations are reported,
// never thrown: a corrupted chain still answers 200.
func (h *AuditHandler) IntegrityCheck(c *gin.Context) {
	var f ledger.Filter
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed filter body"})
			return
		}
	}

	entries, _, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("query integrity window", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit entries"})
		return
	}

	report := ledger.Verify(entries)
	RecordIntegrityCheck(report.Valid)
	if !report.Valid {
		h.logger.Warn("integrity check found violations",
			zap.String("tenant_id", f.TenantID),
			zap.Int("violations", report.ViolationCount),
		)
	}
	c.JSON(http.StatusOK, report)
}

// Latest handles GET /audit/:tenantId/latest — returns the chain tip.
func (h *AuditHandler) Latest(c *gin.Context) {
	tenantID := c.Param("tenantId")

	tip, err := h.store.Latest(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no entries for tenant"})
			return
		}
		h.logger.Error("query chain tip", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query chain tip"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenantId":       tip.TenantID,
		"sequenceNumber": tip.SequenceNumber,
		"hashChain":      tip.HashChain,
		"timestamp":      tip.Timestamp,
	})
}

// filterFromQuery parses the shared filter query parameters. "userId" is
// accepted as an alias for actorId, and "entityName" folds into the
// substring search, matching what the operator UI sends.
func filterFromQuery(c *gin.Context) (ledger.Filter, error) {
	f := ledger.Filter{
		TenantID:   c.Query("tenantId"),
		Action:     c.Query("action"),
		EntityType: c.Query("entityType"),
		EntityID:   c.Query("entityId"),
		ActorID:    c.Query("actorId"),
		ActorName:  c.Query("actorName"),
		Search:     c.Query("search"),
	}
	if f.ActorID == "" {
		f.ActorID = c.Query("userId")
	}
	if f.Search == "" {
		f.Search = c.Query("entityName")
	}

	var err error
	if f.DateFrom, err = parseDate(c.Query("dateFrom"), false); err != nil {
		return f, fmt.Errorf("invalid dateFrom: %w", err)
	}
	if f.DateTo, err = parseDate(c.Query("dateTo"), true); err != nil {
		return f, fmt.Errorf("invalid dateTo: %w", err)
	}

	if v := c.Query("includeArchived"); v != "" {
		f.IncludeArchived, err = strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid includeArchived: %w", err)
		}
	}
	if v := c.Query("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil || f.Page < 1 {
			return f, fmt.Errorf("page must be a positive integer")
		}
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 1 {
			return f, fmt.Errorf("limit must be a positive integer")
		}
	}
	return f, nil
}

// parseDate accepts RFC 3339 or a bare date. A bare date used as a range
// end is pushed to the end of that day so the range is inclusive.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("want RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// Healthz returns a liveness handler that pings the backing store.
func Healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
