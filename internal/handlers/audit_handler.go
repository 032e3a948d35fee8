package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lostandfound/internal/models"
	"lostandfound/internal/pdf"
	"lostandfound/internal/services"
)

// AuditHandler is the operator view over the auth event log and the detector.
type AuditHandler struct {
	Audit    services.AuditService
	Detector *services.DetectorService
	Reports  pdf.ReportGenerator
}

func NewAuditHandler(audit services.AuditService, detector *services.DetectorService, reports pdf.ReportGenerator) *AuditHandler {
	return &AuditHandler{Audit: audit, Detector: detector, Reports: reports}
}

// @Summary      List auth events
// @Description  Newest-first events with aggregates over the filtered set
// @Tags         Audit
// @Produce      json
// @Security     BearerAuth
// @Param        type        query     string  false  "Event type"
// @Param        identifier  query     string  false  "Identifier substring"
// @Param        limit       query     int     false  "Limit (default 50)"
// @Success      200         {object}  map[string]interface{}
// @Router       /audit/events [get]
func (h *AuditHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	filter := models.AuthEventFilter{
		Type:       c.Query("type"),
		Identifier: c.Query("identifier"),
		Limit:      limit,
	}

	events, stats, err := h.Audit.Query(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if events == nil {
		events = []*models.AuthEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "stats": stats})
}

// @Summary      Suspicious activity snapshot
// @Tags         Audit
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.DetectorSnapshot
// @Router       /audit/suspicious [get]
func (h *AuditHandler) Suspicious(c *gin.Context) {
	snap, err := h.Detector.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Export security report
// @Tags         Audit
// @Produce      application/pdf
// @Security     BearerAuth
// @Success      200  {file}  binary
// @Router       /audit/report [get]
func (h *AuditHandler) Report(c *gin.Context) {
	snap, err := h.Detector.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	events, stats, err := h.Audit.Query(models.AuthEventFilter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	data, err := h.Reports.GenerateSecurityReport(pdf.SecurityReportData{
		GeneratedAt: time.Now(),
		Snapshot:    snap,
		Events:      events,
		Stats:       stats,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report generation failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="security-report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
