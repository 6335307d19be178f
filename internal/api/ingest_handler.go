package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"SportsNations/internal/adapter"
	"SportsNations/internal/model"
	"SportsNations/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IngestHandler connector 列表与手动触发抓取
type IngestHandler struct {
	ingestService *service.IngestService
	registry      *adapter.Registry
	logger        *logrus.Logger
	now           func() time.Time
}

// NewIngestHandler 创建 IngestHandler
func NewIngestHandler(svc *service.IngestService, registry *adapter.Registry, logger *logrus.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: svc,
		registry:      registry,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type connectorItem struct {
	ID         string `json:"id"`
	SourceName string `json:"source_name"`
	SourceType string `json:"source_type"`
	BaseURL    string `json:"base_url,omitempty"`
}

// ListConnectors 已注册的 connector
// GET /api/connectors
func (h *IngestHandler) ListConnectors(c *gin.Context) {
	ids := h.registry.List()
	items := make([]connectorItem, 0, len(ids))
	for _, id := range ids {
		conn, err := h.registry.Get(id)
		if err != nil {
			continue
		}
		src := conn.Source()
		items = append(items, connectorItem{
			ID:         id,
			SourceName: src.SourceName,
			SourceType: src.SourceType,
			BaseURL:    model.Deref(src.BaseURL),
		})
	}
	c.JSON(http.StatusOK, gin.H{"connectors": items})
}

// Ingest 抓取单个 connector
// POST /api/ingest/:connector?year=2024
func (h *IngestHandler) Ingest(c *gin.Context) {
	id := c.Param("connector")
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(h.now().Year())))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
		return
	}

	outcome, err := h.ingestService.Ingest(c.Request.Context(), id, year)
	if err != nil {
		h.logger.WithError(err).WithField("connector", id).Error("Ingest failed")
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if outcome.Status == model.ImportError {
		status = http.StatusBadGateway
	}
	c.JSON(status, outcome)
}

// statusOf 错误分类到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownConnector):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrValidationFailure):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
