package api

import (
	"net/http"
	"strconv"
	"time"

	"SportsNations/internal/model"
	"SportsNations/internal/repository"
	"SportsNations/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// StoreHandler 校验、抓取日志查询与导出
type StoreHandler struct {
	validator     *service.Validator
	exportService *service.ExportService
	imports       repository.ImportRepository
	logger        *logrus.Logger
}

// NewStoreHandler 创建 StoreHandler
func NewStoreHandler(store *repository.Store, exportService *service.ExportService, logger *logrus.Logger) *StoreHandler {
	return &StoreHandler{
		validator:     service.NewValidator(store.DB(), logger),
		exportService: exportService,
		imports:       store.Imports(),
		logger:        logger,
	}
}

// Validate 全库校验，未通过返回 409
// GET /api/validate
func (h *StoreHandler) Validate(c *gin.Context) {
	report := h.validator.Run(c.Request.Context())
	status := http.StatusOK
	if !report.Passed {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}

type importItem struct {
	ImportID    string          `json:"import_id"`
	SourceID    string          `json:"source_id,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at_utc"`
	SeasonYear  int             `json:"season_year"`
	RawPath     string          `json:"raw_path"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	FetchOrigin string          `json:"fetch_origin,omitempty"`
	RunID       string          `json:"run_id"`
	Meta        json.RawMessage `json:"meta,omitempty"`
}

func toImportItem(r *model.RawImport) importItem {
	item := importItem{
		ImportID:   r.ImportID,
		SourceID:   model.Deref(r.SourceID),
		FetchedAt:  r.FetchedAt,
		SeasonYear: r.SeasonYear,
		RawPath:    r.RawPath,
		Status:     string(r.Status),
		Error:      model.Deref(r.Error),
		RunID:      r.RunID,
	}
	if r.FetchOrigin != nil {
		item.FetchOrigin = string(*r.FetchOrigin)
	}
	if len(r.Meta) > 0 {
		item.Meta = json.RawMessage(r.Meta)
	}
	return item
}

// ListImports 抓取日志，按时间倒序
// GET /api/imports?source=fifa_ranking_history&year=2022&status=error&limit=50
func (h *StoreHandler) ListImports(c *gin.Context) {
	year, _ := strconv.Atoi(c.DefaultQuery("year", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter := repository.ImportFilter{
		SourceID:   c.Query("source"),
		SeasonYear: year,
		Status:     model.ImportStatus(c.Query("status")),
		Limit:      limit,
	}

	rows, err := h.imports.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("ListImports failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	counts, err := h.imports.CountByStatus(c.Request.Context(), filter.SourceID)
	if err != nil {
		h.logger.WithError(err).Error("CountByStatus failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]importItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toImportItem(r))
	}
	c.JSON(http.StatusOK, gin.H{"imports": items, "counts": counts})
}

type exportRequest struct {
	Format string `json:"format"`
	Force  bool   `json:"force"`
}

// Export 导出到配置的 export_dir
// POST /api/export {"format":"csv","force":false}
func (h *StoreHandler) Export(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	manifest, report, err := h.exportService.Export(c.Request.Context(), service.ExportOptions{Format: req.Format, Force: req.Force})
	if err != nil {
		h.logger.WithError(err).Error("Export failed")
		c.JSON(statusOf(err), gin.H{"error": err.Error(), "validation": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": manifest, "validation": report})
}
