package api

import (
	"net/http"

	"SportsNations/internal/adapter"
	"SportsNations/internal/repository"
	"SportsNations/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps 路由依赖
type Deps struct {
	Store     *repository.Store
	Registry  *adapter.Registry
	Ingest    *service.IngestService
	Export    *service.ExportService
	Scheduler *service.Scheduler // 可为空
	Logger    *logrus.Logger
	Mode      string // gin 运行模式
	Pprof     bool
}

// NewRouter 注册全部路由
func NewRouter(d Deps) *gin.Engine {
	if d.Mode != "" {
		gin.SetMode(d.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	// 注册ppof 方便调试和监测性能问题
	if d.Pprof {
		pprof.Register(r)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "driver": d.Store.Driver()})
	})

	ingestHandler := NewIngestHandler(d.Ingest, d.Registry, d.Logger)
	storeHandler := NewStoreHandler(d.Store, d.Export, d.Logger)

	g := r.Group("/api")
	g.GET("/connectors", ingestHandler.ListConnectors)
	g.POST("/ingest/:connector", ingestHandler.Ingest)
	g.GET("/validate", storeHandler.Validate)
	g.GET("/imports", storeHandler.ListImports)
	g.POST("/export", storeHandler.Export)
	g.GET("/schedule/last", func(c *gin.Context) {
		if d.Scheduler == nil || d.Scheduler.Last() == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no scheduled run yet"})
			return
		}
		c.JSON(http.StatusOK, d.Scheduler.Last().Summary())
	})
	return r
}

// requestLogger 用 logrus 记录每个请求
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("http request")
	}
}
