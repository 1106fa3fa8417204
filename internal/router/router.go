package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"invoicelens/internal/handler"
	"invoicelens/internal/middleware"
	"invoicelens/internal/service"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Invoice *handler.InvoiceHandler
	Metrics *handler.MetricsHandler
	Export  *handler.ExportHandler
	Health  *handler.HealthHandler
}

// Options carries the cross-cutting middleware settings.
type Options struct {
	AllowedOrigins []string
	// ExtractLimiter throttles the extract route per API key. Nil disables it.
	ExtractLimiter *middleware.RateLimiter
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(apiKeys service.APIKeyService, h Handlers, opts Options) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	// API documentation
	r.GET("/api/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Everything under /api/v1 requires an API key
	v1 := r.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(apiKeys))

	// Invoice routes
	invoices := v1.Group("/invoices")
	extract := []gin.HandlerFunc{h.Invoice.Extract}
	if opts.ExtractLimiter != nil {
		extract = append([]gin.HandlerFunc{middleware.RateLimit(opts.ExtractLimiter)}, extract...)
	}
	invoices.POST("/extract", extract...)
	invoices.GET("", h.Invoice.List)
	invoices.GET("/:id", h.Invoice.GetByID)
	invoices.POST("/:id/reprocess", h.Invoice.Reprocess)
	invoices.DELETE("/:id", h.Invoice.Delete)

	v1.POST("/normalize", h.Invoice.Normalize)

	// Dashboard metrics
	metrics := v1.Group("/metrics")
	metrics.GET("/kpis", h.Metrics.KPIs)
	metrics.GET("/top_vendors", h.Metrics.TopVendors)
	metrics.GET("/time_series", h.Metrics.TimeSeries)
	metrics.GET("/vendors", h.Metrics.VendorPerformance)
	metrics.GET("/extraction_accuracy", h.Metrics.ExtractionAccuracy)
	metrics.GET("/anomalies", h.Metrics.AnomalySummary)
	metrics.GET("/monthly_trends", h.Metrics.MonthlyTrends)
	metrics.GET("/dashboard", h.Metrics.Dashboard)

	// Exports
	exports := v1.Group("/export")
	exports.GET("/csv", h.Export.CSV)
	exports.GET("/xlsx", h.Export.XLSX)

	return r
}
