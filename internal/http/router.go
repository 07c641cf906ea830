package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/comandas/backend/internal/config"
	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/http/handlers"
	"github.com/comandas/backend/internal/http/middleware"
	"github.com/comandas/backend/internal/imap"
	"github.com/comandas/backend/internal/service"

	_ "github.com/comandas/backend/docs"
)

type Services struct {
	Shifts    *service.ShiftService
	Routes    *service.RouteService
	Printing  *service.PrintService
	Processor *service.Processor
	Mailbox   *imap.Worker
}

func Router(cfg config.Config, store *db.Store, bus *events.Bus, svc Services, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id", "X-Actor", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Bus:       bus,
		Shifts:    svc.Shifts,
		Routes:    svc.Routes,
		Printing:  svc.Printing,
		Processor: svc.Processor,
		Mailbox:   svc.Mailbox,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/shifts/active", h.ActiveShift)
		api.GET("/shifts/:id/qualifications", h.GetQualifications)
		api.GET("/routes", h.ListRoutes)
		api.GET("/routes/:id", h.GetRoute)
		api.GET("/lotes", h.ListLotes)
		api.GET("/lotes/:id", h.GetLote)
		api.GET("/print/jobs", h.ListPrintJobs)
		api.GET("/print/jobs/:id", h.GetPrintJob)
		api.GET("/catalogs/:kind", h.ListCatalogs)
		api.GET("/events", h.ListEvents)
		api.GET("/events/stream", h.StreamEvents)
		api.GET("/imap/status", h.ImapStatus)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/shifts/open", h.OpenShift)
		admin.POST("/shifts/:id/close", h.CloseShift)
		admin.PUT("/shifts/:id/qualifications", h.PutQualifications)
		admin.PUT("/shifts/:id/collectors/:route", h.PutCollector)
		admin.POST("/catalogs/:kind/import", h.ImportCatalog)
		admin.POST("/catalogs/:kind/activate", h.ActivateCatalog)
		admin.POST("/lotes/:id/reprocess", h.ReprocessLote)
		admin.POST("/routes/:id/mark-collected", h.MarkRouteCollected)
		admin.POST("/routes/:id/reactivate", h.ReactivateRoute)
		admin.POST("/print/routes/:route/operator/enter", h.EnterRoute)
		admin.POST("/print/routes/:route/operator/print-initial", h.PrintOperatorInitial)
		admin.POST("/print/routes/:route/operator/print-new", h.PrintOperatorNew)
		admin.POST("/print/routes/:route/collector/print-new", h.PrintCollectorNew)
		admin.POST("/print/jobs/:id/reprint", h.ReprintJob)
		admin.POST("/imap/force-poll", h.ImapForcePoll)
	}

	if cfg.PDFDir != "" {
		r.Static("/pdfs", cfg.PDFDir)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
