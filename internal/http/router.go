package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/netgenealogy-backend/internal/http/handlers"
	httpMW "github.com/yungbote/netgenealogy-backend/internal/http/middleware"
	"github.com/yungbote/netgenealogy-backend/internal/observability"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	ArtifactHandler  *httpH.ArtifactHandler
	NetworkHandler   *httpH.NetworkHandler
	GenealogyHandler *httpH.GenealogyHandler
	JobHandler       *httpH.JobHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "netgenealogy"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Artifacts
		if cfg.ArtifactHandler != nil {
			api.POST("/artifacts", cfg.ArtifactHandler.Ingest)
			api.POST("/artifacts/resolve", cfg.ArtifactHandler.ResolvePending)
			api.GET("/artifacts/:id", cfg.ArtifactHandler.GetArtifact)
		}

		// Networks
		if cfg.NetworkHandler != nil {
			api.GET("/networks", cfg.NetworkHandler.ListNetworks)
			api.GET("/networks/:id/genealogy", cfg.NetworkHandler.GetGenealogy)
		}

		// Genealogy
		if cfg.GenealogyHandler != nil {
			api.POST("/genealogies/:network_id/load", cfg.GenealogyHandler.Load)
			api.POST("/genealogies/:network_id/plan", cfg.GenealogyHandler.Plan)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			api.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
		}
	}

	return r
}
