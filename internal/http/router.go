package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/dialogforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/dialogforge-backend/internal/http/middleware"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler      *httpH.HealthHandler
	JobHandler         *httpH.JobHandler
	MessageHandler     *httpH.MessageHandler
	ChatSessionHandler *httpH.ChatSessionHandler
	RealtimeHandler    *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Jobs
		if cfg.JobHandler != nil {
			api.GET("/jobs/stats", cfg.JobHandler.GetStats)
			api.GET("/jobs/active", cfg.JobHandler.ListActive)
			api.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
			api.GET("/dialogs/:id/job", cfg.JobHandler.GetDialogJob)
			api.POST("/dialogs/:id/generate", cfg.JobHandler.GenerateDialog)
		}
		if cfg.RealtimeHandler != nil {
			api.GET("/jobs/events", cfg.RealtimeHandler.Stream)
		}

		// Messages
		if cfg.MessageHandler != nil {
			api.POST("/messages/:id/rate", cfg.MessageHandler.RateMessage)
		}

		// Manual chat
		if cfg.ChatSessionHandler != nil {
			api.POST("/chat/sessions", cfg.ChatSessionHandler.CreateSession)
			api.GET("/chat/sessions/:id", cfg.ChatSessionHandler.GetSession)
			api.POST("/chat/sessions/:id/messages", cfg.ChatSessionHandler.SendMessage)
			api.DELETE("/chat/sessions/:id", cfg.ChatSessionHandler.DeleteSession)
		}
	}

	return r
}
