package app

import (
	"context"

	"gorm.io/gorm"

	dfhttp "github.com/yungbote/dialogforge-backend/internal/http"
	httpH "github.com/yungbote/dialogforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/dialogforge-backend/internal/http/middleware"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Job         *httpH.JobHandler
	Message     *httpH.MessageHandler
	ChatSession *httpH.ChatSessionHandler
	Realtime    *httpH.RealtimeHandler
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey)}
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, svcs Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(dbPinger(db)),
		Job:         httpH.NewJobHandler(svcs.Jobs),
		Message:     httpH.NewMessageHandler(svcs.Messages),
		ChatSession: httpH.NewChatSessionHandler(svcs.ChatSessions),
		Realtime:    httpH.NewRealtimeHandler(log, hub, cfg.CORSOrigins),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers, mw Middleware) *dfhttp.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return dfhttp.NewServer(dfhttp.RouterConfig{
		Log:                log,
		ServiceName:        serviceName,
		CORSOrigins:        cfg.CORSOrigins,
		AuthMiddleware:     mw.Auth,
		HealthHandler:      h.Health,
		JobHandler:         h.Job,
		MessageHandler:     h.Message,
		ChatSessionHandler: h.ChatSession,
		RealtimeHandler:    h.Realtime,
	})
}

func dbPinger(db *gorm.DB) httpH.Pinger {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
