package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/dialogforge-backend/internal/data/sessions"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/jobs/pipeline/dialog_turn"
	"github.com/yungbote/dialogforge-backend/internal/jobs/worker"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/generation"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

const cycleLockKey = "dialogforge:cycle_lock"

type Services struct {
	DialogJobs   *dialogjob.Service
	Generator    generation.Generator
	Notifier     services.JobNotifier
	Jobs         services.JobService
	Messages     services.MessageService
	ChatSessions services.ChatSessionService
	Pipeline     *dialog_turn.Pipeline
	Worker       *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, r Repos) Services {
	log.Info("Wiring services...")

	dialogJobs := dialogjob.NewService(db, log, r.DialogJob, r.Dialog, r.Message, cfg.Policy)
	gen := generation.NewClient(log, clients.LLM, generation.Config{
		MaxTokens:        cfg.Anthropic.MaxTokens,
		EmotionMaxTokens: cfg.EmotionMaxTokens,
	})
	notify := services.NewJobNotifier(log, clients.Bus)

	var store sessions.Store
	if clients.Redis != nil {
		store = sessions.NewRedisStore(log, clients.Redis, "", cfg.ChatSessionTTL)
	} else {
		store = sessions.NewMemoryStore(cfg.ChatSessionTTL)
	}

	pipe := dialog_turn.New(log, dialogJobs, r.Dialog, r.Character, r.Message, gen, notify)

	lock := worker.NoopLock()
	if clients.Redis != nil {
		lock = worker.NewRedisLock(clients.Redis, cycleLockKey, cfg.CycleLockTTL)
	}
	w := worker.NewWorker(log, dialogJobs, pipe, lock, worker.Config{
		Interval:    cfg.CycleInterval,
		Concurrency: cfg.CycleConcurrency,
	})

	return Services{
		DialogJobs:   dialogJobs,
		Generator:    gen,
		Notifier:     notify,
		Jobs:         services.NewJobService(log, dialogJobs, r.Dialog, notify),
		Messages:     services.NewMessageService(log, r.Dialog, r.Message),
		ChatSessions: services.NewChatSessionService(log, store, r.Character, gen),
		Pipeline:     pipe,
		Worker:       w,
	}
}
