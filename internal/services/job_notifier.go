package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/realtime"
	"github.com/yungbote/dialogforge-backend/internal/realtime/bus"
)

type JobNotifier interface {
	JobQueued(userID uuid.UUID, job *types.DialogJob)
	JobTurn(userID uuid.UUID, job *types.DialogJob, msg *types.Message)
	JobCompleted(userID uuid.UUID, job *types.DialogJob)
	JobFailed(userID uuid.UUID, job *types.DialogJob, errorMessage string)
	JobRestarted(userID uuid.UUID, job *types.DialogJob)
}

type jobNotifier struct {
	log *logger.Logger
	bus bus.Bus
}

func NewJobNotifier(baseLog *logger.Logger, b bus.Bus) JobNotifier {
	return &jobNotifier{log: baseLog.With("service", "JobNotifier"), bus: b}
}

func (n *jobNotifier) publish(userID uuid.UUID, event realtime.EventType, data map[string]any) {
	if n == nil || n.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.bus.Publish(ctx, realtime.Event{
		Channel: userID.String(),
		Event:   event,
		Data:    data,
	}); err != nil {
		n.log.Warn("Failed to publish job event", "event", event, "error", err)
	}
}

func (n *jobNotifier) JobQueued(userID uuid.UUID, job *types.DialogJob) {
	n.publish(userID, realtime.EventJobQueued, map[string]any{"job_id": job.ID, "job": job})
}

func (n *jobNotifier) JobTurn(userID uuid.UUID, job *types.DialogJob, msg *types.Message) {
	data := map[string]any{
		"job_id":       job.ID,
		"dialog_id":    job.DialogID,
		"current_turn": job.CurrentTurn,
		"max_turns":    job.MaxTurns,
	}
	if msg != nil {
		data["message_id"] = msg.ID
		data["turn_number"] = msg.TurnNumber
	}
	n.publish(userID, realtime.EventJobTurn, data)
}

func (n *jobNotifier) JobCompleted(userID uuid.UUID, job *types.DialogJob) {
	n.publish(userID, realtime.EventJobCompleted, map[string]any{"job_id": job.ID, "dialog_id": job.DialogID, "job": job})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.DialogJob, errorMessage string) {
	n.publish(userID, realtime.EventJobFailed, map[string]any{
		"job_id":      job.ID,
		"dialog_id":   job.DialogID,
		"error":       errorMessage,
		"retry_count": job.RetryCount,
	})
}

func (n *jobNotifier) JobRestarted(userID uuid.UUID, job *types.DialogJob) {
	n.publish(userID, realtime.EventJobRestarted, map[string]any{"job_id": job.ID, "job": job})
}

// NopJobNotifier drops every event.
type NopJobNotifier struct{}

func (NopJobNotifier) JobQueued(uuid.UUID, *types.DialogJob) {}
func (NopJobNotifier) JobTurn(uuid.UUID, *types.DialogJob, *types.Message) {}
func (NopJobNotifier) JobCompleted(uuid.UUID, *types.DialogJob) {}
func (NopJobNotifier) JobFailed(uuid.UUID, *types.DialogJob, string) {}
func (NopJobNotifier) JobRestarted(uuid.UUID, *types.DialogJob) {}
