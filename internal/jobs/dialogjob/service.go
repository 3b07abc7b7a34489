package dialogjob

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	jobrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/jobs"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
	"github.com/yungbote/dialogforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

var (
	ErrNotFound       = errors.New("dialog job not found")
	ErrDialogNotFound = errors.New("dialog not found")
	ErrNotRestartable = errors.New("job not restartable")
	ErrNoTurns        = errors.New("dialog has no turns configured")
)

const stuckReason = "recovered: job was in_progress past the stuck timeout"

// Service is the dialog job state machine. Every transition is a single-row update or
// runs inside one transaction.
type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	jobs     jobrepo.DialogJobRepo
	dialogs  dialogrepo.DialogRepo
	messages dialogrepo.MessageRepo
	policy   Policy
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces the time source. Tests use it to move through cool-downs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(
	db *gorm.DB,
	baseLog *logger.Logger,
	jobs jobrepo.DialogJobRepo,
	dialogs dialogrepo.DialogRepo,
	messages dialogrepo.MessageRepo,
	policy Policy,
	opts ...Option,
) *Service {
	s := &Service{
		db:       db,
		log:      baseLog.With("service", "DialogJobService"),
		jobs:     jobs,
		dialogs:  dialogs,
		messages: messages,
		policy:   policy.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy { return s.policy }

func (s *Service) Now() time.Time { return s.now().UTC() }

// InTx runs fn in dbc's transaction, or in a new one when dbc has none.
func (s *Service) InTx(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return s.db.WithContext(ctxutil.Default(dbc.Ctx)).Transaction(func(tx *gorm.DB) error {
		return fn(dbc.WithTx(tx))
	})
}

// SelectDue returns pending jobs with turns left whose last attempt is at least one
// quiescence interval old and whose deferral has expired, oldest-created first.
func (s *Service) SelectDue(dbc dbctx.Context) ([]*types.DialogJob, error) {
	now := s.Now()
	jobs, err := s.jobs.ListDue(dbc, now.Add(-s.policy.Quiescence), now, s.policy.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select due jobs: %w", err)
	}
	return jobs, nil
}

// BeginProcessing claims a pending job. It returns false without side effects when the
// job is already terminal or another process claimed it first.
func (s *Service) BeginProcessing(dbc dbctx.Context, job *types.DialogJob) (bool, error) {
	if job == nil || job.Status.Terminal() {
		return false, nil
	}
	now := s.Now()
	ok, err := s.jobs.UpdateFieldsIfStatus(dbc, job.ID, types.DialogJobPending, map[string]interface{}{
		"status":            types.DialogJobInProgress,
		"last_processed_at": now,
		"updated_at":        now,
	})
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !ok {
		return false, nil
	}
	job.Status = types.DialogJobInProgress
	job.LastProcessedAt = &now
	job.UpdatedAt = now
	return true, nil
}

// Advance records a finished turn. Reaching max_turns completes the job and its dialog
// in the same transaction; otherwise the job returns to pending.
func (s *Service) Advance(dbc dbctx.Context, job *types.DialogJob, turnNumber int, next types.CharacterType) error {
	if job == nil {
		return ErrNotFound
	}
	if turnNumber > job.MaxTurns {
		turnNumber = job.MaxTurns
	}
	if turnNumber < 0 {
		turnNumber = 0
	}
	now := s.Now()
	updates := map[string]interface{}{
		"current_turn":        turnNumber,
		"next_character_type": next,
		"last_processed_at":   now,
		"defer_count":         0,
		"not_before":          nil,
		"updated_at":          now,
	}
	if turnNumber < job.MaxTurns {
		updates["status"] = types.DialogJobPending
		if err := s.jobs.UpdateFields(dbc, job.ID, updates); err != nil {
			return fmt.Errorf("advance job %s: %w", job.ID, err)
		}
		job.Status = types.DialogJobPending
	} else {
		updates["status"] = types.DialogJobCompleted
		updates["completed_at"] = now
		updates["error_message"] = ""
		err := s.InTx(dbc, func(dbc dbctx.Context) error {
			if err := s.jobs.UpdateFields(dbc, job.ID, updates); err != nil {
				return err
			}
			return s.dialogs.UpdateFields(dbc, job.DialogID, map[string]interface{}{
				"status":     types.DialogCompleted,
				"updated_at": now,
			})
		})
		if err != nil {
			return fmt.Errorf("complete job %s: %w", job.ID, err)
		}
		job.Status = types.DialogJobCompleted
		job.CompletedAt = &now
		job.ErrorMessage = ""
	}
	job.CurrentTurn = turnNumber
	job.NextCharacterType = next
	job.DeferCount = 0
	job.NotBefore = nil
	job.LastProcessedAt = &now
	job.UpdatedAt = now
	return nil
}

// Complete finishes a job that is already at max_turns without generating.
func (s *Service) Complete(dbc dbctx.Context, job *types.DialogJob) error {
	if job == nil {
		return ErrNotFound
	}
	return s.Advance(dbc, job, job.MaxTurns, job.NextCharacterType)
}

// Fail records cause on the job. A transient cause sends it back to pending without
// counting a retry, held out of the due set for its class cool-down. Once the deferrals
// reach the class cap, or for any other cause, the job is marked failed and a retry is
// counted.
func (s *Service) Fail(dbc dbctx.Context, job *types.DialogJob, cause error) error {
	if job == nil {
		return ErrNotFound
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	now := s.Now()
	updates := map[string]interface{}{
		"error_message":     msg,
		"last_processed_at": now,
		"updated_at":        now,
	}
	transient := IsTransient(cause)
	var notBefore time.Time
	if transient {
		cooldown, maxRetries := s.backoff(msg)
		if job.RetryCount+job.DeferCount >= maxRetries {
			transient = false
		}
		notBefore = now.Add(cooldown)
	}
	if transient {
		updates["status"] = types.DialogJobPending
		updates["defer_count"] = gorm.Expr("defer_count + 1")
		updates["not_before"] = notBefore
	} else {
		updates["status"] = types.DialogJobFailed
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	ok, err := s.jobs.UpdateFieldsUnlessStatus(dbc, job.ID, []types.DialogJobStatus{types.DialogJobCompleted}, updates)
	if err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	if !ok {
		return nil
	}
	job.ErrorMessage = msg
	job.LastProcessedAt = &now
	job.UpdatedAt = now
	if transient {
		job.Status = types.DialogJobPending
		job.DeferCount++
		job.NotBefore = &notBefore
	} else {
		job.Status = types.DialogJobFailed
		job.RetryCount++
	}
	s.log.Warn("Dialog job failed",
		"job_id", job.ID,
		"dialog_id", job.DialogID,
		"transient", transient,
		"retry_count", job.RetryCount,
		"defer_count", job.DeferCount,
		"error", msg,
	)
	return nil
}

// Release hands a claimed job back to the pending pool untouched, for work interrupted
// by shutdown rather than by a failure.
func (s *Service) Release(dbc dbctx.Context, job *types.DialogJob) error {
	if job == nil {
		return ErrNotFound
	}
	ok, err := s.jobs.UpdateFieldsIfStatus(dbc, job.ID, types.DialogJobInProgress, map[string]interface{}{
		"status":     types.DialogJobPending,
		"updated_at": s.Now(),
	})
	if err != nil {
		return fmt.Errorf("release job %s: %w", job.ID, err)
	}
	if ok {
		job.Status = types.DialogJobPending
	}
	return nil
}

// Enqueue returns the dialog's active job, creating it when there is none. The turn
// counter starts at the number of messages already stored.
func (s *Service) Enqueue(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, bool, error) {
	var (
		out     *types.DialogJob
		created bool
	)
	err := s.InTx(dbc, func(dbc dbctx.Context) error {
		active, err := s.jobs.GetActiveByDialogID(dbc, dialogID)
		if err != nil {
			return err
		}
		if active != nil {
			out = active
			return nil
		}
		d, err := s.dialogs.GetByID(dbc, dialogID)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrDialogNotFound
		}
		if d.TotalTurns <= 0 {
			return ErrNoTurns
		}
		count, err := s.messages.CountByDialog(dbc, dialogID)
		if err != nil {
			return err
		}
		current := int(count)
		if current > d.TotalTurns {
			current = d.TotalTurns
		}
		next := types.CharacterAEI
		last, err := s.messages.LastByDialog(dbc, dialogID)
		if err != nil {
			return err
		}
		if last != nil && last.CharacterID == d.AEICharacterID {
			next = types.CharacterUser
		}

		status := types.DialogJobPending
		var completedAt *time.Time
		now := s.Now()
		if current >= d.TotalTurns {
			status = types.DialogJobCompleted
			completedAt = &now
		}
		job, err := s.jobs.Create(dbc, &types.DialogJob{
			DialogID:          dialogID,
			Status:            status,
			CurrentTurn:       current,
			MaxTurns:          d.TotalTurns,
			NextCharacterType: next,
			CompletedAt:       completedAt,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}
		dialogStatus := types.DialogInProgress
		if status == types.DialogJobCompleted {
			dialogStatus = types.DialogCompleted
		}
		if err := s.dialogs.UpdateFields(dbc, dialogID, map[string]interface{}{
			"status":     dialogStatus,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if d.EmotionalState == nil {
			if err := s.dialogs.UpdateFields(dbc, dialogID, map[string]interface{}{
				"emotional_state": emotion.NeutralVector().JSON(),
			}); err != nil {
				return err
			}
		}
		out = job
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("enqueue dialog %s: %w", dialogID, err)
	}
	return out, created, nil
}

// GetStats counts jobs per status. Every status is present.
func (s *Service) GetStats(dbc dbctx.Context) (map[types.DialogJobStatus]int64, error) {
	return s.jobs.CountByStatus(dbc)
}

// GetActiveJobs lists pending and in_progress jobs, most recently updated first.
func (s *Service) GetActiveJobs(dbc dbctx.Context) ([]*types.DialogJob, error) {
	return s.jobs.ListByStatuses(dbc, []types.DialogJobStatus{types.DialogJobPending, types.DialogJobInProgress})
}

// GetByDialogID returns the latest job for the dialog, or nil.
func (s *Service) GetByDialogID(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error) {
	return s.jobs.GetLatestByDialogID(dbc, dialogID)
}

func (s *Service) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DialogJob, error) {
	job, err := s.jobs.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// Restart puts a failed job back in the pending pool. The turn counter and stored
// messages are untouched. Authorization is the caller's concern.
func (s *Service) Restart(dbc dbctx.Context, jobID uuid.UUID) (*types.DialogJob, error) {
	var out *types.DialogJob
	err := s.InTx(dbc, func(dbc dbctx.Context) error {
		job, err := s.jobs.GetByID(dbc, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrNotFound
		}
		if job.Status != types.DialogJobFailed {
			return ErrNotRestartable
		}
		now := s.Now()
		ok, err := s.jobs.UpdateFieldsIfStatus(dbc, job.ID, types.DialogJobFailed, map[string]interface{}{
			"status":        types.DialogJobPending,
			"error_message": "",
			"retry_count":   0,
			"defer_count":   0,
			"not_before":    nil,
			"restart_count": gorm.Expr("restart_count + 1"),
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotRestartable
		}
		if err := s.dialogs.UpdateFields(dbc, job.DialogID, map[string]interface{}{
			"status":     types.DialogInProgress,
			"updated_at": now,
		}); err != nil {
			return err
		}
		job.Status = types.DialogJobPending
		job.ErrorMessage = ""
		job.RetryCount = 0
		job.DeferCount = 0
		job.NotBefore = nil
		job.RestartCount++
		job.UpdatedAt = now
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Dialog job restarted", "job_id", out.ID, "restart_count", out.RestartCount)
	return out, nil
}

// RecoverStuck returns in_progress jobs untouched for longer than the stuck timeout to pending.
func (s *Service) RecoverStuck(dbc dbctx.Context) (int64, error) {
	now := s.Now()
	n, err := s.jobs.ResetStale(dbc, now.Add(-s.policy.StuckTimeout), stuckReason, now)
	if err != nil {
		return 0, fmt.Errorf("recover stuck jobs: %w", err)
	}
	if n > 0 {
		s.log.Warn("Recovered stuck dialog jobs", "count", n)
	}
	return n, nil
}

// PromoteFailed moves failed jobs back to pending once their cool-down has elapsed and
// their retry count is still under the cap for their failure class.
func (s *Service) PromoteFailed(dbc dbctx.Context) (int64, error) {
	failed, err := s.jobs.ListByStatuses(dbc, []types.DialogJobStatus{types.DialogJobFailed})
	if err != nil {
		return 0, fmt.Errorf("list failed jobs: %w", err)
	}
	now := s.Now()
	var promoted int64
	for _, job := range failed {
		if !s.promotable(job, now) {
			continue
		}
		ok, err := s.jobs.UpdateFieldsIfStatus(dbc, job.ID, types.DialogJobFailed, map[string]interface{}{
			"status":     types.DialogJobPending,
			"updated_at": now,
		})
		if err != nil {
			return promoted, fmt.Errorf("promote job %s: %w", job.ID, err)
		}
		if ok {
			promoted++
		}
	}
	if promoted > 0 {
		s.log.Info("Promoted failed dialog jobs", "count", promoted)
	}
	return promoted, nil
}

// backoff returns the cool-down and retry cap for a failure with message msg.
func (s *Service) backoff(msg string) (time.Duration, int) {
	if IsRateLimitText(msg) {
		return s.policy.RateLimitCooldown, s.policy.RateLimitMaxRetries
	}
	return s.policy.FailedCooldown, s.policy.FailedMaxRetries
}

// promotable counts transient deferrals against the cap so a job that exhausted them
// stays failed.
func (s *Service) promotable(job *types.DialogJob, now time.Time) bool {
	cooldown, maxRetries := s.backoff(job.ErrorMessage)
	if job.RetryCount+job.DeferCount >= maxRetries {
		return false
	}
	since := job.UpdatedAt
	if job.LastProcessedAt != nil {
		since = *job.LastProcessedAt
	}
	return !now.Before(since.Add(cooldown))
}

// PurgeCompleted hard-deletes completed jobs older than the retention window.
func (s *Service) PurgeCompleted(dbc dbctx.Context) (int64, error) {
	n, err := s.jobs.DeleteCompletedBefore(dbc, s.Now().Add(-s.policy.Retention))
	if err != nil {
		return 0, fmt.Errorf("purge completed jobs: %w", err)
	}
	return n, nil
}
