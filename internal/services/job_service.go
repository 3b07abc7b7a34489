package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

// JobService is the request-facing view of the dialog job state machine. Actions on a
// single dialog or job are limited to the dialog's owner.
type JobService interface {
	GetStats(dbc dbctx.Context) (map[types.DialogJobStatus]int64, error)
	GetActiveJobs(dbc dbctx.Context) ([]*types.DialogJob, error)
	GetByDialogIDForRequestUser(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error)
	EnqueueForRequestUser(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, bool, error)
	RestartForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.DialogJob, error)
}

type jobService struct {
	log     *logger.Logger
	jobs    *dialogjob.Service
	dialogs dialogrepo.DialogRepo
	notify  JobNotifier
}

func NewJobService(baseLog *logger.Logger, jobs *dialogjob.Service, dialogs dialogrepo.DialogRepo, notify JobNotifier) JobService {
	if notify == nil {
		notify = NopJobNotifier{}
	}
	return &jobService{
		log:     baseLog.With("service", "JobService"),
		jobs:    jobs,
		dialogs: dialogs,
		notify:  notify,
	}
}

func (s *jobService) GetStats(dbc dbctx.Context) (map[types.DialogJobStatus]int64, error) {
	if _, err := requestUser(dbc); err != nil {
		return nil, err
	}
	return s.jobs.GetStats(dbc)
}

func (s *jobService) GetActiveJobs(dbc dbctx.Context) ([]*types.DialogJob, error) {
	if _, err := requestUser(dbc); err != nil {
		return nil, err
	}
	return s.jobs.GetActiveJobs(dbc)
}

// GetByDialogIDForRequestUser returns the dialog's latest job, or nil when it has never
// been queued.
func (s *jobService) GetByDialogIDForRequestUser(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error) {
	if _, err := s.ownedDialog(dbc, dialogID); err != nil {
		return nil, err
	}
	return s.jobs.GetByDialogID(dbc, dialogID)
}

func (s *jobService) EnqueueForRequestUser(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, bool, error) {
	d, err := s.ownedDialog(dbc, dialogID)
	if err != nil {
		return nil, false, err
	}
	job, created, err := s.jobs.Enqueue(dbc, dialogID)
	if err != nil {
		switch {
		case errors.Is(err, dialogjob.ErrDialogNotFound):
			return nil, false, ErrNotFound
		case errors.Is(err, dialogjob.ErrNoTurns):
			return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, false, err
	}
	if created {
		s.notify.JobQueued(d.OwnerUserID, job)
	}
	return job, created, nil
}

func (s *jobService) RestartForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.DialogJob, error) {
	if _, err := requestUser(dbc); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		if errors.Is(err, dialogjob.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d, err := s.ownedDialog(dbc, job.DialogID)
	if err != nil {
		return nil, err
	}
	restarted, err := s.jobs.Restart(dbc, job.ID)
	if err != nil {
		if errors.Is(err, dialogjob.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.notify.JobRestarted(d.OwnerUserID, restarted)
	return restarted, nil
}

func (s *jobService) ownedDialog(dbc dbctx.Context, dialogID uuid.UUID) (*types.Dialog, error) {
	userID, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	if dialogID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing dialog id", ErrInvalidInput)
	}
	d, err := s.dialogs.GetByID(dbc, dialogID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	if d.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	return d, nil
}

func requestUser(dbc dbctx.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return rd.UserID, nil
}
