package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	jobrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/dialogforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
)

type recordingNotifier struct {
	NopJobNotifier
	queued    []uuid.UUID
	restarted []uuid.UUID
}

func (n *recordingNotifier) JobQueued(userID uuid.UUID, job *types.DialogJob) {
	n.queued = append(n.queued, job.ID)
}

func (n *recordingNotifier) JobRestarted(userID uuid.UUID, job *types.DialogJob) {
	n.restarted = append(n.restarted, job.ID)
}

type env struct {
	db         *gorm.DB
	jobs       jobrepo.DialogJobRepo
	dialogs    dialogrepo.DialogRepo
	messages   dialogrepo.MessageRepo
	characters dialogrepo.CharacterRepo
	svc        *dialogjob.Service
	notify     *recordingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	e := &env{
		db:         db,
		jobs:       jobrepo.NewDialogJobRepo(db, log),
		dialogs:    dialogrepo.NewDialogRepo(db, log),
		messages:   dialogrepo.NewMessageRepo(db, log),
		characters: dialogrepo.NewCharacterRepo(db, log),
		notify:     &recordingNotifier{},
	}
	e.svc = dialogjob.NewService(db, log, e.jobs, e.dialogs, e.messages, dialogjob.DefaultPolicy())
	return e
}

func asUser(userID uuid.UUID) dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})}
}
