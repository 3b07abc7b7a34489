package dialog_turn

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/generation"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

// Pipeline generates exactly one turn for one job.
type Pipeline struct {
	log        *logger.Logger
	jobs       *dialogjob.Service
	dialogs    dialogrepo.DialogRepo
	characters dialogrepo.CharacterRepo
	messages   dialogrepo.MessageRepo
	gen        generation.Generator
	notify     services.JobNotifier
	tracer     trace.Tracer
}

func New(
	baseLog *logger.Logger,
	jobs *dialogjob.Service,
	dialogs dialogrepo.DialogRepo,
	characters dialogrepo.CharacterRepo,
	messages dialogrepo.MessageRepo,
	gen generation.Generator,
	notify services.JobNotifier,
) *Pipeline {
	if notify == nil {
		notify = services.NopJobNotifier{}
	}
	return &Pipeline{
		log:        baseLog.With("job", "dialog_turn"),
		jobs:       jobs,
		dialogs:    dialogs,
		characters: characters,
		messages:   messages,
		gen:        gen,
		notify:     notify,
		tracer:     otel.Tracer("dialogforge/dialog_turn"),
	}
}

func (p *Pipeline) Type() string { return "dialog_turn" }

type Result string

const (
	ResultSkipped   Result = "skipped"
	ResultAdvanced  Result = "advanced"
	ResultCompleted Result = "completed"
	ResultDeferred  Result = "deferred"
	ResultFailed    Result = "failed"
	ResultReleased  Result = "released"
	ResultError     Result = "error"
)

// Outcome describes what one Process call did. Err is the cause recorded on the job;
// AnalysisErr is set when the turn was saved but the mood update was skipped.
type Outcome struct {
	Result      Result
	Turn        int
	Err         error
	AnalysisErr error
}
