package dialog_turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/generation"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
)

var (
	ErrDialogMissing    = errors.New("dialog not found")
	ErrCharacterMissing = errors.New("character not found")
	ErrBadSpeakerType   = errors.New("invalid next_character_type")
)

func (p *Pipeline) Process(ctx context.Context, job *types.DialogJob) (out Outcome) {
	if job == nil {
		return Outcome{Result: ResultSkipped}
	}
	ctx, span := p.tracer.Start(ctx, "dialog_turn.process", trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("dialog.id", job.DialogID.String()),
		attribute.Int("job.current_turn", job.CurrentTurn),
	))
	defer func() {
		span.SetAttributes(attribute.String("job.result", string(out.Result)))
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
		span.End()
	}()

	dbc := dbctx.Context{Ctx: ctx}
	claimed, err := p.jobs.BeginProcessing(dbc, job)
	if err != nil {
		return Outcome{Result: ResultError, Err: err}
	}
	if !claimed {
		return Outcome{Result: ResultSkipped}
	}

	d, err := p.dialogs.GetByID(dbc, job.DialogID)
	if err != nil {
		return p.fail(ctx, nil, job, fmt.Errorf("load dialog: %w", err))
	}
	if d == nil {
		return p.fail(ctx, nil, job, fmt.Errorf("%w: %s", ErrDialogMissing, job.DialogID))
	}

	if job.CurrentTurn >= job.MaxTurns {
		if err := p.jobs.Complete(dbc, job); err != nil {
			return p.fail(ctx, d, job, err)
		}
		p.notify.JobCompleted(d.OwnerUserID, job)
		return Outcome{Result: ResultCompleted, Turn: job.CurrentTurn}
	}

	speakerType := job.NextCharacterType
	if !speakerType.Valid() {
		return p.fail(ctx, d, job, fmt.Errorf("%w: %q", ErrBadSpeakerType, speakerType))
	}
	speaker, err := p.character(dbc, d.CharacterIDFor(speakerType))
	if err != nil {
		return p.fail(ctx, d, job, err)
	}
	partner, err := p.character(dbc, d.CharacterIDFor(speakerType.Opposite()))
	if err != nil {
		return p.fail(ctx, d, job, err)
	}

	history, err := p.messages.ListByDialog(dbc, d.ID)
	if err != nil {
		return p.fail(ctx, d, job, fmt.Errorf("load history: %w", err))
	}
	texts := make([]string, 0, len(history)+1)
	for _, m := range history {
		texts = append(texts, m.Content)
	}

	var mood *emotion.Vector
	if speakerType == types.CharacterAEI {
		state, err := emotion.FromJSON(d.EmotionalState)
		if err != nil {
			p.log.Warn("Unreadable emotional state, using neutral", "dialog_id", d.ID, "error", err)
		}
		mood = &state
	}

	res, err := p.gen.GenerateTurn(ctx, generation.TurnRequest{
		CharacterPrompt: speaker.SystemPrompt,
		Topic:           d.Topic,
		History:         texts,
		SpeakingRole:    string(speakerType),
		SpeakerName:     speaker.Name,
		PartnerName:     partner.Name,
		PartnerRole:     string(partner.Type),
		Emotion:         mood,
	})
	if err != nil {
		if ctx.Err() != nil {
			return p.release(ctx, job, err)
		}
		return p.fail(ctx, d, job, fmt.Errorf("generate turn: %w", err))
	}

	turn := job.CurrentTurn + 1
	msg := &types.Message{
		DialogID:     d.ID,
		CharacterID:  speaker.ID,
		TurnNumber:   turn,
		Content:      res.Text,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
	}
	if len(res.RequestPayload) > 0 {
		msg.RequestPayload = datatypes.JSON(res.RequestPayload)
	}
	if mood != nil {
		msg.EmotionSnapshot = mood.JSON()
	}

	err = p.jobs.InTx(dbc, func(tx dbctx.Context) error {
		if _, err := p.messages.Append(tx, msg); err != nil {
			return err
		}
		return p.jobs.Advance(tx, job, turn, speakerType.Opposite())
	})
	if err != nil {
		return p.fail(ctx, d, job, fmt.Errorf("persist turn: %w", err))
	}

	out = Outcome{Result: ResultAdvanced, Turn: job.CurrentTurn}
	if job.Status == types.DialogJobCompleted {
		out.Result = ResultCompleted
	}

	out.AnalysisErr = p.afterTurn(ctx, d, speaker, job, msg, append(texts, res.Text), mood)
	return out
}

// afterTurn runs the post-commit work for a saved turn. The turn stands whatever happens
// here, so a panic is recovered and reported like an analysis failure.
func (p *Pipeline) afterTurn(ctx context.Context, d *types.Dialog, speaker *types.Character, job *types.DialogJob, msg *types.Message, history []string, mood *emotion.Vector) (analysisErr error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Panic after dialog turn was saved", "job_id", job.ID, "dialog_id", d.ID, "panic", r)
			analysisErr = fmt.Errorf("after turn %d: panic: %v", msg.TurnNumber, r)
		}
	}()
	if mood != nil {
		analysisErr = p.reflect(ctx, d, speaker, history, *mood)
	}
	p.notify.JobTurn(d.OwnerUserID, job, msg)
	if job.Status == types.DialogJobCompleted {
		p.notify.JobCompleted(d.OwnerUserID, job)
	}
	p.log.Info("Dialog turn saved",
		"job_id", job.ID,
		"dialog_id", d.ID,
		"turn", msg.TurnNumber,
		"speaker", speaker.Type,
		"status", job.Status,
	)
	return analysisErr
}

// reflect folds the speaker's reaction to the saved turn into the dialog's running mood.
// Failures are logged and returned but never touch the job.
func (p *Pipeline) reflect(ctx context.Context, d *types.Dialog, speaker *types.Character, history []string, prev emotion.Vector) error {
	observed, err := p.gen.AnalyzeEmotion(ctx, generation.EmotionRequest{
		History:       history,
		CharacterName: speaker.Name,
		Topic:         d.Topic,
	})
	if err != nil {
		p.log.Warn("Emotion analysis failed; keeping previous state", "dialog_id", d.ID, "error", err)
		return err
	}
	next := emotion.Blend(prev, observed)
	if err := p.dialogs.UpdateFields(dbctx.Context{Ctx: ctx}, d.ID, map[string]interface{}{
		"emotional_state": next.JSON(),
	}); err != nil {
		p.log.Warn("Failed to persist emotional state", "dialog_id", d.ID, "error", err)
		return err
	}
	return nil
}

func (p *Pipeline) character(dbc dbctx.Context, id uuid.UUID) (*types.Character, error) {
	c, err := p.characters.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load character: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCharacterMissing, id)
	}
	return c, nil
}

func (p *Pipeline) fail(ctx context.Context, d *types.Dialog, job *types.DialogJob, cause error) Outcome {
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if err := p.jobs.Fail(dbc, job, cause); err != nil {
		p.log.Error("Failed to record job failure", "job_id", job.ID, "cause", cause, "error", err)
		return Outcome{Result: ResultError, Err: cause}
	}
	if job.Status == types.DialogJobPending {
		return Outcome{Result: ResultDeferred, Err: cause}
	}
	if d != nil {
		p.notify.JobFailed(d.OwnerUserID, job, cause.Error())
	}
	return Outcome{Result: ResultFailed, Err: cause}
}

func (p *Pipeline) release(ctx context.Context, job *types.DialogJob, cause error) Outcome {
	if err := p.jobs.Release(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, job); err != nil {
		p.log.Warn("Failed to release interrupted job", "job_id", job.ID, "error", err)
	}
	return Outcome{Result: ResultReleased, Err: cause}
}

// Fail records a failure raised outside Process, such as a recovered panic. Only a job
// still held in_progress is failed; any other status means its turn was already saved or
// the job was handed back, and the stored row is left as it is.
func (p *Pipeline) Fail(ctx context.Context, job *types.DialogJob, cause error) Outcome {
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	current, err := p.jobs.GetByID(dbc, job.ID)
	if err != nil {
		p.log.Error("Failed to reload job after failure", "job_id", job.ID, "cause", cause, "error", err)
		return Outcome{Result: ResultError, Err: cause}
	}
	switch current.Status {
	case types.DialogJobInProgress:
	case types.DialogJobCompleted:
		p.log.Warn("Failure raised after job completed", "job_id", job.ID, "cause", cause)
		return Outcome{Result: ResultCompleted, Turn: current.CurrentTurn, Err: cause}
	default:
		p.log.Warn("Failure raised outside a held job", "job_id", job.ID, "status", current.Status, "cause", cause)
		return Outcome{Result: ResultError, Turn: current.CurrentTurn, Err: cause}
	}
	d, _ := p.dialogs.GetByID(dbc, current.DialogID)
	return p.fail(ctx, d, current, cause)
}
