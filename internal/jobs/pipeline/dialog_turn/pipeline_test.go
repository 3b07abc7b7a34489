package dialog_turn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dialogrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/dialog"
	jobrepo "github.com/yungbote/dialogforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/dialogforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/generation"
	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
)

type fakeGenerator struct {
	turns       []generation.TurnRequest
	analyses    int
	turnErr     error
	analysisErr error
	observed    emotion.Vector
}

func (g *fakeGenerator) GenerateTurn(ctx context.Context, req generation.TurnRequest) (*generation.TurnResult, error) {
	g.turns = append(g.turns, req)
	if g.turnErr != nil {
		return nil, g.turnErr
	}
	return &generation.TurnResult{
		Text:           fmt.Sprintf("%s says line %d", req.SpeakerName, len(req.History)+1),
		RequestPayload: []byte(`{"model":"fake"}`),
		Usage:          anthropic.Usage{InputTokens: 5, OutputTokens: 7},
	}, nil
}

func (g *fakeGenerator) AnalyzeEmotion(ctx context.Context, req generation.EmotionRequest) (emotion.Vector, error) {
	g.analyses++
	if g.analysisErr != nil {
		return emotion.NeutralVector(), g.analysisErr
	}
	return g.observed, nil
}

type fixture struct {
	db       *gorm.DB
	dbc      dbctx.Context
	svc      *dialogjob.Service
	jobs     jobrepo.DialogJobRepo
	dialogs  dialogrepo.DialogRepo
	messages dialogrepo.MessageRepo
	gen      *fakeGenerator
	pipe     *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobs := jobrepo.NewDialogJobRepo(db, log)
	dialogs := dialogrepo.NewDialogRepo(db, log)
	messages := dialogrepo.NewMessageRepo(db, log)
	svc := dialogjob.NewService(db, log, jobs, dialogs, messages, dialogjob.DefaultPolicy())
	observed := emotion.NeutralVector()
	observed[0] = 0.9
	gen := &fakeGenerator{observed: observed}
	pipe := New(log, svc, dialogs, dialogrepo.NewCharacterRepo(db, log), messages, gen, nil)
	return &fixture{
		db:       db,
		dbc:      dbctx.Context{Ctx: context.Background()},
		svc:      svc,
		jobs:     jobs,
		dialogs:  dialogs,
		messages: messages,
		gen:      gen,
		pipe:     pipe,
	}
}

func (f *fixture) job(t *testing.T, id uuid.UUID) *types.DialogJob {
	t.Helper()
	job, err := f.jobs.GetByID(f.dbc, id)
	if err != nil || job == nil {
		t.Fatalf("load job: %v %v", job, err)
	}
	return job
}

func (f *fixture) dialog(t *testing.T, id uuid.UUID) *types.Dialog {
	t.Helper()
	d, err := f.dialogs.GetByID(f.dbc, id)
	if err != nil || d == nil {
		t.Fatalf("load dialog: %v %v", d, err)
	}
	return d
}

func TestProcessFourTurnScenario(t *testing.T) {
	f := newFixture(t)
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4, NextCharacterType: types.CharacterAEI})

	wantResults := []Result{ResultAdvanced, ResultAdvanced, ResultAdvanced, ResultCompleted}
	for i, want := range wantResults {
		current := f.job(t, job.ID)
		out := f.pipe.Process(context.Background(), current)
		if out.Result != want || out.Err != nil {
			t.Fatalf("turn %d: want %s got %+v", i+1, want, out)
		}
		if out.Turn != i+1 {
			t.Fatalf("turn %d: outcome turn=%d", i+1, out.Turn)
		}
		after := f.job(t, job.ID)
		if i < 3 && after.Status != types.DialogJobPending {
			t.Fatalf("turn %d: job status %s", i+1, after.Status)
		}
		if after.CurrentTurn > after.MaxTurns {
			t.Fatalf("turn %d: current_turn %d exceeds max %d", i+1, after.CurrentTurn, after.MaxTurns)
		}
	}

	final := f.job(t, job.ID)
	if final.Status != types.DialogJobCompleted || final.CurrentTurn != 4 || final.CompletedAt == nil {
		t.Fatalf("final job: %+v", final)
	}
	if got := f.dialog(t, d.ID); got.Status != types.DialogCompleted {
		t.Fatalf("dialog status: %s", got.Status)
	}

	msgs, err := f.messages.ListByDialog(f.dbc, d.ID)
	if err != nil || len(msgs) != 4 {
		t.Fatalf("messages: n=%d err=%v", len(msgs), err)
	}
	for i, m := range msgs {
		wantSpeaker := d.AEICharacterID
		if i%2 == 1 {
			wantSpeaker = d.UserCharacterID
		}
		if m.CharacterID != wantSpeaker || m.TurnNumber != i+1 || m.Seq != int64(i+1) {
			t.Fatalf("message %d: speaker=%s turn=%d seq=%d", i, m.CharacterID, m.TurnNumber, m.Seq)
		}
		if (wantSpeaker == d.AEICharacterID) != (len(m.EmotionSnapshot) > 0) {
			t.Fatalf("message %d: snapshot presence wrong (%s)", i, m.EmotionSnapshot)
		}
		if m.InputTokens != 5 || m.OutputTokens != 7 || len(m.RequestPayload) == 0 {
			t.Fatalf("message %d: usage/payload not stored: %+v", i, m)
		}
	}

	first, _ := emotion.FromJSON(msgs[0].EmotionSnapshot)
	if first != emotion.NeutralVector() {
		t.Fatalf("first AEI snapshot must be the pre-blend neutral state, got %v", first)
	}
	third, _ := emotion.FromJSON(msgs[2].EmotionSnapshot)
	if joy, _ := third.Get("joy"); joy != 0.6 { // 0.7*0.5 + 0.3*0.9 = 0.62
		t.Fatalf("third AEI snapshot should carry one blend, joy=%v", joy)
	}
	finalState, _ := emotion.FromJSON(f.dialog(t, d.ID).EmotionalState)
	if joy, _ := finalState.Get("joy"); joy != 0.7 { // 0.7*0.6 + 0.3*0.9 = 0.69
		t.Fatalf("dialog state after two blends: joy=%v", joy)
	}
	if f.gen.analyses != 2 {
		t.Fatalf("analysis must run only for AEI turns, ran %d times", f.gen.analyses)
	}

	for i, req := range f.gen.turns {
		if len(req.History) != i {
			t.Fatalf("request %d: history len %d", i, len(req.History))
		}
		if (i%2 == 0) != (req.Emotion != nil) {
			t.Fatalf("request %d: mood must be sent only for AEI", i)
		}
	}
}

func TestProcessAnalysisFailureKeepsTurn(t *testing.T) {
	f := newFixture(t)
	f.gen.analysisErr = errors.New("analysis exploded")
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4, NextCharacterType: types.CharacterAEI})

	out := f.pipe.Process(context.Background(), job)
	if out.Result != ResultAdvanced || out.Err != nil || out.AnalysisErr == nil {
		t.Fatalf("outcome: %+v", out)
	}
	after := f.job(t, job.ID)
	if after.Status != types.DialogJobPending || after.CurrentTurn != 1 || after.RetryCount != 0 {
		t.Fatalf("job after analysis failure: %+v", after)
	}
	state, _ := emotion.FromJSON(f.dialog(t, d.ID).EmotionalState)
	if state != emotion.NeutralVector() {
		t.Fatalf("emotional state must be untouched, got %v", state)
	}
}

type panicOnAnalyze struct{ *fakeGenerator }

func (g panicOnAnalyze) AnalyzeEmotion(ctx context.Context, req generation.EmotionRequest) (emotion.Vector, error) {
	panic("analysis blew up")
}

func TestProcessPanicAfterSaveKeepsTurn(t *testing.T) {
	f := newFixture(t)
	f.pipe.gen = panicOnAnalyze{f.gen}
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4})

	out := f.pipe.Process(context.Background(), job)
	if out.Result != ResultAdvanced || out.Err != nil || out.AnalysisErr == nil {
		t.Fatalf("outcome: %+v", out)
	}
	after := f.job(t, job.ID)
	if after.Status != types.DialogJobPending || after.CurrentTurn != 1 || after.RetryCount != 0 {
		t.Fatalf("job after late panic: %+v", after)
	}
	if n, _ := f.messages.CountByDialog(f.dbc, d.ID); n != 1 {
		t.Fatalf("saved turn must stay, got %d messages", n)
	}
}

func TestFailLeavesUnheldJobAlone(t *testing.T) {
	f := newFixture(t)
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	pending := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, CurrentTurn: 1, MaxTurns: 4})

	out := f.pipe.Fail(context.Background(), pending, errors.New("late"))
	if out.Result != ResultError {
		t.Fatalf("outcome: %+v", out)
	}
	if got := f.job(t, pending.ID); got.Status != types.DialogJobPending || got.RetryCount != 0 || got.ErrorMessage != "" {
		t.Fatalf("pending job was modified: %+v", got)
	}

	d2 := testutil.SeedDialog(t, f.db, uuid.New(), 2)
	done := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d2.ID, Status: types.DialogJobCompleted, CurrentTurn: 2, MaxTurns: 2})
	if out := f.pipe.Fail(context.Background(), done, errors.New("late")); out.Result != ResultCompleted {
		t.Fatalf("completed outcome: %+v", out)
	}
	if got := f.job(t, done.ID); got.Status != types.DialogJobCompleted {
		t.Fatalf("completed job was modified: %+v", got)
	}
}

func TestProcessRateLimitDefersJob(t *testing.T) {
	f := newFixture(t)
	f.gen.turnErr = &anthropic.Error{Kind: anthropic.KindRateLimited, StatusCode: 429, Message: "rate limit"}
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4})

	out := f.pipe.Process(context.Background(), job)
	if out.Result != ResultDeferred {
		t.Fatalf("outcome: %+v", out)
	}
	after := f.job(t, job.ID)
	if after.Status != types.DialogJobPending || after.RetryCount != 0 || after.CurrentTurn != 0 || after.ErrorMessage == "" {
		t.Fatalf("deferred job: %+v", after)
	}
	if after.DeferCount != 1 || after.NotBefore == nil {
		t.Fatalf("deferral not recorded: defer=%d not_before=%v", after.DeferCount, after.NotBefore)
	}
	if n, _ := f.messages.CountByDialog(f.dbc, d.ID); n != 0 {
		t.Fatalf("no message may be stored, got %d", n)
	}
}

func TestProcessMissingCharacterFailsJob(t *testing.T) {
	f := newFixture(t)
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	if err := f.db.Delete(&types.Character{}, "id = ?", d.UserCharacterID).Error; err != nil {
		t.Fatalf("delete character: %v", err)
	}
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4})

	out := f.pipe.Process(context.Background(), job)
	if out.Result != ResultFailed || !errors.Is(out.Err, ErrCharacterMissing) {
		t.Fatalf("outcome: %+v", out)
	}
	after := f.job(t, job.ID)
	if after.Status != types.DialogJobFailed || after.RetryCount != 1 {
		t.Fatalf("failed job: %+v", after)
	}
	if len(f.gen.turns) != 0 {
		t.Fatalf("generator must not be called")
	}
}

func TestProcessCompletesWithoutGeneratingAtMaxTurns(t *testing.T) {
	f := newFixture(t)
	d := testutil.SeedDialog(t, f.db, uuid.New(), 2)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, CurrentTurn: 2, MaxTurns: 2})

	out := f.pipe.Process(context.Background(), job)
	if out.Result != ResultCompleted {
		t.Fatalf("outcome: %+v", out)
	}
	if len(f.gen.turns) != 0 {
		t.Fatalf("generator must not be called")
	}
	if got := f.job(t, job.ID); got.Status != types.DialogJobCompleted {
		t.Fatalf("job: %+v", got)
	}
}

func TestProcessSkipsLostClaim(t *testing.T) {
	f := newFixture(t)
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4})
	stale := *job
	if ok, err := f.svc.BeginProcessing(f.dbc, job); err != nil || !ok {
		t.Fatalf("claim: %v %v", ok, err)
	}

	out := f.pipe.Process(context.Background(), &stale)
	if out.Result != ResultSkipped {
		t.Fatalf("outcome: %+v", out)
	}
	if len(f.gen.turns) != 0 {
		t.Fatalf("generator must not be called")
	}
}

func TestProcessReleasesOnCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.gen.turnErr = context.Canceled
	d := testutil.SeedDialog(t, f.db, uuid.New(), 4)
	job := testutil.SeedJob(t, f.db, &types.DialogJob{DialogID: d.ID, Status: types.DialogJobPending, MaxTurns: 4, CreatedAt: time.Now().UTC()})

	cancelling := &cancelOnGenerate{fakeGenerator: f.gen, cancel: cancel}
	f.pipe.gen = cancelling
	out := f.pipe.Process(ctx, job)
	if out.Result != ResultReleased {
		t.Fatalf("outcome: %+v", out)
	}
	if got := f.job(t, job.ID); got.Status != types.DialogJobPending || got.RetryCount != 0 {
		t.Fatalf("released job: %+v", got)
	}
}

type cancelOnGenerate struct {
	*fakeGenerator
	cancel context.CancelFunc
}

func (g *cancelOnGenerate) GenerateTurn(ctx context.Context, req generation.TurnRequest) (*generation.TurnResult, error) {
	g.cancel()
	return g.fakeGenerator.GenerateTurn(ctx, req)
}
