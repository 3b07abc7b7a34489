package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
	"github.com/yungbote/dialogforge-backend/internal/jobs/pipeline/dialog_turn"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type Processor interface {
	Process(ctx context.Context, job *types.DialogJob) dialog_turn.Outcome
	Fail(ctx context.Context, job *types.DialogJob, cause error) dialog_turn.Outcome
}

type Config struct {
	Interval    time.Duration
	Concurrency int
}

// CycleReport summarizes one RunCycle pass.
type CycleReport struct {
	LeaseHeld bool `json:"lease_held"`
	Due       int  `json:"due"`

	Advanced  int `json:"advanced"`
	Completed int `json:"completed"`
	Deferred  int `json:"deferred"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Released  int `json:"released"`
	Errors    int `json:"errors"`
	Panics    int `json:"panics"`

	AnalysisFailures int `json:"analysis_failures"`

	Recovered         int64 `json:"recovered"`
	Promoted          int64 `json:"promoted"`
	Purged            int64 `json:"purged"`
	MaintenanceErrors int   `json:"maintenance_errors"`
}

type Worker struct {
	log    *logger.Logger
	jobs   *dialogjob.Service
	proc   Processor
	lock   CycleLock
	cfg    Config
	tracer trace.Tracer
}

func NewWorker(baseLog *logger.Logger, jobs *dialogjob.Service, proc Processor, lock CycleLock, cfg Config) *Worker {
	if lock == nil {
		lock = NoopLock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Worker{
		log:    baseLog.With("component", "DialogJobWorker"),
		jobs:   jobs,
		proc:   proc,
		lock:   lock,
		cfg:    cfg,
		tracer: otel.Tracer("dialogforge/worker"),
	}
}

// Start runs a cycle immediately and then on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting dialog job worker", "interval", w.cfg.Interval.String(), "concurrency", w.cfg.Concurrency)
	go w.runLoop(ctx)
}

func (w *Worker) runLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := w.RunCycle(ctx); err != nil {
			w.log.Error("Dialog job cycle aborted", "error", err)
		}
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle is one scheduler pass: process every due job, then run maintenance. Only a
// failure to select due jobs aborts the cycle.
func (w *Worker) RunCycle(ctx context.Context) (report CycleReport, err error) {
	ctx, span := w.tracer.Start(ctx, "worker.cycle")
	defer func() {
		span.SetAttributes(
			attribute.Int("cycle.due", report.Due),
			attribute.Int("cycle.failed", report.Failed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	release, ok, err := w.lock.Acquire(ctx)
	if err != nil {
		return report, err
	}
	if !ok {
		report.LeaseHeld = true
		w.log.Debug("Cycle lease held elsewhere; skipping")
		return report, nil
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}
	due, err := w.jobs.SelectDue(dbc)
	if err != nil {
		return report, err
	}
	report.Due = len(due)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, job := range due {
		g.Go(func() error {
			out, panicked := w.processOne(gctx, job)
			mu.Lock()
			report.record(out, panicked)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	w.maintain(dbc, &report)

	if report.Due > 0 || report.Recovered > 0 || report.Promoted > 0 || report.Purged > 0 {
		w.log.Info("Dialog job cycle finished",
			"due", report.Due,
			"advanced", report.Advanced,
			"completed", report.Completed,
			"deferred", report.Deferred,
			"failed", report.Failed,
			"recovered", report.Recovered,
			"promoted", report.Promoted,
			"purged", report.Purged,
		)
	}
	return report, nil
}

func (w *Worker) processOne(ctx context.Context, job *types.DialogJob) (out dialog_turn.Outcome, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Dialog job panic", "job_id", job.ID, "panic", r)
			panicked = true
			out = w.proc.Fail(ctx, job, &panicError{Val: r})
		}
	}()
	return w.proc.Process(ctx, job), false
}

func (w *Worker) maintain(dbc dbctx.Context, report *CycleReport) {
	var err error
	if report.Recovered, err = w.jobs.RecoverStuck(dbc); err != nil {
		report.MaintenanceErrors++
		w.log.Error("Stuck job recovery failed", "error", err)
	}
	if report.Promoted, err = w.jobs.PromoteFailed(dbc); err != nil {
		report.MaintenanceErrors++
		w.log.Error("Failed job promotion failed", "error", err)
	}
	if report.Purged, err = w.jobs.PurgeCompleted(dbc); err != nil {
		report.MaintenanceErrors++
		w.log.Error("Completed job purge failed", "error", err)
	}
}

func (r *CycleReport) record(out dialog_turn.Outcome, panicked bool) {
	if panicked {
		r.Panics++
	}
	if out.AnalysisErr != nil {
		r.AnalysisFailures++
	}
	switch out.Result {
	case dialog_turn.ResultAdvanced:
		r.Advanced++
	case dialog_turn.ResultCompleted:
		r.Completed++
	case dialog_turn.ResultDeferred:
		r.Deferred++
	case dialog_turn.ResultFailed:
		r.Failed++
	case dialog_turn.ResultSkipped:
		r.Skipped++
	case dialog_turn.ResultReleased:
		r.Released++
	default:
		r.Errors++
	}
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
