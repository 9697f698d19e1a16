// Package engine wires the model handle, tensor codec, executor and health
// reporter into the service the HTTP layer talks to.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trast/internal/codec"
	"trast/internal/executor"
	"trast/internal/health"
	"trast/internal/model"

	"trast/pkg/types"
)

// ModelInfo is the slice of the model handle the engine reports and decodes
// against. *model.Handle satisfies it together with executor.Inferer.
type ModelInfo interface {
	executor.Inferer
	ID() string
	FormatVersion() uint32
	Device() string
	Signature() model.Signature
}

// Engine serves predictions over one loaded model.
type Engine struct {
	mdl             ModelInfo
	exec            *executor.Executor
	reporter        *health.Reporter
	defaultDeadline time.Duration
	started         time.Time
}

// Config bundles the engine's collaborators and tunables.
type Config struct {
	Model           ModelInfo
	Reporter        *health.Reporter
	Slots           int
	Backlog         int
	DefaultDeadline time.Duration
}

// New builds the engine and its executor. The reporter learns about
// backend-fatal faults through the executor's fault hook.
func New(cfg Config) *Engine {
	rep := cfg.Reporter
	if rep == nil {
		rep = health.New(nil)
	}
	e := &Engine{
		mdl:             cfg.Model,
		reporter:        rep,
		defaultDeadline: cfg.DefaultDeadline,
		started:         time.Now(),
	}
	e.exec = executor.New(cfg.Model, executor.Config{
		Slots:   cfg.Slots,
		Backlog: cfg.Backlog,
		OnFault: rep.BackendFault,
	})
	return e
}

// Predict decodes the request, runs it through the executor and encodes the
// result. Every failure is returned as a typed error the HTTP layer maps.
func (e *Engine) Predict(ctx context.Context, req types.PredictRequest) (types.PredictResponse, error) {
	var resp types.PredictResponse
	if e.reporter.ShuttingDown() {
		return resp, executor.ErrShuttingDown()
	}
	in, err := codec.Decode(req.Input, e.mdl.Signature())
	if err != nil {
		return resp, err
	}
	id := req.CorrelationID
	if id == "" {
		id = uuid.NewString()
	}
	if d := e.deadline(req); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := time.Now()
	out, err := e.exec.Submit(ctx, &executor.Job{ID: id, Input: in, SubmittedAt: start})
	if err != nil {
		return resp, err
	}
	resp.Output = codec.Encode(out)
	resp.CorrelationID = id
	resp.DurationMS = time.Since(start).Milliseconds()
	return resp, nil
}

func (e *Engine) deadline(req types.PredictRequest) time.Duration {
	if req.DeadlineMS > 0 {
		return time.Duration(req.DeadlineMS) * time.Millisecond
	}
	return e.defaultDeadline
}

// Status builds the /status report.
func (e *Engine) Status() types.StatusResponse {
	st, reason := e.reporter.Snapshot()
	stats := e.exec.Stats()
	sig := e.mdl.Signature()
	return types.StatusResponse{
		State:  string(st),
		Reason: reason,
		Model: types.ModelStatus{
			ID:            e.mdl.ID(),
			FormatVersion: e.mdl.FormatVersion(),
			Device:        e.mdl.Device(),
			ParallelSafe:  e.mdl.ParallelSafe(),
			InputDim:      sig.InputDim,
			OutputDim:     sig.OutputDim,
		},
		Queue: types.QueueStatus{
			Queued:     stats.Queued,
			Executing:  stats.Executing,
			Slots:      stats.Slots,
			BacklogCap: stats.BacklogCap,
		},
		UptimeSec: int64(time.Since(e.started).Seconds()),
	}
}

// Ready answers the readiness probe.
func (e *Engine) Ready() bool { return e.reporter.Ready() }

// Live answers the liveness probe.
func (e *Engine) Live() bool { return e.reporter.Live() }

// Saturated exposes the executor's overload signal for the health watcher.
func (e *Engine) Saturated() bool { return e.exec.Saturated() }

// Shutdown stops admission and drains in-flight jobs, bounded by the drain
// timeout. Safe to call once, from the signal path.
func (e *Engine) Shutdown(drainTimeout time.Duration) error {
	e.reporter.Shutdown()
	return e.exec.Close(drainTimeout)
}
