// Package executor schedules inference jobs against the single loaded model
// under a fixed concurrency budget with a bounded FIFO backlog.
package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trast/internal/model"
	"trast/internal/tensor"
)

// Inferer is the slice of the model handle the executor needs. Tests stub it.
type Inferer interface {
	Infer(in tensor.Tensor) (tensor.Tensor, error)
	ParallelSafe() bool
}

// Job is one prediction request in flight. Submit fills the ID and timestamp
// when the caller leaves them empty.
type Job struct {
	ID          string
	Input       tensor.Tensor
	SubmittedAt time.Time
}

// Config holds the executor's admission budget.
type Config struct {
	// Slots is the number of jobs allowed to execute concurrently.
	Slots int
	// Backlog is the number of jobs allowed to wait beyond the slots.
	// A submission past Slots+Backlog is rejected immediately.
	Backlog int
	// OnFault is called at most once, when a backend-fatal error latches
	// the executor. May be nil.
	OnFault func(error)
}

const (
	defaultSlots   = 1
	defaultBacklog = 32
)

// Executor admits, queues and runs jobs. The admission channel and the slot
// channel are the only shared mutable state; both are updated with plain
// channel operations so the executing/queued bounds hold exactly under
// concurrent submission, completion and cancellation.
type Executor struct {
	inferer   Inferer
	admitCh   chan struct{} // one token per admitted job, cap slots+backlog
	slotCh    chan struct{} // one token per executing job, cap slots
	computeMu sync.Mutex    // held around Infer when the backend is serialized
	serialize bool

	slots   int
	backlog int
	onFault func(error)

	faulted   atomic.Bool
	faultOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// New builds an executor over the given inferer. The serialization decision
// is taken here, once, from the inferer's capability flag.
func New(inf Inferer, cfg Config) *Executor {
	if cfg.Slots <= 0 {
		cfg.Slots = defaultSlots
	}
	if cfg.Backlog < 0 {
		cfg.Backlog = defaultBacklog
	}
	return &Executor{
		inferer:   inf,
		admitCh:   make(chan struct{}, cfg.Slots+cfg.Backlog),
		slotCh:    make(chan struct{}, cfg.Slots),
		serialize: !inf.ParallelSafe(),
		slots:     cfg.Slots,
		backlog:   cfg.Backlog,
		onFault:   cfg.OnFault,
	}
}

type outcome struct {
	out tensor.Tensor
	err error
}

// Submit runs one job and delivers exactly one outcome to the caller. It
// blocks while the job is queued or executing, honoring ctx: expiry while
// queued means Infer is never invoked; expiry mid-execution means the
// compute call finishes on its own, the result is discarded and the slot is
// released at real completion.
func (e *Executor) Submit(ctx context.Context, job *Job) (tensor.Tensor, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if e.closed.Load() {
		rejectedTotal.WithLabelValues("unavailable").Inc()
		return tensor.Tensor{}, unavailableError{}
	}
	if e.faulted.Load() {
		rejectedTotal.WithLabelValues("backend_unavailable").Inc()
		return tensor.Tensor{}, backendUnavailableError{}
	}
	// A deadline already in the past never reaches the backend.
	if err := ctx.Err(); err != nil {
		rejectedTotal.WithLabelValues("deadline").Inc()
		return tensor.Tensor{}, mapCtxErr(err)
	}

	// Admission: reject immediately once slots+backlog tokens are out.
	select {
	case e.admitCh <- struct{}{}:
	default:
		rejectedTotal.WithLabelValues("overloaded").Inc()
		return tensor.Tensor{}, overloadedError{}
	}
	queueDepth.Inc()

	// Wait for an execution slot. Blocked senders are served in arrival
	// order, which keeps the backlog strictly FIFO.
	select {
	case e.slotCh <- struct{}{}:
	case <-ctx.Done():
		<-e.admitCh
		queueDepth.Dec()
		jobsTotal.WithLabelValues("deadline_queued").Inc()
		return tensor.Tensor{}, mapCtxErr(ctx.Err())
	}
	queueDepth.Dec()
	executing.Inc()

	if e.faulted.Load() {
		e.releaseSlot()
		return tensor.Tensor{}, backendUnavailableError{}
	}

	res := make(chan outcome, 1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.releaseSlot()
		start := time.Now()
		out, err := e.run(job.Input)
		jobDuration.Observe(time.Since(start).Seconds())
		if err != nil && model.IsBackendFatal(err) {
			e.latchFault(err)
		}
		if err != nil {
			jobsTotal.WithLabelValues("error").Inc()
		} else {
			jobsTotal.WithLabelValues("ok").Inc()
		}
		res <- outcome{out: out, err: err}
	}()

	select {
	case r := <-res:
		return r.out, r.err
	case <-ctx.Done():
		// No safe preemption of native compute: the goroutine above keeps
		// the slot until Infer returns, then discards the result.
		jobsTotal.WithLabelValues("deadline_executing").Inc()
		return tensor.Tensor{}, mapCtxErr(ctx.Err())
	}
}

func (e *Executor) run(in tensor.Tensor) (tensor.Tensor, error) {
	if e.serialize {
		e.computeMu.Lock()
		defer e.computeMu.Unlock()
	}
	return e.inferer.Infer(in)
}

func (e *Executor) releaseSlot() {
	<-e.slotCh
	<-e.admitCh
	executing.Dec()
}

func (e *Executor) latchFault(err error) {
	e.faultOnce.Do(func() {
		e.faulted.Store(true)
		if e.onFault != nil {
			e.onFault(err)
		}
	})
}

// Faulted reports whether a backend-fatal error has latched the executor.
func (e *Executor) Faulted() bool { return e.faulted.Load() }

// Serialized reports whether compute calls go through the critical section.
func (e *Executor) Serialized() bool { return e.serialize }

// Stats is a point-in-time occupancy snapshot for /status and the overload
// watcher.
type Stats struct {
	Queued     int
	Executing  int
	Slots      int
	BacklogCap int
}

func (e *Executor) Stats() Stats {
	exec := len(e.slotCh)
	queued := len(e.admitCh) - exec
	if queued < 0 {
		queued = 0
	}
	return Stats{Queued: queued, Executing: exec, Slots: e.slots, BacklogCap: e.backlog}
}

// Saturated reports whether the backlog is at capacity, the signal the
// health reporter's overload watcher consumes.
func (e *Executor) Saturated() bool {
	return len(e.admitCh) == cap(e.admitCh)
}

// Close stops admission and waits for executing jobs, bounded by the drain
// timeout. Queued-but-not-executing jobs still complete through their own
// Submit calls; new submissions fail with an unavailable error.
func (e *Executor) Close(drainTimeout time.Duration) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return errors.New("drain deadline exceeded with jobs in flight")
	}
}

func mapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return deadlineError{}
	}
	return err
}
