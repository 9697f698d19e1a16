// Package health tracks process readiness and liveness for the orchestrator
// probes. Transitions are single-writer; reads never touch the inference
// path, so probes answer quickly even under executor overload.
package health

import "sync"

// State is the process lifecycle state.
type State string

const (
	StateStarting     State = "starting"
	StateReady        State = "ready"
	StateDegraded     State = "degraded"
	StateShuttingDown State = "shutting_down"
)

// Degradation causes. Only overload is recoverable.
const (
	causeOverload     = "overload"
	causeBackendFault = "backend_fault"
	causeLoadFailure  = "load_failure"
)

// Reporter is the readiness/liveness state machine.
type Reporter struct {
	mu     sync.RWMutex
	state  State
	cause  string
	reason string
	live   bool
	pub    EventPublisher
}

// New returns a Reporter in Starting with liveness true.
func New(pub EventPublisher) *Reporter {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Reporter{state: StateStarting, live: true, pub: pub}
}

// ModelLoaded transitions Starting -> Ready.
func (r *Reporter) ModelLoaded() {
	r.transition(func() bool {
		if r.state != StateStarting {
			return false
		}
		r.state = StateReady
		return true
	}, "model loaded")
}

// LoadFailed transitions Starting -> Degraded and clears liveness: the
// process cannot serve and should exit after reporting.
func (r *Reporter) LoadFailed(err error) {
	r.transition(func() bool {
		if r.state != StateStarting {
			return false
		}
		r.state = StateDegraded
		r.cause = causeLoadFailure
		r.reason = err.Error()
		r.live = false
		return true
	}, "model load failed")
}

// BackendFault latches Degraded with liveness false. There is no
// self-healing past this point; a supervisor restart is expected.
func (r *Reporter) BackendFault(err error) {
	r.transition(func() bool {
		if r.state == StateShuttingDown {
			return false
		}
		r.state = StateDegraded
		r.cause = causeBackendFault
		r.reason = err.Error()
		r.live = false
		return true
	}, "backend fault")
}

// Overloaded transitions Ready -> Degraded on a sustained-overload signal.
func (r *Reporter) Overloaded() {
	r.transition(func() bool {
		if r.state != StateReady {
			return false
		}
		r.state = StateDegraded
		r.cause = causeOverload
		r.reason = "backlog at capacity"
		return true
	}, "sustained overload")
}

// Recovered transitions Degraded -> Ready, but only when the degradation
// was overload. Backend faults and load failures never recover in-process.
func (r *Reporter) Recovered() {
	r.transition(func() bool {
		if r.state != StateDegraded || r.cause != causeOverload {
			return false
		}
		r.state = StateReady
		r.cause = ""
		r.reason = ""
		return true
	}, "overload cleared")
}

// Shutdown enters the terminal ShuttingDown state. Liveness stays true so
// the orchestrator lets in-flight jobs drain; readiness goes false so it
// stops routing new traffic.
func (r *Reporter) Shutdown() {
	r.transition(func() bool {
		if r.state == StateShuttingDown {
			return false
		}
		r.state = StateShuttingDown
		return true
	}, "shutdown signal")
}

func (r *Reporter) transition(apply func() bool, note string) {
	r.mu.Lock()
	applied := apply()
	st := r.state
	reason := r.reason
	r.mu.Unlock()
	if applied {
		r.pub.Publish(Event{Name: note, State: st, Reason: reason})
	}
}

// Live reports process liveness: true unless an unrecoverable internal
// fault (load failure, backend fault) was detected.
func (r *Reporter) Live() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Ready reports whether the service should receive new traffic.
func (r *Reporter) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateReady
}

// ShuttingDown reports whether the shutdown signal was observed.
func (r *Reporter) ShuttingDown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateShuttingDown
}

// Snapshot returns the state and the degradation reason, if any.
func (r *Reporter) Snapshot() (State, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.reason
}
