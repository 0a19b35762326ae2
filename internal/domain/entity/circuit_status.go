package entity

import (
	"sync"
	"time"

	domainSvc "ikedadada/go-ptor/internal/domain/service"
)

// CircuitState is a node in the Circuit status state machine.
type CircuitState int

const (
	StateUnconnected CircuitState = iota
	StateBuilding
	StateOpen
	StateFailed
	StateDestroyed
)

func (s CircuitState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateBuilding:
		return "building"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MaxStreamTimeouts is the number of consecutive stream-open timeouts a
// circuit tolerates before countStreamTimeout reports it should be dropped.
const MaxStreamTimeouts = 3

// legal transition edges of the state machine. OPEN -> DIRTY is a sub-flag
// tracked separately (dirty bool), not a state of its own.
var legalTransitions = map[CircuitState]map[CircuitState]bool{
	StateUnconnected: {StateBuilding: true, StateFailed: true},
	StateBuilding:    {StateOpen: true, StateFailed: true},
	StateOpen:        {StateDestroyed: true, StateFailed: true},
	StateFailed:      {StateDestroyed: true},
	StateDestroyed:   {},
}

// CircuitStatus is the per-circuit state machine: current state, dirty
// flag, creation/dirty timestamps, and the consecutive stream-timeout
// counter. All transitions funnel through transition so an illegal edge
// panics in one place instead of being scattered across setters.
type CircuitStatus struct {
	mu sync.Mutex

	state   CircuitState
	dirty   bool
	closing bool
	created time.Time
	dirty_  time.Time // dirtySince; zero until markDirty

	timeouts int
}

// NewCircuitStatus returns a status record starting UNCONNECTED.
func NewCircuitStatus() *CircuitStatus {
	return &CircuitStatus{state: StateUnconnected, created: time.Now()}
}

func (s *CircuitStatus) transition(to CircuitState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(to)
}

func (s *CircuitStatus) transitionLocked(to CircuitState) {
	if s.state == to {
		return // idempotent no-op
	}
	if !legalTransitions[s.state][to] {
		panic("entity: illegal circuit state transition " + s.state.String() + " -> " + to.String())
	}
	s.state = to
}

// SetStateBuilding moves UNCONNECTED -> BUILDING and resets createdAt.
func (s *CircuitStatus) SetStateBuilding() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(StateBuilding)
	s.created = time.Now()
}

// SetStateOpen moves BUILDING -> OPEN and resets createdAt.
func (s *CircuitStatus) SetStateOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(StateOpen)
	s.created = time.Now()
}

// SetStateFailed moves UNCONNECTED/BUILDING/OPEN -> FAILED.
func (s *CircuitStatus) SetStateFailed() {
	s.transition(StateFailed)
}

// SetStateDestroyed moves OPEN/FAILED -> DESTROYED, terminal.
func (s *CircuitStatus) SetStateDestroyed() {
	s.transition(StateDestroyed)
}

// MarkDirty sets the dirty sub-flag and records dirtySince on first call.
func (s *CircuitStatus) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		s.dirty = true
		s.dirty_ = time.Now()
	}
}

func (s *CircuitStatus) IsUnconnected() bool { return s.snapshot() == StateUnconnected }
func (s *CircuitStatus) IsBuilding() bool    { return s.snapshot() == StateBuilding }
func (s *CircuitStatus) IsConnected() bool   { return s.snapshot() == StateOpen }
func (s *CircuitStatus) IsDestroyed() bool {
	st := s.snapshot()
	return st == StateDestroyed || st == StateFailed
}

func (s *CircuitStatus) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkForClose flags the circuit as closing: it accepts no new streams, and
// whatever drives the build scheduler's upkeep is expected to destroy it
// once its existing streams have drained.
func (s *CircuitStatus) MarkForClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
}

// IsMarkedForClose reports whether MarkForClose has been called.
func (s *CircuitStatus) IsMarkedForClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *CircuitStatus) snapshot() CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CountStreamTimeout records a stream-open timeout and reports whether the
// policy threshold (MaxStreamTimeouts consecutive) has been reached.
func (s *CircuitStatus) CountStreamTimeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts++
	return s.timeouts >= MaxStreamTimeouts
}

// ResetStreamTimeouts clears the consecutive-timeout counter, called after
// any successful stream open.
func (s *CircuitStatus) ResetStreamTimeouts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = 0
}

// MillisecondsDirty returns how long the circuit has been dirty, or 0 if
// it never went dirty.
func (s *CircuitStatus) MillisecondsDirty() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty_.IsZero() {
		return 0
	}
	return time.Since(s.dirty_).Milliseconds()
}

// MillisecondsSinceCreation returns the age of the current state (reset on
// BUILDING and OPEN transitions).
func (s *CircuitStatus) MillisecondsSinceCreation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.created).Milliseconds()
}

// IsDirtyPast reports whether the circuit has been dirty longer than a
// jittered version of base, used by the build scheduler's upkeep pass so a
// burst of circuits marked dirty at the same moment don't all cross the
// deadline on the exact same tick.
func (s *CircuitStatus) IsDirtyPast(base time.Duration) bool {
	return s.MillisecondsDirty() > jitteredTick(base).Milliseconds()
}

// jitteredTick is used by the build scheduler to avoid every circuit's
// upkeep deadline landing on exactly the same tick. The 0-99ms of jitter
// comes from a fresh crypto-backed RandomSource on every call, so it is not
// deterministic and cannot be replaced under test.
func jitteredTick(base time.Duration) time.Duration {
	n, err := domainSvc.NewRandomSource().Intn(100)
	if err != nil {
		return base
	}
	return base + time.Duration(n)*time.Millisecond
}
