package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ikedadada/go-ptor/internal/domain/entity"
	"ikedadada/go-ptor/internal/domain/repository"
	domainSvc "ikedadada/go-ptor/internal/domain/service"
	"ikedadada/go-ptor/internal/domain/value_object"
)

// Scheduler and queue constants the circuit manager enforces: a floor of
// clean spare circuits to keep on hand, a ceiling on builds in flight, how
// long a circuit may stay dirty (carrying user streams) before upkeep marks
// it for close, and per-attempt timeouts for building and opening.
const (
	CleanCircuitFloor      = 3
	MaxPendingCircuits     = 8
	MaxDirtyDuration       = 10 * time.Minute
	BuildTimeout           = 60 * time.Second
	DefaultHopCount        = 3
	StreamOpenTimeout      = 10 * time.Second
	PendingRequestDeadline = 30 * time.Second

	// schedulerTick is the build scheduler's fixed tick period.
	schedulerTick = 1 * time.Second
)

// OpenExitStreamInput names a target to reach through a (possibly new)
// circuit whose last hop can exit to it.
type OpenExitStreamInput struct {
	Hops   int
	Host   string
	Port   uint16
	Target string // "host:port", already formatted for BEGIN
}

// OpenExitStreamOutput identifies the circuit and stream carrying the
// exit connection.
type OpenExitStreamOutput struct {
	CircuitID string
	StreamID  uint16
}

// DirectoryStreamRequest names the directory router a one-hop directory
// circuit should be built to.
type DirectoryStreamRequest struct {
	RouterID string
}

// CircuitManager is the circuit registry and entry point for the stream
// API: it owns the pending/active/clean registry sets, runs the periodic
// build scheduler, matches the stream-request queue against eligible
// circuits, and drives builds/opens through the lower-level use cases.
type CircuitManager struct {
	relayRepo   repository.RelayRepository
	circuitRepo repository.CircuitRepository
	buildUC     BuildCircuitUseCase
	openUC      OpenStreamUseCase
	sendUC      SendDataUseCase
	hops        int
	tracker     domainSvc.InitializationTracker

	buildMu sync.Mutex // guards pending; builds themselves run outside it
	pending int        // builds currently in flight, capped at MaxPendingCircuits

	registryMu sync.Mutex
	pendingSet map[string]*entity.Circuit
	activeSet  map[string]*entity.Circuit
	cleanSet   map[string]*entity.Circuit

	reqQueue *streamRequestQueue

	streamOpenTimeout time.Duration // defaults to StreamOpenTimeout; overridable for tests

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewCircuitManager wires the facade over already-constructed use cases.
func NewCircuitManager(
	relayRepo repository.RelayRepository,
	circuitRepo repository.CircuitRepository,
	buildUC BuildCircuitUseCase,
	openUC OpenStreamUseCase,
	sendUC SendDataUseCase,
	hops int,
) *CircuitManager {
	if hops <= 0 {
		hops = DefaultHopCount
	}
	return &CircuitManager{
		relayRepo:         relayRepo,
		circuitRepo:       circuitRepo,
		buildUC:           buildUC,
		openUC:            openUC,
		sendUC:            sendUC,
		hops:              hops,
		tracker:           domainSvc.NewInitializationTracker(16),
		pendingSet:        make(map[string]*entity.Circuit),
		activeSet:         make(map[string]*entity.Circuit),
		cleanSet:          make(map[string]*entity.Circuit),
		reqQueue:          newStreamRequestQueue(),
		streamOpenTimeout: StreamOpenTimeout,
		stopCh:            make(chan struct{}),
	}
}

// SetStreamOpenTimeout overrides the per-attempt stream-open timeout used by
// openWithTimeout. Tests use this to exercise the consecutive-timeout policy
// counter without waiting out the production default.
func (m *CircuitManager) SetStreamOpenTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.streamOpenTimeout = d
}

// Events exposes the manager's progress sink, so a caller (e.g. a CLI
// status line) can watch circuit-built/stream-opened notifications without
// threading a tracker through every use case.
func (m *CircuitManager) Events() <-chan domainSvc.InitEvent { return m.tracker.Events() }

// ---- Registry transitions (C7) --------------------------------------------
//
// A circuit's own state changes (building, open, dirty, destroyed) drive
// these; they are the only place pendingSet/activeSet/cleanSet are mutated.
// A circuit is never in pendingSet and activeSet at once; cleanSet is a
// subset of activeSet (a connected circuit joins both, and leaves cleanSet
// when it turns dirty).

func (m *CircuitManager) circuitStartConnect(c *entity.Circuit) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	m.pendingSet[c.ID().String()] = c
}

func (m *CircuitManager) circuitConnected(c *entity.Circuit) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	id := c.ID().String()
	delete(m.pendingSet, id)
	m.activeSet[id] = c
	m.cleanSet[id] = c
}

func (m *CircuitManager) circuitDirty(c *entity.Circuit) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	delete(m.cleanSet, c.ID().String())
}

func (m *CircuitManager) circuitInactive(c *entity.Circuit) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	id := c.ID().String()
	delete(m.pendingSet, id)
	delete(m.activeSet, id)
	delete(m.cleanSet, id)
}

func (m *CircuitManager) cleanCount() int {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	return len(m.cleanSet)
}

func (m *CircuitManager) pendingCount() int {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	return len(m.pendingSet)
}

func (m *CircuitManager) snapshotActive() []*entity.Circuit {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	out := make([]*entity.Circuit, 0, len(m.activeSet))
	for _, c := range m.activeSet {
		out = append(out, c)
	}
	return out
}

func (m *CircuitManager) snapshotClean() []*entity.Circuit {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	out := make([]*entity.Circuit, 0, len(m.cleanSet))
	for _, c := range m.cleanSet {
		out = append(out, c)
	}
	return out
}

// SelectExitRelay returns the id of an online relay whose exit policy
// permits host:port, or "" if none is known to qualify (any online relay
// may then serve as the last hop, per the default-accept convention). Used
// when a new circuit must be built with a forced exit hop.
func (m *CircuitManager) SelectExitRelay(host string, port uint16) string {
	relays, err := m.relayRepo.AllOnline()
	if err != nil {
		return ""
	}
	for _, r := range relays {
		if r.CanExitTo(host, port) {
			return r.ID().String()
		}
	}
	return ""
}

// RecordFailedExit remembers that the given circuit's last hop refused (or
// failed to reach) target, so matchActiveCircuit skips it for that same
// target on a later attempt.
func (m *CircuitManager) RecordFailedExit(circuitID, host string, port uint16) {
	cid, err := value_object.CircuitIDFrom(circuitID)
	if err != nil {
		return
	}
	c, err := m.circuitRepo.Find(cid)
	if err != nil || c == nil {
		return
	}
	c.RecordFailedExitTarget(fmt.Sprintf("%s:%d", host, port))
}

// canCircuitHandleExit reports whether c's last hop admits host:port and c
// hasn't already failed on that exact target.
func (m *CircuitManager) canCircuitHandleExit(c *entity.Circuit, host string, port uint16) bool {
	hops := c.Hops()
	if len(hops) == 0 {
		return false
	}
	last := hops[len(hops)-1]
	relay, err := m.relayRepo.FindByID(last)
	if err != nil || relay == nil {
		return false
	}
	if !relay.CanExitTo(host, port) {
		return false
	}
	return !c.HasFailedExitTarget(fmt.Sprintf("%s:%d", host, port))
}

// matchActiveCircuit iterates active circuits in a randomised order (so
// repeated requests for the same target don't pin onto one circuit) and
// returns the first whose last hop can handle host:port.
func (m *CircuitManager) matchActiveCircuit(host string, port uint16) (*entity.Circuit, bool) {
	active := m.snapshotActive()
	domainSvc.NewRandomSource().Shuffle(len(active), func(i, j int) {
		active[i], active[j] = active[j], active[i]
	})
	for _, c := range active {
		if c.IsDestroyed() {
			continue
		}
		if m.canCircuitHandleExit(c, host, port) {
			return c, true
		}
	}
	return nil, false
}

// ---- Build scheduler (C5) -------------------------------------------------

// StartBuildingCircuits starts the periodic build scheduler: each tick it
// tops up the clean-circuit floor, performs upkeep (closing circuits dirty
// past MaxDirtyDuration), and drains the pending stream-request queue against whatever
// is now eligible. It runs until Stop is called.
func (m *CircuitManager) StartBuildingCircuits() {
	go func() {
		ticker := time.NewTicker(schedulerTick)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

// Stop drains the scheduler timer and destroys no circuits itself (callers
// that want a clean shutdown call DestroyCircuitUseCase per active circuit
// first); it only stops the scheduler from running further ticks.
func (m *CircuitManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *CircuitManager) tick() {
	if m.cleanCount() < CleanCircuitFloor && m.pendingCount() < MaxPendingCircuits {
		go func() {
			if _, err := m.createNewCircuit(false); err != nil {
				return
			}
			m.drainPendingRequests()
		}()
	}
	m.upkeep()
	m.drainPendingRequests()
}

// upkeep flags circuits that have been dirty past MaxDirtyDuration for
// close (markForClose), then destroys any closing circuit whose streams
// have since drained. A circuit mid-stream when it crosses the deadline
// stays up, re-checked each tick, until its last stream closes rather than
// being torn down underneath an active transfer.
func (m *CircuitManager) upkeep() {
	for _, c := range m.snapshotActiveAndClean() {
		if c.IsDirty() && c.IsDirtyPast(MaxDirtyDuration) {
			c.MarkForClose()
		}
		if c.IsMarkedForClose() && len(c.ActiveStreams()) == 0 {
			c.SetStateDestroyed()
			m.circuitInactive(c)
		}
	}
}

func (m *CircuitManager) snapshotActiveAndClean() []*entity.Circuit {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	seen := make(map[string]*entity.Circuit, len(m.activeSet))
	for id, c := range m.activeSet {
		seen[id] = c
	}
	for id, c := range m.cleanSet {
		seen[id] = c
	}
	out := make([]*entity.Circuit, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out
}

// drainPendingRequests attempts to match every currently-queued request
// against an eligible circuit, completing whatever it can and leaving the
// rest queued. Called after every tick, after each scheduler-started build
// and after each request-driven build (buildForRequest); EnsureSpare and
// OpenDirectoryStream builds do not trigger it.
func (m *CircuitManager) drainPendingRequests() {
	for _, req := range m.reqQueue.snapshot() {
		if req.isCompleted() {
			continue
		}
		if req.expired() {
			req.complete(OpenExitStreamOutput{}, domainSvc.NewCoreError(domainSvc.KindStreamTimeout, "pending request exceeded its deadline"))
			continue
		}
		c, ok := m.matchActiveCircuit(req.Host, req.Port)
		if !ok {
			continue
		}
		out, err := m.openOnCircuit(c, req.Host, req.Port, req.Target)
		if err != nil {
			c.RecordFailedExitTarget(fmt.Sprintf("%s:%d", req.Host, req.Port))
			continue
		}
		req.complete(out, nil)
	}
}

// EnsureSpare tops up the clean pool to n (capped at CleanCircuitFloor)
// synchronously; it's what a caller runs once at startup so the first
// requests don't each wait on their own build. StartBuildingCircuits takes
// over maintaining the floor afterward.
func (m *CircuitManager) EnsureSpare(n int) error {
	if n > CleanCircuitFloor {
		n = CleanCircuitFloor
	}
	for m.cleanCount() < n {
		if _, err := m.createNewCircuit(false); err != nil {
			return fmt.Errorf("ensure spare: %w", err)
		}
	}
	return nil
}

// ---- Circuit creation (C7 upward API) -------------------------------------

// createNewCircuit builds a new circuit — a full-length circuit for
// exit traffic, or a one-hop directory-only circuit when isDirectory is
// true — and registers it through the pending->connected transition.
func (m *CircuitManager) createNewCircuit(isDirectory bool) (*entity.Circuit, error) {
	hops := m.hops
	if isDirectory {
		hops = 1
	}
	m.buildMu.Lock()
	if m.pending >= MaxPendingCircuits {
		m.buildMu.Unlock()
		return nil, fmt.Errorf("create circuit: %d builds already pending", m.pending)
	}
	m.pending++
	m.buildMu.Unlock()

	out, err := m.buildUC.Handle(BuildCircuitInput{Hops: hops})

	m.buildMu.Lock()
	m.pending--
	m.buildMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create circuit: %w", err)
	}

	cid, err := value_object.CircuitIDFrom(out.CircuitID)
	if err != nil {
		return nil, fmt.Errorf("create circuit: %w", err)
	}
	c, err := m.circuitRepo.Find(cid)
	if err != nil || c == nil {
		return nil, fmt.Errorf("create circuit: lookup built circuit: %w", err)
	}
	c.SetDirectory(isDirectory)
	m.circuitStartConnect(c)
	m.circuitConnected(c)
	return c, nil
}

// createNewCircuitWithExit is createNewCircuit's counterpart for callers
// that need a specific last hop (forced exit, or a directory router).
func (m *CircuitManager) createNewCircuitWithExit(hops int, exitRelayID string, isDirectory bool) (*entity.Circuit, error) {
	m.buildMu.Lock()
	if m.pending >= MaxPendingCircuits {
		m.buildMu.Unlock()
		return nil, fmt.Errorf("create circuit: %d builds already pending", m.pending)
	}
	m.pending++
	m.buildMu.Unlock()

	out, err := m.buildWithTimeout(BuildCircuitInput{Hops: hops, ExitRelayID: exitRelayID})

	m.buildMu.Lock()
	m.pending--
	m.buildMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create circuit: %w", err)
	}

	cid, err := value_object.CircuitIDFrom(out.CircuitID)
	if err != nil {
		return nil, fmt.Errorf("create circuit: %w", err)
	}
	c, err := m.circuitRepo.Find(cid)
	if err != nil || c == nil {
		return nil, fmt.Errorf("create circuit: lookup built circuit: %w", err)
	}
	c.SetDirectory(isDirectory)
	m.circuitStartConnect(c)
	m.circuitConnected(c)
	return c, nil
}

// buildWithTimeout runs a build in its own goroutine (no lock held) and
// bounds the caller's wait to BuildTimeout; a build that exceeds it is left
// running (the use case has no cancellation hook) and its result discarded.
func (m *CircuitManager) buildWithTimeout(in BuildCircuitInput) (BuildCircuitOutput, error) {
	type result struct {
		out BuildCircuitOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.buildUC.Handle(in)
		done <- result{out, err}
	}()
	select {
	case r := <-done:
		return r.out, r.err
	case <-time.After(BuildTimeout):
		return BuildCircuitOutput{}, fmt.Errorf("build circuit: exceeded %s", BuildTimeout)
	}
}

// openWithTimeout bounds a single open-stream attempt to StreamOpenTimeout,
// and counts the timeout against the circuit's consecutive-timeout policy
// counter (countStreamTimeout), destroying the circuit once the threshold
// is reached.
func (m *CircuitManager) openWithTimeout(c *entity.Circuit, in OpenStreamInput) (OpenStreamOutput, error) {
	type result struct {
		out OpenStreamOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.openUC.Handle(in)
		done <- result{out, err}
	}()
	select {
	case r := <-done:
		if r.err == nil {
			c.Status().ResetStreamTimeouts()
		}
		return r.out, r.err
	case <-time.After(m.streamOpenTimeout):
		if c.CountStreamTimeout() {
			c.SetStateDestroyed()
			m.circuitInactive(c)
		}
		return OpenStreamOutput{}, domainSvc.NewCoreError(domainSvc.KindStreamTimeout, fmt.Sprintf("open stream: exceeded %s", m.streamOpenTimeout))
	}
}

// openOnCircuit opens a stream on an already-eligible circuit and sends the
// BEGIN cell, marking the circuit dirty on success.
func (m *CircuitManager) openOnCircuit(c *entity.Circuit, host string, port uint16, target string) (OpenExitStreamOutput, error) {
	stOut, err := m.openWithTimeout(c, OpenStreamInput{CircuitID: c.ID().String()})
	if err != nil {
		return OpenExitStreamOutput{}, fmt.Errorf("open stream: %w", err)
	}
	if target == "" {
		target = fmt.Sprintf("%s:%d", host, port)
	}
	payload, err := value_object.EncodeBeginPayload(&value_object.BeginPayload{StreamID: stOut.StreamID, Target: target})
	if err != nil {
		return OpenExitStreamOutput{}, fmt.Errorf("encode begin: %w", err)
	}
	if _, err := m.sendUC.Handle(SendDataInput{CircuitID: c.ID().String(), StreamID: stOut.StreamID, Data: payload, Cmd: value_object.CmdBegin}); err != nil {
		return OpenExitStreamOutput{}, fmt.Errorf("send begin: %w", err)
	}
	c.MarkDirty()
	m.circuitDirty(c)
	return OpenExitStreamOutput{CircuitID: c.ID().String(), StreamID: stOut.StreamID}, nil
}

// OpenExitStreamTo enqueues a stream-exit request and blocks until it is
// matched against an eligible circuit, a new one is built for it, or its
// deadline/cancellation fires.
func (m *CircuitManager) OpenExitStreamTo(in OpenExitStreamInput) (OpenExitStreamOutput, error) {
	return m.OpenExitStreamToCtx(context.Background(), in)
}

// OpenExitStreamToCtx is OpenExitStreamTo with cancellation: if ctx is done
// before the request is matched, the request is removed from the queue and
// an Interrupted CoreError is returned, mirroring the caller-interruption
// behavior a blocking thread call would get in the original design.
func (m *CircuitManager) OpenExitStreamToCtx(ctx context.Context, in OpenExitStreamInput) (OpenExitStreamOutput, error) {
	relays, err := m.relayRepo.AllOnline()
	if err != nil || len(relays) == 0 {
		return OpenExitStreamOutput{}, domainSvc.NewCoreError(domainSvc.KindPolicyReject, "no online relay can serve as an exit")
	}

	if c, ok := m.matchActiveCircuit(in.Host, in.Port); ok {
		out, err := m.openOnCircuit(c, in.Host, in.Port, in.Target)
		if err == nil {
			return out, nil
		}
		c.RecordFailedExitTarget(fmt.Sprintf("%s:%d", in.Host, in.Port))
	}

	req := newStreamExitRequest(in.Host, in.Port, in.Target, PendingRequestDeadline)
	elem := m.reqQueue.enqueue(req)
	defer m.reqQueue.remove(elem)

	go m.buildForRequest(in)

	select {
	case res := <-req.done:
		return res.out, res.err
	case <-ctx.Done():
		req.complete(OpenExitStreamOutput{}, domainSvc.NewCoreError(domainSvc.KindInterrupted, "caller interrupted the pending request"))
		return OpenExitStreamOutput{}, domainSvc.NewCoreError(domainSvc.KindInterrupted, "caller interrupted the pending request")
	case <-time.After(PendingRequestDeadline):
		req.complete(OpenExitStreamOutput{}, domainSvc.NewCoreError(domainSvc.KindStreamTimeout, "open exit stream: request exceeded its deadline"))
		return OpenExitStreamOutput{}, fmt.Errorf("open exit stream: request exceeded %s", PendingRequestDeadline)
	}
}

// buildForRequest builds one additional circuit biased toward the
// request's target (forcing an exit hop that is known to admit it, if
// any), then re-drains the queue so the new circuit picks up whatever is
// still pending rather than just this one request.
func (m *CircuitManager) buildForRequest(in OpenExitStreamInput) {
	exitID := m.SelectExitRelay(in.Host, in.Port)
	hops := in.Hops
	if hops <= 0 {
		hops = m.hops
	}
	if _, err := m.createNewCircuitWithExit(hops, exitID, false); err != nil {
		return
	}
	m.tracker.NotifyEvent(domainSvc.EventCircuitBuilt)
	m.drainPendingRequests()
}

// PendingRequests reports how many stream-exit requests are currently
// queued, unmatched.
func (m *CircuitManager) PendingRequests() int { return m.reqQueue.len() }

// OpenDirectoryStream builds a one-hop directory-only circuit to the
// requested router and opens a directory stream over it, firing
// initialization events in the fixed order circuit-built then
// stream-opened.
func (m *CircuitManager) OpenDirectoryStream(req DirectoryStreamRequest) (OpenExitStreamOutput, error) {
	c, err := m.createNewCircuitWithExit(1, req.RouterID, true)
	if err != nil {
		return OpenExitStreamOutput{}, fmt.Errorf("build directory circuit: %w", err)
	}
	m.tracker.NotifyEvent(domainSvc.EventCircuitBuilt)

	stOut, err := m.openWithTimeout(c, OpenStreamInput{CircuitID: c.ID().String()})
	if err != nil {
		return OpenExitStreamOutput{}, fmt.Errorf("open directory stream: %w", err)
	}
	m.tracker.NotifyEvent(domainSvc.EventStreamOpened)
	c.MarkDirty()
	m.circuitDirty(c)

	return OpenExitStreamOutput{CircuitID: c.ID().String(), StreamID: stOut.StreamID}, nil
}
