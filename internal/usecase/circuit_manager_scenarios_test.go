package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ikedadada/go-ptor/internal/domain/entity"
	domainSvc "ikedadada/go-ptor/internal/domain/service"
	"ikedadada/go-ptor/internal/domain/value_object"
)

// This file exercises CircuitManager from inside the package so its
// scenario-level tests can assert directly on the registry sets
// (pendingSet/activeSet/cleanSet) rather than only through CircuitManager's
// exported methods.

type scenarioRelayRepo struct {
	relays []*entity.Relay
}

func (r *scenarioRelayRepo) Save(*entity.Relay) error { return nil }
func (r *scenarioRelayRepo) FindByID(id value_object.RelayID) (*entity.Relay, error) {
	for _, rl := range r.relays {
		if rl.ID().Equal(id) {
			return rl, nil
		}
	}
	return nil, errors.New("not found")
}
func (r *scenarioRelayRepo) AllOnline() ([]*entity.Relay, error) { return r.relays, nil }

type scenarioCircuitRepo struct {
	mu       sync.Mutex
	circuits map[string]*entity.Circuit
}

func newScenarioCircuitRepo() *scenarioCircuitRepo {
	return &scenarioCircuitRepo{circuits: make(map[string]*entity.Circuit)}
}

func (r *scenarioCircuitRepo) Save(c *entity.Circuit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circuits[c.ID().String()] = c
	return nil
}
func (r *scenarioCircuitRepo) Find(id value_object.CircuitID) (*entity.Circuit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.circuits[id.String()], nil
}
func (r *scenarioCircuitRepo) Delete(id value_object.CircuitID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.circuits, id.String())
	return nil
}
func (r *scenarioCircuitRepo) ListActive() ([]*entity.Circuit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Circuit, 0, len(r.circuits))
	for _, c := range r.circuits {
		out = append(out, c)
	}
	return out, nil
}

var scenarioBuildKey = mustGenerateScenarioKey()

func mustGenerateScenarioKey() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 512)
	if err != nil {
		panic(err)
	}
	return k
}

// scenarioBuildUC fabricates a circuit whose last hop is forced to
// exitRelayID when one is given, so a test can control which relay's exit
// policy ends up governing the built circuit (grounded on the same
// round-trip-through-the-repo shape mockBuildUC uses in
// circuit_manager_test.go, duplicated here because this file lives in a
// different package).
type scenarioBuildUC struct {
	repo  *scenarioCircuitRepo
	delay time.Duration
	calls int

	// relayPool, when set, supplies each hop's relay id in order (wrapping
	// if hops > len(pool)) instead of a fresh random one, so a test can
	// make the built circuit's path land on specific, known relays.
	relayPool []string
}

func (b *scenarioBuildUC) Handle(in BuildCircuitInput) (BuildCircuitOutput, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.calls++
	hops := in.Hops
	if hops <= 0 {
		hops = 1
	}
	relays := make([]value_object.RelayID, hops)
	keys := make([]value_object.AESKey, hops)
	nonces := make([]value_object.Nonce, hops)
	hopStrs := make([]string, hops)
	for i := 0; i < hops; i++ {
		idStr := uuid.NewString()
		if len(b.relayPool) > 0 {
			idStr = b.relayPool[i%len(b.relayPool)]
		}
		rid, err := value_object.NewRelayID(idStr)
		if err != nil {
			return BuildCircuitOutput{}, err
		}
		relays[i] = rid
		hopStrs[i] = rid.String()
	}
	if in.ExitRelayID != "" {
		last, err := value_object.NewRelayID(in.ExitRelayID)
		if err != nil {
			return BuildCircuitOutput{}, err
		}
		relays[len(relays)-1] = last
		hopStrs[len(hopStrs)-1] = last.String()
	}
	cid := value_object.NewCircuitID()
	cir, err := entity.NewCircuit(cid, relays, keys, nonces, scenarioBuildKey)
	if err != nil {
		return BuildCircuitOutput{}, err
	}
	cir.SetStateBuilding()
	cir.SetStateOpen()
	if err := b.repo.Save(cir); err != nil {
		return BuildCircuitOutput{}, err
	}
	return BuildCircuitOutput{CircuitID: cid.String(), Hops: hopStrs}, nil
}

type scenarioOpenUC struct {
	block chan struct{} // if non-nil, Handle blocks until closed (never closed = a dropped connected cell)
}

func (o *scenarioOpenUC) Handle(in OpenStreamInput) (OpenStreamOutput, error) {
	if o.block != nil {
		<-o.block
	}
	return OpenStreamOutput{StreamID: 1}, nil
}

// scenarioSendUC fails the BEGIN send for one specific circuit id, so a
// test can simulate a relay returning END on the first exit attempt.
type scenarioSendUC struct {
	mu        sync.Mutex
	failUntil map[string]int // circuit id -> remaining failures
}

func (s *scenarioSendUC) Handle(in SendDataInput) (SendDataOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.failUntil[in.CircuitID]; n > 0 {
		s.failUntil[in.CircuitID] = n - 1
		return SendDataOutput{}, domainSvc.NewCoreError(domainSvc.KindStreamError, "relay sent END")
	}
	return SendDataOutput{BytesSent: len(in.Data)}, nil
}

func scenarioRelay(id, policy string) *entity.Relay {
	rid, err := value_object.NewRelayID(id)
	if err != nil {
		panic(err)
	}
	ep, err := value_object.ParseExitPolicy(policy)
	if err != nil {
		panic(err)
	}
	r := entity.NewRelay(rid, value_object.Endpoint{}, value_object.RSAPubKey{})
	r.SetExitPolicy(ep)
	r.SetOnline()
	return r
}

// Scenario 1: build and open. Three routers are modeled as three online
// relays; only the last admits TCP 80. EnsureSpare stands in for "within
// two scheduler ticks" (the scheduler's own tick just calls the same
// createNewCircuit loop EnsureSpare does). After opening an exit stream
// the circuit must be active but no longer clean.
func TestScenario_BuildAndOpen(t *testing.T) {
	r1 := scenarioRelay("11111111-1111-1111-1111-111111111111", "reject *:*")
	r2 := scenarioRelay("22222222-2222-2222-2222-222222222222", "reject *:*")
	r3 := scenarioRelay("33333333-3333-3333-3333-333333333333", "accept *:80")
	rr := &scenarioRelayRepo{relays: []*entity.Relay{r1, r2, r3}}
	repo := newScenarioCircuitRepo()
	build := &scenarioBuildUC{repo: repo, relayPool: []string{r1.ID().String(), r2.ID().String(), r3.ID().String()}}
	mgr := NewCircuitManager(rr, repo, build, &scenarioOpenUC{}, &scenarioSendUC{failUntil: map[string]int{}}, 3)

	if err := mgr.EnsureSpare(1); err != nil {
		t.Fatalf("EnsureSpare: %v", err)
	}
	if got := mgr.cleanCount(); got != 1 {
		t.Fatalf("expected one clean circuit after warm-up, got %d", got)
	}

	out, err := mgr.OpenExitStreamTo(OpenExitStreamInput{Host: "example.com", Port: 80})
	if err != nil {
		t.Fatalf("OpenExitStreamTo: %v", err)
	}
	if out.CircuitID == "" {
		t.Fatal("expected a circuit id")
	}

	cid := mustParseScenarioCircuitID(t, out.CircuitID)
	opened, err := repo.Find(cid)
	if err != nil || opened == nil {
		t.Fatalf("expected the opened circuit to be findable: %v", err)
	}
	if !opened.IsDirty() {
		t.Error("expected the circuit to be dirty after opening an exit stream")
	}

	mgr.registryMu.Lock()
	_, inActive := mgr.activeSet[out.CircuitID]
	_, inClean := mgr.cleanSet[out.CircuitID]
	mgr.registryMu.Unlock()
	if !inActive {
		t.Error("expected the circuit to remain in the active set")
	}
	if inClean {
		t.Error("expected the circuit to have left the clean set once dirtied")
	}
}

func mustParseScenarioCircuitID(t *testing.T, s string) value_object.CircuitID {
	t.Helper()
	cid, err := value_object.CircuitIDFrom(s)
	if err != nil {
		t.Fatalf("parse circuit id %q: %v", s, err)
	}
	return cid
}

// Scenario 2: exit failure fallback. Two active circuits admit the same
// target, one fails it (END on the first send), and the fallback is
// forced onto the other. The failing circuit's memo must record the
// target afterward.
func TestScenario_ExitFailureFallback(t *testing.T) {
	r3 := scenarioRelay("33333333-3333-3333-3333-333333333334", "accept *:80")
	r4 := scenarioRelay("44444444-4444-4444-4444-444444444444", "accept *:80")
	rr := &scenarioRelayRepo{relays: []*entity.Relay{r3, r4}}
	repo := newScenarioCircuitRepo()
	build := &scenarioBuildUC{repo: repo}
	send := &scenarioSendUC{failUntil: map[string]int{}}
	mgr := NewCircuitManager(rr, repo, build, &scenarioOpenUC{}, send, 3)

	c3, err := mgr.createNewCircuitWithExit(3, r3.ID().String(), false)
	if err != nil {
		t.Fatalf("build r3 circuit: %v", err)
	}
	c4, err := mgr.createNewCircuitWithExit(3, r4.ID().String(), false)
	if err != nil {
		t.Fatalf("build r4 circuit: %v", err)
	}

	send.mu.Lock()
	send.failUntil[c3.ID().String()] = 1
	send.mu.Unlock()

	// First attempt lands on c3 and fails, per "inject an end response on
	// the first attempt from R3". Retry deterministically on c4.
	if _, err := mgr.openOnCircuit(c3, "example.com", 80, ""); err == nil {
		t.Fatal("expected the first attempt on the r3 circuit to fail")
	}
	c3.RecordFailedExitTarget("example.com:80")

	out, err := mgr.openOnCircuit(c4, "example.com", 80, "")
	if err != nil {
		t.Fatalf("expected the retry on the r4 circuit to succeed: %v", err)
	}
	if out.CircuitID != c4.ID().String() {
		t.Errorf("expected the retry to land on %s, got %s", c4.ID().String(), out.CircuitID)
	}
	if !c3.HasFailedExitTarget("example.com:80") {
		t.Error("expected the r3 circuit's failed-exit memo to record example.com:80")
	}

	got, ok := mgr.matchActiveCircuit("example.com", 80)
	if !ok || got.ID().String() != c4.ID().String() {
		t.Error("expected matchActiveCircuit to now only offer the r4 circuit for this target")
	}
}

// Scenario 3: stream timeout accounting. With a short stream-open timeout
// and an open use case that never returns (a permanently dropped
// connected cell), three consecutive opens on the same circuit each time
// out, and the circuit transitions to DESTROYED on the third.
func TestScenario_StreamTimeoutAccounting(t *testing.T) {
	r := scenarioRelay("55555555-5555-5555-5555-555555555555", "accept *:*")
	rr := &scenarioRelayRepo{relays: []*entity.Relay{r}}
	repo := newScenarioCircuitRepo()
	build := &scenarioBuildUC{repo: repo}
	open := &scenarioOpenUC{block: make(chan struct{})} // never closed
	mgr := NewCircuitManager(rr, repo, build, open, &scenarioSendUC{failUntil: map[string]int{}}, 3)
	mgr.SetStreamOpenTimeout(50 * time.Millisecond)

	c, err := mgr.createNewCircuitWithExit(3, r.ID().String(), false)
	if err != nil {
		t.Fatalf("build circuit: %v", err)
	}

	for i := 0; i < entity.MaxStreamTimeouts; i++ {
		_, err := mgr.openWithTimeout(c, OpenStreamInput{CircuitID: c.ID().String()})
		if !domainSvc.IsKind(err, domainSvc.KindStreamTimeout) {
			t.Fatalf("attempt %d: expected a StreamTimeout CoreError, got %v", i+1, err)
		}
	}

	if !c.IsDestroyed() {
		t.Error("expected the circuit to be destroyed after reaching the stream-timeout threshold")
	}
	mgr.registryMu.Lock()
	_, stillActive := mgr.activeSet[c.ID().String()]
	mgr.registryMu.Unlock()
	if stillActive {
		t.Error("expected the destroyed circuit to have left the active set")
	}
}

// Scenario 4: cancellation. A pending openExitStreamTo with no circuit yet
// available is interrupted before a build can complete; it returns the
// Interrupted error kind and leaves the pending queue empty.
func TestScenario_Cancellation(t *testing.T) {
	r := scenarioRelay("66666666-6666-6666-6666-666666666666", "accept *:*")
	rr := &scenarioRelayRepo{relays: []*entity.Relay{r}}
	repo := newScenarioCircuitRepo()
	build := &scenarioBuildUC{repo: repo, delay: 200 * time.Millisecond}
	mgr := NewCircuitManager(rr, repo, build, &scenarioOpenUC{}, &scenarioSendUC{failUntil: map[string]int{}}, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mgr.OpenExitStreamToCtx(ctx, OpenExitStreamInput{Host: "example.com", Port: 443})
	if !domainSvc.IsKind(err, domainSvc.KindInterrupted) {
		t.Fatalf("expected an Interrupted CoreError, got %v", err)
	}
	if got := mgr.PendingRequests(); got != 0 {
		t.Errorf("expected the pending queue to be empty after cancellation, got %d", got)
	}
}

// Scenario 5: directory stream. openDirectoryStream builds exactly one
// one-hop circuit to the named router and fires circuit-built then
// stream-opened, in that order.
func TestScenario_DirectoryStream(t *testing.T) {
	d := scenarioRelay("77777777-7777-7777-7777-777777777777", "accept *:*")
	rr := &scenarioRelayRepo{relays: []*entity.Relay{d}}
	repo := newScenarioCircuitRepo()
	build := &scenarioBuildUC{repo: repo}
	mgr := NewCircuitManager(rr, repo, build, &scenarioOpenUC{}, &scenarioSendUC{failUntil: map[string]int{}}, 3)

	out, err := mgr.OpenDirectoryStream(DirectoryStreamRequest{RouterID: d.ID().String()})
	if err != nil {
		t.Fatalf("OpenDirectoryStream: %v", err)
	}
	if build.calls != 1 {
		t.Fatalf("expected exactly one circuit build, got %d", build.calls)
	}

	cid := mustParseScenarioCircuitID(t, out.CircuitID)
	c, err := repo.Find(cid)
	if err != nil || c == nil {
		t.Fatalf("expected the directory circuit to be findable: %v", err)
	}
	if len(c.Hops()) != 1 {
		t.Errorf("expected a one-hop circuit, got %d hops", len(c.Hops()))
	}
	if !c.IsDirectory() {
		t.Error("expected the circuit to be marked directory-only")
	}

	first := <-mgr.Events()
	second := <-mgr.Events()
	if first != domainSvc.EventCircuitBuilt || second != domainSvc.EventStreamOpened {
		t.Errorf("expected events [circuit-built, stream-opened], got [%v, %v]", first, second)
	}
}

// Scenario 6: destroy propagation. A destroy arriving mid-stream must pull
// the circuit out of all three registry sets in one atomic step, so no
// reader ever observes it split across two of them.
func TestScenario_DestroyPropagation(t *testing.T) {
	r := scenarioRelay("88888888-8888-8888-8888-888888888888", "accept *:*")
	rr := &scenarioRelayRepo{relays: []*entity.Relay{r}}
	repo := newScenarioCircuitRepo()
	build := &scenarioBuildUC{repo: repo}
	mgr := NewCircuitManager(rr, repo, build, &scenarioOpenUC{}, &scenarioSendUC{failUntil: map[string]int{}}, 3)

	c, err := mgr.createNewCircuitWithExit(3, r.ID().String(), false)
	if err != nil {
		t.Fatalf("build circuit: %v", err)
	}
	if _, err := c.OpenStream(); err != nil {
		t.Fatalf("open stream: %v", err)
	}

	if len(c.ActiveStreams()) != 1 {
		t.Fatalf("expected one active stream before the destroy, got %d", len(c.ActiveStreams()))
	}

	c.SetStateDestroyed()
	mgr.circuitInactive(c)

	if !c.IsDestroyed() {
		t.Error("expected the circuit to report destroyed")
	}

	mgr.registryMu.Lock()
	_, inPending := mgr.pendingSet[c.ID().String()]
	_, inActive := mgr.activeSet[c.ID().String()]
	_, inClean := mgr.cleanSet[c.ID().String()]
	mgr.registryMu.Unlock()
	if inPending || inActive || inClean {
		t.Error("expected the destroyed circuit to be absent from all three registry sets")
	}
}
