package service

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"ikedadada/go-ptor/internal/domain/entity"
	"ikedadada/go-ptor/internal/domain/repository"
	domainSvc "ikedadada/go-ptor/internal/domain/service"
	"ikedadada/go-ptor/internal/domain/value_object"
)

// CircuitBuildService selects relays and negotiates per-hop keys for a new
// circuit, one CREATE/EXTEND handshake at a time over a single connection
// to the entry relay.
type CircuitBuildService interface {
	// Build creates a new circuit with the given number of hops. If exit is
	// non-zero, the relay it identifies is forced to be the last hop.
	Build(hops int, exit value_object.RelayID) (*entity.Circuit, error)
}

type circuitBuildServiceImpl struct {
	rr     repository.RelayRepository
	cr     repository.CircuitRepository
	dialer Dialer
	crypto CryptoService
}

// NewCircuitBuildService wires relay selection, the handshake dialer and the
// crypto service together into a CircuitBuildService.
func NewCircuitBuildService(rr repository.RelayRepository, cr repository.CircuitRepository, d Dialer, crypto CryptoService) CircuitBuildService {
	return &circuitBuildServiceImpl{rr: rr, cr: cr, dialer: d, crypto: crypto}
}

func (b *circuitBuildServiceImpl) Build(hops int, exit value_object.RelayID) (*entity.Circuit, error) {
	if hops <= 0 {
		hops = 3
	}
	relays, err := b.rr.AllOnline()
	if err != nil {
		return nil, fmt.Errorf("list relays: %w", err)
	}
	if len(relays) < hops {
		return nil, fmt.Errorf("not enough online relays (need %d)", hops)
	}

	selected, err := b.selectRelays(relays, hops, exit)
	if err != nil {
		return nil, err
	}

	relayIDs := make([]value_object.RelayID, hops)
	keys := make([]value_object.AESKey, hops)
	nonces := make([]value_object.Nonce, hops)

	conn, err := b.dialer.Dial(selected[0].Endpoint().String())
	if err != nil {
		return nil, domainSvc.NewCoreError(domainSvc.KindConnectionFail, "dial entry relay").WithCause(err)
	}

	cidConn := entity.NewConnection(conn)
	cid, err := cidConn.Bind(func(*value_object.Cell) {})
	if err != nil {
		return nil, domainSvc.NewCoreError(domainSvc.KindConnectionFail, "allocate circuit id").WithCause(err)
	}

	for i, r := range selected {
		relayIDs[i] = r.ID()

		priv, pub, err := b.crypto.X25519Generate()
		if err != nil {
			return nil, fmt.Errorf("generate handshake key: %w", err)
		}

		cmd := value_object.CmdCreate
		if i > 0 {
			cmd = value_object.CmdExtend
		}
		cell := value_object.Cell{CircuitID: cid, Cmd: cmd, Payload: pub}
		if err := b.dialer.SendCell(conn, cell); err != nil {
			return nil, domainSvc.NewCoreError(domainSvc.KindHandshakeFail, fmt.Sprintf("send handshake hop %d", i)).WithCause(err)
		}

		reply, err := b.dialer.WaitCreated(conn)
		if err != nil {
			return nil, domainSvc.NewCoreError(domainSvc.KindHandshakeFail, fmt.Sprintf("await handshake hop %d", i)).WithCause(err)
		}
		created, err := value_object.DecodeCreatedPayload(reply)
		if err != nil {
			return nil, domainSvc.NewCoreError(domainSvc.KindHandshakeFail, fmt.Sprintf("decode handshake hop %d", i)).WithCause(err)
		}

		shared, err := b.crypto.X25519Shared(priv, created.RelayPub[:])
		if err != nil {
			return nil, domainSvc.NewCoreError(domainSvc.KindHandshakeFail, fmt.Sprintf("derive shared secret hop %d", i)).WithCause(err)
		}
		key, nonce, err := b.crypto.DeriveKeyNonce(shared)
		if err != nil {
			return nil, domainSvc.NewCoreError(domainSvc.KindHandshakeFail, fmt.Sprintf("derive key/nonce hop %d", i)).WithCause(err)
		}
		keys[i] = key
		nonces[i] = nonce
	}

	// Ephemeral legacy RSA key, stored on the circuit (Circuit.RSAPrivate).
	// The handshake above always uses X25519; no code path here falls back
	// to an RSA-OAEP CREATE.
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate legacy rsa key: %w", err)
	}

	circuit, err := entity.NewCircuit(cid, relayIDs, keys, nonces, priv)
	if err != nil {
		return nil, err
	}
	circuit.SetConn(0, conn)
	circuit.SetStateBuilding()
	circuit.SetStateOpen()

	if err := b.cr.Save(circuit); err != nil {
		return nil, fmt.Errorf("save circuit: %w", err)
	}

	return circuit, nil
}

// selectRelays picks hops distinct relays uniformly at random via
// secureShuffle, then forces the relay identified by exit (if any) into the
// last position. Among shuffles that satisfy the exit constraint, it
// prefers one with no two same-family relays in the path; family-free
// selection is best-effort, not guaranteed.
func (b *circuitBuildServiceImpl) selectRelays(relays []*entity.Relay, hops int, exit value_object.RelayID) ([]*entity.Relay, error) {
	const maxAttempts = 8
	var best []*entity.Relay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		selected, err := b.tryShuffleSelect(relays, hops, exit)
		if err != nil {
			return nil, err
		}
		if best == nil {
			best = selected
		}
		if !sharesFamily(selected) {
			return selected, nil
		}
	}
	return best, nil
}

func (b *circuitBuildServiceImpl) tryShuffleSelect(relays []*entity.Relay, hops int, exit value_object.RelayID) ([]*entity.Relay, error) {
	pool := append([]*entity.Relay(nil), relays...)
	secureShuffle(pool)
	selected := pool[:hops]

	var zero value_object.RelayID
	if exit == zero {
		return selected, nil
	}

	for i, r := range selected {
		if r.ID().Equal(exit) {
			selected[i], selected[hops-1] = selected[hops-1], selected[i]
			return selected, nil
		}
	}
	for _, r := range pool[hops:] {
		if r.ID().Equal(exit) {
			selected[hops-1] = r
			return selected, nil
		}
	}
	return nil, fmt.Errorf("exit relay %s not found among online relays", exit.String())
}

// sharesFamily reports whether any two relays in path are declared family
// of one another.
func sharesFamily(path []*entity.Relay) bool {
	for i := range path {
		for j := i + 1; j < len(path); j++ {
			if path[i].SharesFamily(path[j].ID()) || path[j].SharesFamily(path[i].ID()) {
				return true
			}
		}
	}
	return false
}

// secureShuffle performs an unbiased Fisher-Yates shuffle using the shared
// RandomSource, never taking a modulus of a raw random value.
func secureShuffle[T any](xs []T) {
	domainSvc.NewRandomSource().Shuffle(len(xs), func(i, j int) {
		xs[i], xs[j] = xs[j], xs[i]
	})
}
