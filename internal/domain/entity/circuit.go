package entity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"ikedadada/go-ptor/internal/domain/value_object"
)

// ---- StreamState ----------------------------------------------------------

type StreamState struct {
	ID     value_object.StreamID
	Closed bool
	Window *FlowWindow
}

// ---- Circuit --------------------------------------------------------------

type Circuit struct {
	id   value_object.CircuitID
	hops []value_object.RelayID

	status    *CircuitStatus
	isDir     bool
	window    *FlowWindow // circuit-level outbound flow-control window
	failedMu  sync.Mutex
	failed    map[string]struct{} // exit targets ("host:port") this circuit has already failed on

	keys   map[int]value_object.AESKey // per-hop AES key
	nonces map[int]value_object.Nonce  // per-hop base Nonce
	priv   *rsa.PrivateKey
	conns  []net.Conn
	strmMu sync.RWMutex
	stream map[value_object.StreamID]*StreamState

	seqMu       sync.Mutex
	beginSeq    map[int]uint64 // per-hop BEGIN/CONNECT nonce sequence (downstream)
	dataSeq     map[int]uint64 // per-hop DATA nonce sequence (downstream)
	upstreamSeq map[int]uint64 // per-hop DATA nonce sequence (upstream responses)
}

// NewCircuit builds a Circuit from its per-hop relay ids and negotiated key
// material, starting in the UNCONNECTED status with a fresh circuit-level
// flow window.
func NewCircuit(id value_object.CircuitID, relays []value_object.RelayID,
	keys []value_object.AESKey, nonces []value_object.Nonce, priv *rsa.PrivateKey) (*Circuit, error) {

	if len(relays) == 0 || len(relays) != len(keys) || len(keys) != len(nonces) {
		return nil, errors.New("hops / keys / nonces length mismatch")
	}
	if priv == nil {
		return nil, errors.New("rsa key required")
	}
	keyMap := make(map[int]value_object.AESKey, len(keys))
	ncMap := make(map[int]value_object.Nonce, len(nonces))
	for i := range keys {
		keyMap[i] = keys[i]
		ncMap[i] = nonces[i]
	}
	return &Circuit{
		id:          id,
		hops:        relays,
		status:      NewCircuitStatus(),
		window:      NewFlowWindow(DefaultWindowSize),
		failed:      make(map[string]struct{}),
		keys:        keyMap,
		nonces:      ncMap,
		priv:        priv,
		conns:       make([]net.Conn, len(relays)),
		stream:      make(map[value_object.StreamID]*StreamState),
		beginSeq:    make(map[int]uint64, len(relays)),
		dataSeq:     make(map[int]uint64, len(relays)),
		upstreamSeq: make(map[int]uint64, len(relays)),
	}, nil
}

// ---- Status delegation (C2) ------------------------------------------------

func (c *Circuit) Status() *CircuitStatus { return c.status }

func (c *Circuit) IsUnconnected() bool { return c.status.IsUnconnected() }
func (c *Circuit) IsBuilding() bool    { return c.status.IsBuilding() }
func (c *Circuit) IsConnected() bool   { return c.status.IsConnected() }
func (c *Circuit) IsDirty() bool       { return c.status.IsDirty() }
func (c *Circuit) IsDestroyed() bool   { return c.status.IsDestroyed() }

func (c *Circuit) SetStateBuilding()  { c.status.SetStateBuilding() }
func (c *Circuit) SetStateOpen()      { c.status.SetStateOpen() }
func (c *Circuit) SetStateFailed()    { c.status.SetStateFailed() }
func (c *Circuit) SetStateDestroyed() { c.status.SetStateDestroyed() }
func (c *Circuit) MarkDirty()         { c.status.MarkDirty() }

// MarkForClose flags the circuit as closing: OpenStream refuses new streams
// from this point on, and the build scheduler destroys it once its
// existing streams have drained.
func (c *Circuit) MarkForClose()          { c.status.MarkForClose() }
func (c *Circuit) IsMarkedForClose() bool { return c.status.IsMarkedForClose() }

// IsDirtyPast reports whether the circuit has been dirty longer than base.
func (c *Circuit) IsDirtyPast(base time.Duration) bool { return c.status.IsDirtyPast(base) }

func (c *Circuit) CountStreamTimeout() bool { return c.status.CountStreamTimeout() }

// MillisecondsSinceCreation and MillisecondsDirty delegate to the
// millisecond counters of the circuit's CircuitStatus.
func (c *Circuit) MillisecondsSinceCreation() int64 { return c.status.MillisecondsSinceCreation() }
func (c *Circuit) MillisecondsDirty() int64         { return c.status.MillisecondsDirty() }

// IsDirectory reports whether this is a one-hop directory-only circuit.
func (c *Circuit) IsDirectory() bool    { return c.isDir }
func (c *Circuit) SetDirectory(v bool)  { c.isDir = v }

// Window returns the circuit-level outbound flow-control window.
func (c *Circuit) Window() *FlowWindow { return c.window }

// RecordFailedExitTarget remembers that this circuit has already failed to
// reach target, so canHandleExitTo excludes it on subsequent matches.
func (c *Circuit) RecordFailedExitTarget(target string) {
	c.failedMu.Lock()
	defer c.failedMu.Unlock()
	c.failed[target] = struct{}{}
}

// HasFailedExitTarget reports whether target is in this circuit's
// failed-exit-target memo.
func (c *Circuit) HasFailedExitTarget(target string) bool {
	c.failedMu.Lock()
	defer c.failedMu.Unlock()
	_, ok := c.failed[target]
	return ok
}

// modifyNonce XORs a monotonically increasing sequence number into the low
// 8 bytes of a base nonce, deriving a unique per-cell nonce without ever
// reusing (key, nonce) under the same AES-GCM key.
func modifyNonce(base value_object.Nonce, seq uint64) value_object.Nonce {
	n := base
	for i := 0; i < 8; i++ {
		n[11-i] ^= byte(seq)
		seq >>= 8
	}
	return n
}

// ----------------------------------------------------------------------------
// 不変部

func (c *Circuit) ID() value_object.CircuitID { return c.id }
func (c *Circuit) Hops() []value_object.RelayID {
	return append([]value_object.RelayID(nil), c.hops...)
}
func (c *Circuit) HopKey(idx int) value_object.AESKey { return c.keys[idx] }

// HopBaseNonce returns the undiversified per-hop nonce negotiated at build time.
func (c *Circuit) HopBaseNonce(idx int) value_object.Nonce { return c.nonces[idx] }

// HopBeginNonce derives the next BEGIN/CONNECT-direction nonce for hop idx
// and advances that hop's sequence counter.
func (c *Circuit) HopBeginNonce(idx int) value_object.Nonce {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	seq := c.beginSeq[idx]
	c.beginSeq[idx] = seq + 1
	return modifyNonce(c.nonces[idx], seq)
}

// HopBeginNoncePeek returns what HopBeginNonce would derive next, without
// advancing the sequence counter.
func (c *Circuit) HopBeginNoncePeek(idx int) value_object.Nonce {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	return modifyNonce(c.nonces[idx], c.beginSeq[idx])
}

// HopDataNonce derives the next downstream DATA-direction nonce for hop idx.
func (c *Circuit) HopDataNonce(idx int) value_object.Nonce {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	seq := c.dataSeq[idx]
	c.dataSeq[idx] = seq + 1
	return modifyNonce(c.nonces[idx], seq)
}

// HopUpstreamDataNonce derives the next upstream (relay-to-client response)
// DATA-direction nonce for hop idx.
func (c *Circuit) HopUpstreamDataNonce(idx int) value_object.Nonce {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	seq := c.upstreamSeq[idx]
	c.upstreamSeq[idx] = seq + 1
	return modifyNonce(c.nonces[idx], seq)
}

func (c *Circuit) RSAPrivate() *rsa.PrivateKey { return c.priv }
func (c *Circuit) RSAPublic() *rsa.PublicKey {
	if c.priv == nil {
		return nil
	}
	return &c.priv.PublicKey
}

// WipeKeys zeroes all symmetric keys and forgets the RSA private key.
func (c *Circuit) WipeKeys() {
	for i := range c.keys {
		c.keys[i] = value_object.AESKey{}
	}
	for i := range c.nonces {
		c.nonces[i] = value_object.Nonce{}
	}
	c.priv = nil
}

// ----------------------------------------------------------------------------
// ストリーム管理

func (c *Circuit) OpenStream() (*StreamState, error) {
	if c.status.IsMarkedForClose() {
		return nil, errors.New("circuit is closing, no new streams accepted")
	}

	c.strmMu.Lock()
	defer c.strmMu.Unlock()

	sid := value_object.NewStreamIDAuto()
	state := &StreamState{ID: sid, Window: NewFlowWindow(DefaultWindowSize)}
	c.stream[sid] = state
	return state, nil
}

// StreamWindow returns the flow-control window for an open stream, or nil
// if the stream is unknown.
func (c *Circuit) StreamWindow(id value_object.StreamID) *FlowWindow {
	c.strmMu.RLock()
	defer c.strmMu.RUnlock()
	if st, ok := c.stream[id]; ok {
		return st.Window
	}
	return nil
}

func (c *Circuit) CloseStream(id value_object.StreamID) {
	c.strmMu.Lock()
	defer c.strmMu.Unlock()
	if st, ok := c.stream[id]; ok {
		st.Closed = true
	}
}

func (c *Circuit) ActiveStreams() []value_object.StreamID {
	c.strmMu.RLock()
	defer c.strmMu.RUnlock()
	out := make([]value_object.StreamID, 0, len(c.stream))
	for id, st := range c.stream {
		if !st.Closed {
			out = append(out, id)
		}
	}
	return out
}

// Conn returns the connection for the given hop index.
func (c *Circuit) Conn(i int) net.Conn {
	if i < len(c.conns) {
		return c.conns[i]
	}
	return nil
}

// SetConn stores the connection for a hop.
func (c *Circuit) SetConn(i int, cconn net.Conn) {
	if i < len(c.conns) {
		c.conns[i] = cconn
	}
}

// ----------------------------------------------------------------------------
// デバッグ表現

func (c *Circuit) String() string {
	return fmt.Sprintf("Circuit(%s) hops=%d streams=%d",
		c.id, len(c.hops), len(c.stream))
}
