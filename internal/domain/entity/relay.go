package entity

import (
	"sync/atomic"
	"time"

	"ikedadada/go-ptor/internal/domain/value_object"
)

type RelayStatus uint8

const (
	Offline RelayStatus = iota
	Online
)

// Relay は Aggregate Root
type Relay struct {
	id         value_object.RelayID
	endpoint   value_object.Endpoint
	pubKey     value_object.RSAPubKey
	x25519Pub  [32]byte
	exitPolicy value_object.ExitPolicy
	family     map[value_object.RelayID]struct{}

	status  atomic.Uint32 // RelayStatus
	success atomic.Uint64 // セル転送成功数
	failure atomic.Uint64 // セル転送失敗数
	updated atomic.Int64  // UnixNano
}

// コンストラクタ
func NewRelay(id value_object.RelayID, ep value_object.Endpoint, pk value_object.RSAPubKey) *Relay {
	r := &Relay{
		id:       id,
		endpoint: ep,
		pubKey:   pk,
		family:   make(map[value_object.RelayID]struct{}),
	}
	r.status.Store(uint32(Offline))
	return r
}

// 不変な値オブジェクト取り出し
func (r *Relay) ID() value_object.RelayID        { return r.id }
func (r *Relay) Endpoint() value_object.Endpoint { return r.endpoint }
func (r *Relay) PubKey() value_object.RSAPubKey  { return r.pubKey }
func (r *Relay) X25519PubKey() [32]byte          { return r.x25519Pub }
func (r *Relay) SetX25519PubKey(pub [32]byte)    { r.x25519Pub = pub }

// ExitPolicy returns the relay's published exit policy.
func (r *Relay) ExitPolicy() value_object.ExitPolicy { return r.exitPolicy }

// SetExitPolicy replaces the relay's published exit policy.
func (r *Relay) SetExitPolicy(p value_object.ExitPolicy) { r.exitPolicy = p }

// CanExitTo reports whether this relay's exit policy permits a connection
// to host:port, as consulted when this relay is chosen as the last hop.
func (r *Relay) CanExitTo(host string, port uint16) bool {
	return r.exitPolicy.Allows(host, port)
}

// AddFamilyMember records another relay id as sharing an operator with
// this one, so path selection can avoid picking both in the same circuit.
func (r *Relay) AddFamilyMember(id value_object.RelayID) {
	if r.family == nil {
		r.family = make(map[value_object.RelayID]struct{})
	}
	r.family[id] = struct{}{}
}

// SharesFamily reports whether id was declared as family of this relay.
func (r *Relay) SharesFamily(id value_object.RelayID) bool {
	_, ok := r.family[id]
	return ok
}

// 状態系
func (r *Relay) Status() RelayStatus { return RelayStatus(r.status.Load()) }
func (r *Relay) LastUpdated() time.Time {
	return time.Unix(0, r.updated.Load()).UTC()
}

// 状態変更
func (r *Relay) SetOnline() {
	r.status.Store(uint32(Online))
	r.updated.Store(time.Now().UTC().UnixNano())
}
func (r *Relay) SetOffline() {
	r.status.Store(uint32(Offline))
	r.updated.Store(time.Now().UTC().UnixNano())
}

// メトリクス
func (r *Relay) IncSuccess() { r.success.Add(1) }
func (r *Relay) IncFailure() { r.failure.Add(1) }

func (r *Relay) Stats() (succ, fail uint64) {
	return r.success.Load(), r.failure.Load()
}
