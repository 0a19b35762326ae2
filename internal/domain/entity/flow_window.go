package entity

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	domainSvc "ikedadada/go-ptor/internal/domain/service"
)

// DefaultWindowSize is the number of in-flight DATA cells a stream may have
// unacknowledged before FlowWindow.Acquire blocks, mirroring a Tor circuit's
// SENDME window. MaxWindow bounds how far a run of SENDME credits may push
// the window above that starting capacity; SendmeIncrement is the credit a
// single SENDME cell grants.
const (
	DefaultWindowSize = 1000
	MaxWindow         = DefaultWindowSize
	SendmeIncrement   = 100
)

// FlowWindow gates outbound DATA cells on a stream so a slow or silent peer
// can't be handed an unbounded amount of unacknowledged data. Each sent cell
// acquires one unit; each SENDME received from the peer releases a batch.
type FlowWindow struct {
	sem *semaphore.Weighted

	mu        sync.Mutex
	available int64 // credits not currently held by an in-flight Acquire
}

// NewFlowWindow creates a window that starts with size credits for in-flight
// cells. The underlying semaphore is sized to the larger of size and
// MaxWindow, with the difference held back, so SENDME releases can raise the
// credit up to MaxWindow.
func NewFlowWindow(size int64) *FlowWindow {
	capacity := int64(MaxWindow)
	if size > capacity {
		capacity = size
	}
	sem := semaphore.NewWeighted(capacity)
	sem.TryAcquire(capacity - size)
	return &FlowWindow{sem: sem, available: size}
}

// Acquire blocks until the window has room for one more in-flight cell.
func (w *FlowWindow) Acquire(ctx context.Context) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	w.mu.Lock()
	w.available--
	w.mu.Unlock()
	return nil
}

// Release credits n units back to the window, as a SENDME does. A release
// that would push the window's outstanding credit above MaxWindow is a
// protocol violation rather than applied: the semaphore's real limit was
// fixed at construction, so an unchecked Release would otherwise let a
// malicious or buggy peer hand out more in-flight capacity than the circuit
// was built with.
func (w *FlowWindow) Release(n int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.available+n > MaxWindow {
		return domainSvc.NewCoreError(domainSvc.KindProtocolViolation, "sendme increment exceeds window maximum")
	}
	w.available += n
	w.sem.Release(n)
	return nil
}
