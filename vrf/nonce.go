package vrf

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

// idleRefreshSeconds is the minimum quiet period before a rebase is allowed.
const idleRefreshSeconds = 4 * time.Second

// rebaseCounter reports every successful resync against the chain-reported
// nonce to an observability sink, grounded on
// node/sc/bridge_tx_pool.go's registered-counter style.
var rebaseCounter = metrics.NewRegisteredCounter("vrf/nonce/rebase", nil)

// ChainNonceSource fetches the chain-reported transaction count, used only
// by rebase.
type ChainNonceSource interface {
	GetTransactionCount(ctx context.Context) (uint64, error)
}

// NonceLedger is the single mutable nonce counter for one fulfiller
// address: the nonce is advanced locally on every signed tx and only
// resynced from the chain when provably safe to do so.
type NonceLedger struct {
	mu sync.Mutex

	nonce             uint64
	outstanding       int64
	lastFulfillAction time.Time
}

// NewNonceLedger seeds the ledger with an initial nonce, typically fetched
// from the chain at startup.
func NewNonceLedger(initial uint64) *NonceLedger {
	return &NonceLedger{nonce: initial, lastFulfillAction: time.Time{}}
}

// TakeNext returns the current nonce and post-increments it, and marks one
// fulfillment as outstanding. It is the sole writer on the happy path and
// must stay linearizable across concurrent workers.
func (l *NonceLedger) TakeNext() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.nonce
	l.nonce++
	l.outstanding++
	l.lastFulfillAction = time.Now()
	return n
}

// Release marks one outstanding fulfillment as finished, success or not.
func (l *NonceLedger) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outstanding--
	l.lastFulfillAction = time.Now()
}

// IdleForRebase reports whether it is safe to rebase: zero outstanding
// fulfillments and at least idleRefreshSeconds since the last action.
func (l *NonceLedger) IdleForRebase() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding == 0 && time.Since(l.lastFulfillAction) >= idleRefreshSeconds
}

// Rebase resyncs the ledger to the chain-reported nonce. The caller must
// have already confirmed IdleForRebase: rebase is never invoked while
// outstanding fulfillments remain in flight.
func (l *NonceLedger) Rebase(chainNonce uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonce = chainNonce
	rebaseCounter.Inc(1)
}

// MaybeRebase rebases from source only if the ledger is currently idle,
// returning whether it did.
func (l *NonceLedger) MaybeRebase(ctx context.Context, source ChainNonceSource) (bool, error) {
	if !l.IdleForRebase() {
		return false, nil
	}
	chainNonce, err := source.GetTransactionCount(ctx)
	if err != nil {
		return false, err
	}
	// Re-check idleness after the network round trip: another worker may
	// have taken a nonce while we were waiting on the RPC call.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.outstanding != 0 || time.Since(l.lastFulfillAction) < idleRefreshSeconds {
		return false, nil
	}
	l.nonce = chainNonce
	rebaseCounter.Inc(1)
	return true, nil
}

// Outstanding returns the current outstanding-fulfillment count, for tests
// and metrics.
func (l *NonceLedger) Outstanding() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding
}
