package vrf

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var logger = ethlog.New("module", "vrf")

// Reports broadcast outcomes to an observability sink, grounded on
// node/sc/bridge_tx_pool.go's registered-counter style.
var (
	broadcastSubmittedCounter = metrics.NewRegisteredCounter("vrf/dispatcher/submitted", nil)
	broadcastAcceptedCounter  = metrics.NewRegisteredCounter("vrf/dispatcher/accepted", nil)
	broadcastTimeoutCounter   = metrics.NewRegisteredCounter("vrf/dispatcher/timeout", nil)
)

// sendTimeout bounds how long Dispatcher waits for the broadcast round to
// settle before returning; slower endpoints are simply left to finish on
// their own time, they don't block the caller.
const sendTimeout = 500 * time.Millisecond

// Sender is the minimal chain transport surface the dispatcher needs: one
// endpoint's ability to broadcast a raw signed transaction.
type Sender interface {
	Endpoint() string
	SendRawTransaction(ctx context.Context, signed *types.Transaction) error
}

// Dispatcher fans one already-signed transaction out to every configured
// endpoint concurrently, racing for the first acceptance instead of relying
// on a single endpoint's liveness.
type Dispatcher struct {
	senders []Sender
}

// NewDispatcher builds a Dispatcher broadcasting to every given sender.
func NewDispatcher(senders []Sender) *Dispatcher {
	return &Dispatcher{senders: senders}
}

// Broadcast sends the already-signed tx to every endpoint concurrently,
// waiting up to sendTimeout for the round to settle. It always returns the
// transaction's canonical hash, even if some (or all) endpoints are still
// in flight when the timeout elapses. It returns an error (the first
// failure) only when no endpoint accepted the transaction and at least one
// endpoint failed within the window; if no send completes before the
// timeout, the error is nil.
func (d *Dispatcher) Broadcast(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	hash := tx.Hash()
	broadcastSubmittedCounter.Inc(int64(len(d.senders)))

	type result struct {
		endpoint string
		err      error
	}
	results := make(chan result, len(d.senders))

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range d.senders {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.SendRawTransaction(sendCtx, tx)
			if err != nil && sendCtx.Err() != nil {
				// Cut off by the send window: a timeout, not a completed send.
				return
			}
			select {
			case results <- result{endpoint: s.Endpoint(), err: err}:
			case <-sendCtx.Done():
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		accepted   int
		done       int
		firstError error
	)
	deadline := time.After(sendTimeout)
collect:
	for {
		select {
		case r, ok := <-results:
			if !ok {
				break collect
			}
			done++
			if r.err == nil {
				accepted++
			} else if firstError == nil {
				firstError = r.err
			}
		case <-deadline:
			break collect
		}
	}

	logger.Info("multisend broadcast", "hash", hash.Hex(), "total", len(d.senders), "done", done, "accepted", accepted)
	broadcastAcceptedCounter.Inc(int64(accepted))

	if accepted == 0 && done > 0 {
		return hash, firstError
	}
	if accepted == 0 && done == 0 {
		// Nothing completed before the timeout; the slower sends may still
		// land. The caller awaits the receipt to observe acceptance, so the
		// hash alone is not an error here.
		broadcastTimeoutCounter.Inc(1)
		return hash, nil
	}
	return hash, nil
}
