// Package engine implements the scanning, dispatch and supervision
// components of the fulfillment service. WorkerPool is
// grounded on work.CpuAgent's atomic start/stop flag and channel-driven
// dispatch (work/agent.go), generalized from a single mining agent to a
// bounded pool of concurrent fulfill-and-confirm workers.
package engine

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethlog "github.com/ethereum/go-ethereum/log"

	"github.com/klaytn/vrf-fulfiller/alertsink"
	"github.com/klaytn/vrf-fulfiller/vrf"
	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

var logger = ethlog.New("module", "engine")

// workerCount is the bounded concurrency of the fulfillment pool.
const workerCount = 5

// receiptPollInterval is how often WaitForReceipt is polled.
const receiptPollInterval = 500 * time.Millisecond

// uint256Ceiling bounds the uniform random draw used as on-chain
// randomness ("draw randomness = uniform_u256").
var uint256Ceiling = new(big.Int).Lsh(big.NewInt(1), 256)

// NonceLedger is the subset of vrf.NonceLedger the worker pool needs.
type NonceLedger interface {
	TakeNext() uint64
	Release()
	IdleForRebase() bool
	MaybeRebase(ctx context.Context, source vrf.ChainNonceSource) (bool, error)
}

// NonceSource fetches the chain-reported transaction count for a rebase.
// It is an alias of vrf.ChainNonceSource, satisfied by a
// *chain.AddressNonceSource (from chain.Client.BoundNonceSource) or a test
// double.
type NonceSource = vrf.ChainNonceSource

// Builder builds and signs a fulfillRandomWords transaction.
type Builder interface {
	BuildFulfill(nonce uint64, maxGasGwei float64, requestID, randomness *big.Int, commitment interface{}) (*types.Transaction, error)
}

// Dispatcher broadcasts a signed transaction and returns its hash.
type Dispatcher interface {
	Broadcast(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}

// ReceiptWaiter blocks until a transaction's receipt is available.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash common.Hash, pollEvery time.Duration) (*types.Receipt, error)
}

// Task is a unit of work submitted to the pool: a decoded request event
// plus the delay_blocks this instance is configured with, needed only to
// decide whether a backup-mode fulfillment is alert-worthy.
type Task struct {
	Event       vrfabi.RequestEvent
	Commitment  interface{}
	DelayBlocks uint64
}

// WorkerPool runs workerCount concurrent fulfill-and-confirm workers
// reading from a bounded channel.
type WorkerPool struct {
	ledger      NonceLedger
	nonceSource NonceSource
	builder     Builder
	dispatcher  Dispatcher
	receipts    ReceiptWaiter
	alerts      *alertsink.Sink
	fulfilled   *alertsink.Sink
	maxGasGwei  float64

	tasks   chan Task
	wg      sync.WaitGroup
	running int32
}

// NewWorkerPool constructs a WorkerPool. Call Start to launch its workers.
func NewWorkerPool(
	ledger NonceLedger,
	nonceSource NonceSource,
	builder Builder,
	dispatcher Dispatcher,
	receipts ReceiptWaiter,
	alerts, fulfilled *alertsink.Sink,
	maxGasGwei float64,
) *WorkerPool {
	return &WorkerPool{
		ledger:      ledger,
		nonceSource: nonceSource,
		builder:     builder,
		dispatcher:  dispatcher,
		receipts:    receipts,
		alerts:      alerts,
		fulfilled:   fulfilled,
		maxGasGwei:  maxGasGwei,
		tasks:       make(chan Task, workerCount*4),
	}
}

// Start launches workerCount worker goroutines. Calling Start twice is a
// no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop closes the task channel and waits for in-flight workers to drain.
// Worker tasks are not cancelled mid-flight.
func (p *WorkerPool) Stop() {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// Submit hands a decoded request to the pool. It blocks if every worker is
// busy and the internal queue is full, applying natural backpressure to the
// scanner.
func (p *WorkerPool) Submit(t Task) {
	p.tasks <- t
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.handle(ctx, task)
	}
}

func (p *WorkerPool) handle(ctx context.Context, task Task) {
	if p.ledger.IdleForRebase() {
		if _, err := p.ledger.MaybeRebase(ctx, p.nonceSource); err != nil {
			logger.Warn("nonce rebase failed", "err", err)
		}
	}

	if task.DelayBlocks > 0 {
		p.alerts.Send(ctx, "backup instance is fulfilling a request", map[string]interface{}{
			"request_id":   task.Event.RequestID.String(),
			"delay_blocks": task.DelayBlocks,
		})
	}

	nonce := p.ledger.TakeNext()
	defer p.ledger.Release()

	report := alertsink.FulfillmentReport{
		RequestID:   task.Event.RequestID.String(),
		DelayBlocks: task.DelayBlocks,
	}

	randomness, err := rand.Int(rand.Reader, uint256Ceiling)
	if err != nil {
		report.Err = err.Error()
		p.fulfilled.SendFulfillment(ctx, report)
		return
	}

	tx, err := p.builder.BuildFulfill(nonce, p.maxGasGwei, task.Event.RequestID, randomness, task.Commitment)
	if err != nil {
		report.Err = err.Error()
		p.fulfilled.SendFulfillment(ctx, report)
		return
	}

	txHash, err := p.dispatcher.Broadcast(ctx, tx)
	if err != nil {
		report.Err = err.Error()
		p.fulfilled.SendFulfillment(ctx, report)
		return
	}
	report.TxHash = txHash.Hex()

	receipt, err := p.receipts.WaitForReceipt(ctx, txHash, receiptPollInterval)
	if err != nil {
		report.Err = err.Error()
		p.fulfilled.SendFulfillment(ctx, report)
		return
	}

	report.Success = receipt.Status == types.ReceiptStatusSuccessful
	if !report.Success {
		report.Err = "transaction reverted"
	}
	report.BlockGap = int64(receipt.BlockNumber.Uint64()) - int64(task.Event.BlockNumber)
	p.fulfilled.SendFulfillment(ctx, report)
}
