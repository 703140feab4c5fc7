package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/klaytn/vrf-fulfiller/alertsink"
	"github.com/klaytn/vrf-fulfiller/chain"
	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

// overlapBlocks is the sliding-window overlap that tolerates stale or
// partial log ranges served by some RPC providers.
const overlapBlocks = 50

// perQueryBlockCeiling is the per-query block span ceiling, with safety
// margin under the common 2,000-block provider limit.
const perQueryBlockCeiling = 1900

// pollBootstrapLookback is the default bootstrap window for poll mode,
// sized to fit within one query.
const pollBootstrapLookback = 1900

// catchupBootstrapLookback is the opt-in wider bootstrap window used to
// recover requests the engine may have missed across a longer outage.
// Off by default, enabled via --catchup.
const catchupBootstrapLookback = 10_000

// errorBackoff is how long the poll loop sleeps after any error before
// resuming from the same cursor.
const errorBackoff = 2 * time.Second

// ChainReader is the subset of chain.Client the poll scanner needs.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topics [2][32]byte) ([]types.Log, error)
}

// Dedup is the subset of vrf.FulfilledIDs the scanners need.
type Dedup interface {
	Contains(id *big.Int) bool
	InsertIfAbsent(id *big.Int) bool
	Insert(id *big.Int)
}

// Decoder decodes a raw log into a RequestEvent or FulfilledEvent.
type Decoder interface {
	Decode(log types.Log) (*vrfabi.RequestEvent, *vrfabi.FulfilledEvent, error)
}

// Dispatch is what a scanner hands a decoded, deduped request to.
type Dispatch interface {
	Submit(t Task)
}

// PollScanner implements the sliding-lookback-window primary scan loop:
// query a bounded block range with overlap, decode, dedup, dispatch.
type PollScanner struct {
	chain            ChainReader
	decoder          Decoder
	dedup            Dedup
	pool             Dispatch
	alerts           *alertsink.Sink
	address          common.Address
	topics           [2][32]byte
	delayBlocks      uint64
	pollDelay        time.Duration
	catchup          bool
	v25              bool
	suppressPatterns []string

	lastBlock uint64
}

// NewPollScanner builds a PollScanner. delayBlocks > 0 marks this instance
// as a backup/delay fulfiller; catchup widens the bootstrap lookback for a
// cold start after an extended outage; v25 selects the v2.5 commitment
// tuple shape, and must match the ABI variant decoder was built from;
// suppressPatterns adds operator-configured substrings (config key
// SUPPRESS_PATTERNS) to the known-transient errors this loop logs instead
// of alerting on.
func NewPollScanner(
	chainClient ChainReader,
	decoder Decoder,
	dedup Dedup,
	pool Dispatch,
	alerts *alertsink.Sink,
	address common.Address,
	topics [2][32]byte,
	delayBlocks uint64,
	pollDelay time.Duration,
	catchup bool,
	v25 bool,
	suppressPatterns []string,
) *PollScanner {
	return &PollScanner{
		chain:            chainClient,
		decoder:          decoder,
		dedup:            dedup,
		pool:             pool,
		alerts:           alerts,
		address:          address,
		topics:           topics,
		delayBlocks:      delayBlocks,
		pollDelay:        pollDelay,
		catchup:          catchup,
		v25:              v25,
		suppressPatterns: suppressPatterns,
	}
}

// effectivePollDelay applies the delay-mode backup multiplier: a backup
// instance polls at 4x the primary's interval.
func (s *PollScanner) effectivePollDelay() time.Duration {
	if s.delayBlocks > 0 {
		return s.pollDelay * 4
	}
	return s.pollDelay
}

// Run drives the scan loop until ctx is cancelled.
func (s *PollScanner) Run(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.step(ctx); err != nil {
			if !chain.IsSuppressed(err, s.suppressPatterns) {
				s.alerts.Send(ctx, "poll scanner error", map[string]interface{}{"err": err.Error()})
			} else {
				logger.Debug("poll scanner suppressed error", "err", err.Error())
			}
			sleepOrDone(ctx, errorBackoff)
			continue
		}
	}
}

func (s *PollScanner) bootstrap(ctx context.Context) error {
	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	lookback := uint64(pollBootstrapLookback)
	if s.catchup {
		lookback = catchupBootstrapLookback
	}
	if head > lookback {
		s.lastBlock = head - lookback
	} else {
		s.lastBlock = 1
	}
	return nil
}

// step executes one scan-and-dispatch iteration: check progress, query the
// windowed block range, decode and filter, submit, advance the cursor.
func (s *PollScanner) step(ctx context.Context) error {
	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	if head <= s.lastBlock {
		sleepOrDone(ctx, 2*s.effectivePollDelay())
		return nil
	}

	scanStart := uint64(1)
	if s.lastBlock > overlapBlocks {
		scanStart = s.lastBlock - overlapBlocks
	}
	scanEnd := scanStart + perQueryBlockCeiling
	if scanEnd > head {
		scanEnd = head
	}

	logs, err := s.chain.GetLogs(ctx, scanStart, scanEnd, s.address, s.topics)
	if err != nil {
		return err
	}

	pending, err := decodeAndFilter(s.decoder, s.dedup, logs, scanEnd, s.delayBlocks, s.v25)
	if err != nil {
		s.alerts.Send(ctx, "decode error", map[string]interface{}{"err": err.Error()})
	}

	for _, p := range pending {
		s.pool.Submit(p)
	}

	s.lastBlock = scanEnd
	sleepOrDone(ctx, s.effectivePollDelay())
	return nil
}

// decodeAndFilter is shared with the subscribe scanner's backfill phase:
// partition logs by topic-0, exclude ids already
// fulfilled on-chain or locally, apply the delay-mode straggler filter, and
// reserve each surviving id in dedup before returning it for dispatch.
func decodeAndFilter(decoder Decoder, dedup Dedup, logs []types.Log, scanEnd, delayBlocks uint64, v25 bool) ([]Task, error) {
	var requested []*vrfabi.RequestEvent
	chainFulfilled := map[string]bool{}

	var firstErr error
	for _, l := range logs {
		req, ful, err := decoder.Decode(l)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		switch {
		case req != nil:
			requested = append(requested, req)
		case ful != nil:
			chainFulfilled[ful.RequestID.String()] = true
			dedup.Insert(ful.RequestID)
		}
	}

	var pending []Task
	for _, r := range requested {
		if chainFulfilled[r.RequestID.String()] {
			continue
		}
		if dedup.Contains(r.RequestID) {
			continue
		}
		if delayBlocks > 0 {
			if scanEnd < delayBlocks || r.BlockNumber > scanEnd-delayBlocks {
				continue
			}
		}
		if !dedup.InsertIfAbsent(r.RequestID) {
			continue
		}
		pending = append(pending, Task{
			Event:       *r,
			Commitment:  vrfabi.BuildCommitment(r, v25),
			DelayBlocks: delayBlocks,
		})
	}
	return pending, firstErr
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
