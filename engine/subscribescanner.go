package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/klaytn/vrf-fulfiller/alertsink"
	"github.com/klaytn/vrf-fulfiller/chain"
	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

// backfillLookback is the mandatory catch-up window executed before every
// live subscription: get_logs(chain_head - 200, chain_head).
const backfillLookback = 200

// reconnectBackoff is the pause before retrying after any subscribe-path
// error.
const reconnectBackoff = 2 * time.Second

// ChainSubscriber is the subset of chain.Client the subscribe scanner
// needs, in addition to ChainReader's backfill calls.
type ChainSubscriber interface {
	ChainReader
	SubscribeLogs(ctx context.Context, address common.Address, topics [2][32]byte, ch chan<- types.Log) (ethereum.Subscription, error)
}

// SubscribeScanner implements the backfill-then-live WebSocket scan path,
// grounded on the select-loop-over-event.Subscription shape of
// node/sc/mainbridge.go's update loop.
type SubscribeScanner struct {
	chain            ChainSubscriber
	decoder          Decoder
	dedup            Dedup
	pool             Dispatch
	alerts           *alertsink.Sink
	address          common.Address
	topics           [2][32]byte
	delayBlocks      uint64
	v25              bool
	suppressPatterns []string
}

// NewSubscribeScanner builds a SubscribeScanner. v25 selects the v2.5
// commitment tuple shape, and must match the ABI variant decoder was built
// from; suppressPatterns adds operator-configured substrings (config key
// SUPPRESS_PATTERNS) to the known-transient errors this loop logs instead
// of alerting on.
func NewSubscribeScanner(
	chainClient ChainSubscriber,
	decoder Decoder,
	dedup Dedup,
	pool Dispatch,
	alerts *alertsink.Sink,
	address common.Address,
	topics [2][32]byte,
	delayBlocks uint64,
	v25 bool,
	suppressPatterns []string,
) *SubscribeScanner {
	return &SubscribeScanner{
		chain:            chainClient,
		decoder:          decoder,
		dedup:            dedup,
		pool:             pool,
		alerts:           alerts,
		address:          address,
		topics:           topics,
		delayBlocks:      delayBlocks,
		v25:              v25,
		suppressPatterns: suppressPatterns,
	}
}

// Run backfills and subscribes in a loop, reconnecting after any error
// until ctx is cancelled.
func (s *SubscribeScanner) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.runOnce(ctx); err != nil {
			if !chain.IsSuppressed(err, s.suppressPatterns) {
				s.alerts.Send(ctx, "subscribe scanner error", map[string]interface{}{"err": err.Error()})
			} else {
				logger.Debug("subscribe scanner suppressed error", "err", err.Error())
			}
			sleepOrDone(ctx, reconnectBackoff)
		}
	}
}

func (s *SubscribeScanner) runOnce(ctx context.Context) error {
	if err := s.backfill(ctx); err != nil {
		return err
	}
	return s.live(ctx)
}

// backfill runs the mandatory catch-up scan before subscribing live.
func (s *SubscribeScanner) backfill(ctx context.Context) error {
	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	var from uint64
	if head > backfillLookback {
		from = head - backfillLookback
	}
	logs, err := s.chain.GetLogs(ctx, from, head, s.address, s.topics)
	if err != nil {
		return err
	}
	pending, err := decodeAndFilter(s.decoder, s.dedup, logs, head, s.delayBlocks, s.v25)
	if err != nil {
		s.alerts.Send(ctx, "decode error", map[string]interface{}{"err": err.Error()})
	}
	for _, p := range pending {
		s.pool.Submit(p)
	}
	return nil
}

// live subscribes and routes incoming logs one at a time, exiting on any
// subscription error for the caller to retry.
func (s *SubscribeScanner) live(ctx context.Context) error {
	ch := make(chan types.Log, 256)
	sub, err := s.chain.SubscribeLogs(ctx, s.address, s.topics, ch)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				return errors.New("vrf: log subscription closed")
			}
			return err
		case l := <-ch:
			s.route(l)
		}
	}
}

func (s *SubscribeScanner) route(l types.Log) {
	req, ful, err := s.decoder.Decode(l)
	if err != nil {
		s.alerts.Send(context.Background(), "decode error", map[string]interface{}{"err": err.Error()})
		return
	}
	switch {
	case req != nil:
		if s.delayBlocks > 0 {
			if l.BlockNumber < s.delayBlocks || req.BlockNumber > l.BlockNumber-s.delayBlocks {
				return
			}
		}
		if s.dedup.Contains(req.RequestID) {
			return
		}
		if !s.dedup.InsertIfAbsent(req.RequestID) {
			return
		}
		s.pool.Submit(Task{
			Event:       *req,
			Commitment:  vrfabi.BuildCommitment(req, s.v25),
			DelayBlocks: s.delayBlocks,
		})
	case ful != nil:
		s.dedup.Insert(ful.RequestID)
	}
}
