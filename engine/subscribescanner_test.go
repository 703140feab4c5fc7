package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/vrf-fulfiller/alertsink"
	"github.com/klaytn/vrf-fulfiller/vrf"
	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

type fakeSubscription struct {
	errCh chan error
}

func (f *fakeSubscription) Unsubscribe() {}
func (f *fakeSubscription) Err() <-chan error { return f.errCh }

type fakeChainSubscriber struct {
	fakeChainReader
	sub *fakeSubscription
}

func (f *fakeChainSubscriber) SubscribeLogs(ctx context.Context, address common.Address, topics [2][32]byte, ch chan<- types.Log) (ethereum.Subscription, error) {
	return f.sub, nil
}

func TestSubscribeScannerBackfillSubmitsPending(t *testing.T) {
	hash1 := common.HexToHash("0x11")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(11), BlockNumber: 10},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	chain := &fakeChainSubscriber{fakeChainReader: fakeChainReader{head: 300, logs: []types.Log{requestedLog(hash1)}}}
	pool := &collectingPool{}
	scanner := NewSubscribeScanner(chain, decoder, vrf.NewFulfilledIDs(0), pool, alertsink.New(""), common.Address{}, [2][32]byte{}, 0, false, nil)

	require.NoError(t, scanner.backfill(context.Background()))
	require.Len(t, pool.submitted, 1)
}

func TestSubscribeScannerRouteRecordsFulfilled(t *testing.T) {
	hash1 := common.HexToHash("0x12")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{
			hash1: {RequestID: big.NewInt(12), BlockNumber: 10},
		},
	}
	dedup := vrf.NewFulfilledIDs(0)
	pool := &collectingPool{}
	scanner := NewSubscribeScanner(&fakeChainSubscriber{}, decoder, dedup, pool, alertsink.New(""), common.Address{}, [2][32]byte{}, 0, false, nil)

	scanner.route(fulfilledLog(hash1))
	require.True(t, dedup.Contains(big.NewInt(12)))
	require.Empty(t, pool.submitted)
}

func TestSubscribeScannerRouteDispatchesRequested(t *testing.T) {
	hash1 := common.HexToHash("0x13")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(13), BlockNumber: 10},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	dedup := vrf.NewFulfilledIDs(0)
	pool := &collectingPool{}
	scanner := NewSubscribeScanner(&fakeChainSubscriber{}, decoder, dedup, pool, alertsink.New(""), common.Address{}, [2][32]byte{}, 0, false, nil)

	log := requestedLog(hash1)
	log.BlockNumber = 10
	scanner.route(log)
	require.Len(t, pool.submitted, 1)
}
