package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/vrf-fulfiller/vrf"
	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

var (
	testRequestedTopic = common.HexToHash("0xaaaa")
	testFulfilledTopic = common.HexToHash("0xbbbb")
)

type stubDecoder struct {
	requested map[common.Hash]*vrfabi.RequestEvent
	fulfilled map[common.Hash]*vrfabi.FulfilledEvent
}

func (d *stubDecoder) Decode(log types.Log) (*vrfabi.RequestEvent, *vrfabi.FulfilledEvent, error) {
	if len(log.Topics) == 0 {
		return nil, nil, nil
	}
	if log.Topics[0] == testRequestedTopic {
		return d.requested[log.TxHash], nil, nil
	}
	if log.Topics[0] == testFulfilledTopic {
		return nil, d.fulfilled[log.TxHash], nil
	}
	return nil, nil, nil
}

func requestedLog(txHash common.Hash) types.Log {
	return types.Log{Topics: []common.Hash{testRequestedTopic}, TxHash: txHash}
}

func fulfilledLog(txHash common.Hash) types.Log {
	return types.Log{Topics: []common.Hash{testFulfilledTopic}, TxHash: txHash}
}

type collectingPool struct {
	submitted []Task
}

func (p *collectingPool) Submit(t Task) { p.submitted = append(p.submitted, t) }

func TestDecodeAndFilterExcludesChainFulfilled(t *testing.T) {
	hash1 := common.HexToHash("0x01")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(1), BlockNumber: 10},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{
			hash1: {RequestID: big.NewInt(1), BlockNumber: 11},
		},
	}
	dedup := vrf.NewFulfilledIDs(0)

	logs := []types.Log{requestedLog(hash1), fulfilledLog(hash1)}
	pending, err := decodeAndFilter(decoder, dedup, logs, 100, 0, false)
	require.NoError(t, err)
	require.Empty(t, pending)
	require.True(t, dedup.Contains(big.NewInt(1)))
}

func TestDecodeAndFilterDedupsAcrossOverlappingWindows(t *testing.T) {
	hash1 := common.HexToHash("0x02")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(2), BlockNumber: 10},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	dedup := vrf.NewFulfilledIDs(0)

	logs := []types.Log{requestedLog(hash1)}
	first, err := decodeAndFilter(decoder, dedup, logs, 100, 0, false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := decodeAndFilter(decoder, dedup, logs, 100, 0, false)
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestDecodeAndFilterBuildsV25CommitmentWhenConfigured(t *testing.T) {
	hash1 := common.HexToHash("0x03a")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(30), BlockNumber: 10},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	dedup := vrf.NewFulfilledIDs(0)

	logs := []types.Log{requestedLog(hash1)}
	pending, err := decodeAndFilter(decoder, dedup, logs, 100, 0, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	_, ok := pending[0].Commitment.(vrfabi.RequestCommitmentV25)
	require.True(t, ok, "v25 scanner must build a RequestCommitmentV25, not the v2 5-tuple")
}

func TestDecodeAndFilterAppliesDelayBlocksStragglerFilter(t *testing.T) {
	hash1 := common.HexToHash("0x03")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(3), BlockNumber: 98},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	dedup := vrf.NewFulfilledIDs(0)

	logs := []types.Log{requestedLog(hash1)}
	pending, err := decodeAndFilter(decoder, dedup, logs, 100, 5, false)
	require.NoError(t, err)
	require.Empty(t, pending, "request at block 98 is within 5 blocks of scanEnd 100, primary still has time")
}

func TestDecodeAndFilterAllowsStragglerPastDelayWindow(t *testing.T) {
	hash1 := common.HexToHash("0x04")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(4), BlockNumber: 80},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	dedup := vrf.NewFulfilledIDs(0)

	logs := []types.Log{requestedLog(hash1)}
	pending, err := decodeAndFilter(decoder, dedup, logs, 100, 5, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

type fakeChainReader struct {
	head uint64
	logs []types.Log
}

func (f *fakeChainReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChainReader) GetLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topics [2][32]byte) ([]types.Log, error) {
	return f.logs, nil
}

func TestPollScannerStepAdvancesCursorAndSubmitsPending(t *testing.T) {
	hash1 := common.HexToHash("0x05")
	decoder := &stubDecoder{
		requested: map[common.Hash]*vrfabi.RequestEvent{
			hash1: {RequestID: big.NewInt(5), BlockNumber: 50},
		},
		fulfilled: map[common.Hash]*vrfabi.FulfilledEvent{},
	}
	chain := &fakeChainReader{head: 200, logs: []types.Log{requestedLog(hash1)}}
	pool := &collectingPool{}
	scanner := NewPollScanner(chain, decoder, vrf.NewFulfilledIDs(0), pool, nil, common.Address{}, [2][32]byte{}, 0, 0, false, false, nil)
	require.NoError(t, scanner.bootstrap(context.Background()))

	err := scanner.step(context.Background())
	require.NoError(t, err)
	require.Len(t, pool.submitted, 1)
	require.EqualValues(t, 200, scanner.lastBlock)
}
