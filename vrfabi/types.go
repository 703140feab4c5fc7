// Package vrfabi computes the coordinator contract's topic-0 values from its
// ABI at startup ("the implementation computes them from the ABI at
// startup, not hard-coded") and decodes raw logs into the two event types the
// engine cares about.
package vrfabi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RequestEvent is the decoded RandomWordsRequested log. It is
// immutable once constructed.
type RequestEvent struct {
	RequestID        *big.Int
	SubID            uint64
	CallbackGasLimit uint32
	NumWords         uint32
	Sender           common.Address
	BlockNumber      uint64
}

// FulfilledEvent is the decoded RandomWordsFulfilled log. Only the
// request id and block number matter to the engine's dedup bookkeeping.
type FulfilledEvent struct {
	RequestID   *big.Int
	BlockNumber uint64
}

// RequestCommitment is the exact 5-tuple the coordinator demands as the third
// argument to fulfillRandomWords. It must be copied verbatim from a
// RequestEvent; reordering or reinterpreting a field voids the contract call.
type RequestCommitment struct {
	BlockNum         uint64
	SubID            uint64 `abi:"subId"`
	CallbackGasLimit uint32
	NumWords         uint32
	Sender           common.Address
}

// RequestCommitmentV25 is the v2.5 ABI variant's commitment tuple, which adds
// a trailing nativePayment flag.
type RequestCommitmentV25 struct {
	BlockNum         uint64
	SubID            uint64 `abi:"subId"`
	CallbackGasLimit uint32
	NumWords         uint32
	Sender           common.Address
	NativePayment    bool
}

// CommitmentFrom builds the v2 RequestCommitment the coordinator expects
// for r.
func CommitmentFrom(r *RequestEvent) RequestCommitment {
	return RequestCommitment{
		BlockNum:         r.BlockNumber,
		SubID:            r.SubID,
		CallbackGasLimit: r.CallbackGasLimit,
		NumWords:         r.NumWords,
		Sender:           r.Sender,
	}
}

// CommitmentFromV25 builds the v2.5 RequestCommitmentV25 the coordinator
// expects for r. NativePayment is always false: this engine never funds a
// subscription with native coin, only with the configured payment token.
func CommitmentFromV25(r *RequestEvent) RequestCommitmentV25 {
	return RequestCommitmentV25{
		BlockNum:         r.BlockNumber,
		SubID:            r.SubID,
		CallbackGasLimit: r.CallbackGasLimit,
		NumWords:         r.NumWords,
		Sender:           r.Sender,
		NativePayment:    false,
	}
}

// BuildCommitment selects the v2 or v2.5 commitment shape for r based on
// v25, so callers never have to special-case the ABI variant themselves.
func BuildCommitment(r *RequestEvent, v25 bool) interface{} {
	if v25 {
		return CommitmentFromV25(r)
	}
	return CommitmentFrom(r)
}
