// This file implements the event decoder. It is grounded on the
// decode-then-route shape of node/sc/main_event_handler.go, generalized from
// that file's per-kind handler methods into two tagged record variants in
// place of dynamically typed event maps.
package vrfabi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// DecodeError is fatal to the offending log only (the decoder
// returns it so the caller can alert and skip, without aborting the scan.
type DecodeError struct {
	TxHash string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("vrfabi: decode log %s: %v", e.TxHash, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder matches topic-0 against the precomputed event topics and decodes
// matching logs into RequestEvent / FulfilledEvent. Logs matching neither
// topic are discarded at the type boundary, never surfaced as an error.
type Decoder struct {
	coordinator *CoordinatorABI
}

// NewDecoder builds a Decoder bound to the given coordinator ABI.
func NewDecoder(c *CoordinatorABI) *Decoder {
	return &Decoder{coordinator: c}
}

// Topics returns the [2]Hash topic filter to pass to GetLogs/SubscribeLogs:
// [[requestedTopic, fulfilledTopic]].
func (d *Decoder) Topics() [2][32]byte {
	return [2][32]byte{d.coordinator.RequestedTopic, d.coordinator.FulfilledTopic}
}

// Decode inspects log's topic-0. It returns exactly one of (*RequestEvent,
// nil, nil), (nil, *FulfilledEvent, nil), or (nil, nil, nil) when the topic
// matches neither event — that case is not an error, the log is simply not
// ours. A topic match with a failed ABI-decode is a *DecodeError: fatal to
// that one log and must be surfaced upward, not silently dropped.
func (d *Decoder) Decode(log ethtypes.Log) (*RequestEvent, *FulfilledEvent, error) {
	if len(log.Topics) == 0 {
		return nil, nil, nil
	}
	switch log.Topics[0] {
	case d.coordinator.RequestedTopic:
		req, err := d.decodeRequested(log)
		if err != nil {
			return nil, nil, &DecodeError{TxHash: log.TxHash.Hex(), Err: err}
		}
		return req, nil, nil
	case d.coordinator.FulfilledTopic:
		ful, err := d.decodeFulfilled(log)
		if err != nil {
			return nil, nil, &DecodeError{TxHash: log.TxHash.Hex(), Err: err}
		}
		return nil, ful, nil
	default:
		return nil, nil, nil
	}
}

func (d *Decoder) decodeRequested(log ethtypes.Log) (*RequestEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("missing indexed requestId topic")
	}
	requestID := new(big.Int).SetBytes(log.Topics[1].Bytes())

	var out struct {
		SubID            uint64 `abi:"subId"`
		CallbackGasLimit uint32
		NumWords         uint32
		Sender           common.Address
	}
	if err := d.coordinator.ABI.UnpackIntoInterface(&out, eventRequested, log.Data); err != nil {
		return nil, err
	}

	return &RequestEvent{
		RequestID:        requestID,
		SubID:            out.SubID,
		CallbackGasLimit: out.CallbackGasLimit,
		NumWords:         out.NumWords,
		Sender:           out.Sender,
		BlockNumber:      log.BlockNumber,
	}, nil
}

func (d *Decoder) decodeFulfilled(log ethtypes.Log) (*FulfilledEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("missing indexed requestId topic")
	}
	requestID := new(big.Int).SetBytes(log.Topics[1].Bytes())
	return &FulfilledEvent{
		RequestID:   requestID,
		BlockNumber: log.BlockNumber,
	}, nil
}
