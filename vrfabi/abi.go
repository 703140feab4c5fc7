// The coordinator ABI is an embedded constant, parsed once at startup;
// every topic-0 and function selector is computed from it rather than
// hardcoded.
package vrfabi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// coordinatorABIV2 is the canonical VRF coordinator ABI.
const coordinatorABIV2 = `[
	{"type":"event","name":"RandomWordsRequested","anonymous":false,"inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"subId","type":"uint64","indexed":false},
		{"name":"callbackGasLimit","type":"uint32","indexed":false},
		{"name":"numWords","type":"uint32","indexed":false},
		{"name":"sender","type":"address","indexed":false}
	]},
	{"type":"event","name":"RandomWordsFulfilled","anonymous":false,"inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"success","type":"bool","indexed":false}
	]},
	{"type":"function","name":"fulfillRandomWords","stateMutability":"nonpayable","inputs":[
		{"name":"requestId","type":"uint256"},
		{"name":"randomness","type":"uint256"},
		{"name":"commitment","type":"tuple","components":[
			{"name":"blockNum","type":"uint64"},
			{"name":"subId","type":"uint64"},
			{"name":"callbackGasLimit","type":"uint32"},
			{"name":"numWords","type":"uint32"},
			{"name":"sender","type":"address"}
		]}
	],"outputs":[]}
]`

// coordinatorABIV25 is the v2.5 variant ("the commitment tuple
// layout may differ"): it carries an extra nativePayment flag in the
// commitment tuple.
const coordinatorABIV25 = `[
	{"type":"event","name":"RandomWordsRequested","anonymous":false,"inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"subId","type":"uint64","indexed":false},
		{"name":"callbackGasLimit","type":"uint32","indexed":false},
		{"name":"numWords","type":"uint32","indexed":false},
		{"name":"sender","type":"address","indexed":false}
	]},
	{"type":"event","name":"RandomWordsFulfilled","anonymous":false,"inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"success","type":"bool","indexed":false}
	]},
	{"type":"function","name":"fulfillRandomWords","stateMutability":"nonpayable","inputs":[
		{"name":"requestId","type":"uint256"},
		{"name":"randomness","type":"uint256"},
		{"name":"commitment","type":"tuple","components":[
			{"name":"blockNum","type":"uint64"},
			{"name":"subId","type":"uint64"},
			{"name":"callbackGasLimit","type":"uint32"},
			{"name":"numWords","type":"uint32"},
			{"name":"sender","type":"address"},
			{"name":"nativePayment","type":"bool"}
		]}
	],"outputs":[]}
]`

const (
	eventRequested = "RandomWordsRequested"
	eventFulfilled = "RandomWordsFulfilled"
	methodFulfill  = "fulfillRandomWords"
)

// CoordinatorABI is the parsed ABI plus the event topics computed from it.
// Never mutated after Load returns.
type CoordinatorABI struct {
	ABI abi.ABI

	RequestedTopic [32]byte
	FulfilledTopic [32]byte

	V25 bool
}

// Load parses the coordinator ABI variant selected by useV25 (config key
// USE_VRF_V25) and precomputes its event topics from the parsed ABI, never
// hardcoded.
func Load(useV25 bool) (*CoordinatorABI, error) {
	raw := coordinatorABIV2
	if useV25 {
		raw = coordinatorABIV25
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &CoordinatorABI{
		ABI:            parsed,
		RequestedTopic: parsed.Events[eventRequested].ID,
		FulfilledTopic: parsed.Events[eventFulfilled].ID,
		V25:            useV25,
	}, nil
}

// PackFulfill ABI-encodes a call to fulfillRandomWords with the given
// arguments, honoring whichever commitment layout this ABI variant uses.
func (c *CoordinatorABI) PackFulfill(requestID, randomness interface{}, commitment interface{}) ([]byte, error) {
	return c.ABI.Pack(methodFulfill, requestID, randomness, commitment)
}
