package vrfabi

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestedEvent(t *testing.T) {
	c, err := Load(false)
	require.NoError(t, err)
	d := NewDecoder(c)

	sender := common.HexToAddress("0x00000000000000000000000000000000000abc")
	data, err := c.ABI.Events[eventRequested].Inputs.NonIndexed().Pack(
		uint64(7), uint32(200000), uint32(3), sender,
	)
	require.NoError(t, err)

	requestID := big.NewInt(42)
	log := ethtypes.Log{
		Topics: []common.Hash{
			c.RequestedTopic,
			common.BigToHash(requestID),
		},
		Data:        data,
		BlockNumber: 100,
		TxHash:      common.HexToHash("0x01"),
	}

	req, ful, err := d.Decode(log)
	require.NoError(t, err)
	require.Nil(t, ful)
	require.NotNil(t, req)
	require.Equal(t, requestID, req.RequestID)
	require.EqualValues(t, 7, req.SubID)
	require.EqualValues(t, 200000, req.CallbackGasLimit)
	require.EqualValues(t, 3, req.NumWords)
	require.Equal(t, sender, req.Sender)
	require.EqualValues(t, 100, req.BlockNumber)
}

func TestDecodeFulfilledEvent(t *testing.T) {
	c, err := Load(false)
	require.NoError(t, err)
	d := NewDecoder(c)

	data, err := c.ABI.Events[eventFulfilled].Inputs.NonIndexed().Pack(true)
	require.NoError(t, err)

	requestID := big.NewInt(99)
	log := ethtypes.Log{
		Topics: []common.Hash{
			c.FulfilledTopic,
			common.BigToHash(requestID),
		},
		Data:        data,
		BlockNumber: 101,
	}

	req, ful, err := d.Decode(log)
	require.NoError(t, err)
	require.Nil(t, req)
	require.NotNil(t, ful)
	require.Equal(t, requestID, ful.RequestID)
	require.EqualValues(t, 101, ful.BlockNumber)
}

func TestDecodeUnrelatedTopicIsNotAnError(t *testing.T) {
	c, err := Load(false)
	require.NoError(t, err)
	d := NewDecoder(c)

	log := ethtypes.Log{
		Topics: []common.Hash{common.HexToHash("0xdead")},
		Data:   []byte{},
	}

	req, ful, err := d.Decode(log)
	require.NoError(t, err)
	require.Nil(t, req)
	require.Nil(t, ful)
}

func TestDecodeMalformedRequestedLogIsFatal(t *testing.T) {
	c, err := Load(false)
	require.NoError(t, err)
	d := NewDecoder(c)

	log := ethtypes.Log{
		Topics: []common.Hash{c.RequestedTopic, common.BigToHash(big.NewInt(1))},
		Data:   []byte{0x01, 0x02},
		TxHash: common.HexToHash("0x02"),
	}

	req, ful, err := d.Decode(log)
	require.Error(t, err)
	require.Nil(t, req)
	require.Nil(t, ful)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeMissingIndexedTopicIsFatal(t *testing.T) {
	c, err := Load(false)
	require.NoError(t, err)
	d := NewDecoder(c)

	log := ethtypes.Log{
		Topics: []common.Hash{c.RequestedTopic},
		Data:   []byte{},
	}

	_, _, err = d.Decode(log)
	require.Error(t, err)
}
