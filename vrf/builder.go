// Package vrf implements the transaction-building, nonce, dedup and
// multi-send components of the fulfillment engine. Builder applies a
// chain-id-dependent fee shape around a contract call packed from the
// coordinator ABI.
package vrf

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/klaytn/vrf-fulfiller/vrfabi"
)

const (
	defaultGasLimit          = uint64(1_500_000)
	defaultPriorityFeeInGwei = 0.001
)

// Builder builds and signs fulfillRandomWords transactions for one chain.
// It holds no network state; BuildFulfill takes the current nonce and gas
// ceiling as arguments so the caller (the worker pool, with its nonce ledger) owns
// that bookkeeping ("the builder is a pure function of its
// inputs").
type Builder struct {
	chainID    int64
	legacyGas  bool
	vrfAddress common.Address
	coord      *vrfabi.CoordinatorABI
	signer     types.Signer
	priv       *ecdsa.PrivateKey
}

// NewBuilder constructs a Builder bound to one coordinator contract and one
// signing key.
func NewBuilder(chainID int64, legacyGas bool, vrfAddress common.Address, coord *vrfabi.CoordinatorABI, priv *ecdsa.PrivateKey) *Builder {
	return &Builder{
		chainID:    chainID,
		legacyGas:  legacyGas,
		vrfAddress: vrfAddress,
		coord:      coord,
		signer:     types.LatestSignerForChainID(big.NewInt(chainID)),
		priv:       priv,
	}
}

// Address returns the address this builder signs from.
func (b *Builder) Address() common.Address {
	return crypto.PubkeyToAddress(b.priv.PublicKey)
}

func gweiToWei(gwei float64) *big.Int {
	wei := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9))
	out, _ := wei.Int(nil)
	return out
}

// BuildFulfill packs a fulfillRandomWords call with requestID, randomness
// and commitment, and signs it with nonce and the given max gas ceiling in
// gwei. The commitment must match the ABI variant the Builder's coordinator
// was loaded with (RequestCommitment for v2, RequestCommitmentV25 for v2.5);
// a mismatched shape fails to pack.
func (b *Builder) BuildFulfill(nonce uint64, maxGasGwei float64, requestID, randomness *big.Int, commitment interface{}) (*types.Transaction, error) {
	data, err := b.coord.PackFulfill(requestID, randomness, commitment)
	if err != nil {
		return nil, err
	}

	var tx *types.Transaction
	if b.legacyGas {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gweiToWei(maxGasGwei),
			Gas:      defaultGasLimit,
			To:       &b.vrfAddress,
			Value:    big.NewInt(0),
			Data:     data,
		})
	} else {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(b.chainID),
			Nonce:     nonce,
			GasTipCap: gweiToWei(defaultPriorityFeeInGwei),
			GasFeeCap: gweiToWei(maxGasGwei),
			Gas:       defaultGasLimit,
			To:        &b.vrfAddress,
			Value:     big.NewInt(0),
			Data:      data,
		})
	}

	return types.SignTx(tx, b.signer, b.priv)
}
