package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// ErrNullReceipt is returned when the node reports the transaction mined
// but hands back no receipt.
var ErrNullReceipt = errors.New("transaction receipt is null")

// Backend is the subset of ethclient.Client a transfer needs.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Signer is one decrypted signing identity.
type Signer struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// LoadSigner decrypts an encrypted keystore file.
func LoadSigner(keyFile, passphrase string) (*Signer, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file (%s): %w", keyFile, err)
	}
	return DecryptSigner(data, passphrase)
}

func DecryptSigner(keyJSON []byte, passphrase string) (*Signer, error) {
	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	return &Signer{
		Address: crypto.PubkeyToAddress(key.PrivateKey.PublicKey),
		key:     key.PrivateKey,
	}, nil
}

// SelfTransfer sends amount wei from the signer back to its own address,
// then waits until the transaction is mined. The wait is bounded only by ctx.
func SelfTransfer(ctx context.Context, b Backend, s *Signer, amount *big.Int) (*types.Transaction, *types.Receipt, error) {
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve chain id: %w", err)
	}
	nonce, err := b.PendingNonceAt(ctx, s.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve account (%x) nonce: %w", s.Address, err)
	}
	gasPrice, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	to := s.Address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := b.SendTransaction(ctx, signed); err != nil {
		return signed, nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, b, signed)
	if err != nil {
		return signed, nil, fmt.Errorf("failed waiting for transaction %s: %w", signed.Hash().Hex(), err)
	}
	if receipt == nil {
		return signed, nil, ErrNullReceipt
	}
	return signed, receipt, nil
}
