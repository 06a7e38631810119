package deployer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"

	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/registry/domain"
)

// DeployGasLimit bounds template construction on chain.
const DeployGasLimit uint64 = 1_000_000

const receiptPollInterval = 2 * time.Second

// ChainFactory is a Deployer backed by an EVM chain over RPC. Deterministic
// deployments go through a CREATE2 proxy contract whose calling convention is
// calldata = salt ++ initCode; the proxy address is the deployer identity
// that derivation is bound to. Direct deployments are plain creation
// transactions from the configured key.
type ChainFactory struct {
	client       *w3.Client
	signer       types.Signer
	key          *ecdsa.PrivateKey
	sender       common.Address
	factory      common.Address
	initCode     []byte
	initCodeHash common.Hash
	gasFeeCap    *big.Int
	gasTipCap    *big.Int
}

// NewChainFactory dials rpcURL and returns a factory that deploys the fixed
// initCode through the CREATE2 proxy at factory.
func NewChainFactory(rpcURL string, chainID int64, key *ecdsa.PrivateKey, factory common.Address, initCode []byte, gasFeeCap, gasTipCap *big.Int) (*ChainFactory, error) {
	if len(initCode) == 0 {
		return nil, fmt.Errorf("%w: empty template init code", domain.ErrDeployFailed)
	}
	client, err := w3.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &ChainFactory{
		client:       client,
		signer:       types.NewLondonSigner(big.NewInt(chainID)),
		key:          key,
		sender:       crypto.PubkeyToAddress(key.PublicKey),
		factory:      factory,
		initCode:     initCode,
		initCodeHash: TemplateHash(initCode),
		gasFeeCap:    gasFeeCap,
		gasTipCap:    gasTipCap,
	}, nil
}

// Close releases the RPC connection.
func (f *ChainFactory) Close() error {
	return f.client.Close()
}

// Identity returns the CREATE2 proxy address derivation is bound to.
func (f *ChainFactory) Identity() common.Address { return f.factory }

// PredictAddress derives the deterministic address for salt.
func (f *ChainFactory) PredictAddress(salt Salt) common.Address {
	return DeriveAddress(f.factory, salt, f.initCodeHash)
}

// DeployDeterministic constructs the template at the salt-derived address
// through the CREATE2 proxy.
func (f *ChainFactory) DeployDeterministic(ctx context.Context, salt Salt) (common.Address, error) {
	addr := f.PredictAddress(salt)

	// Occupancy is checked by looking for code at the derived address, not
	// by tracking salt history.
	var code []byte
	if err := f.client.CallCtx(ctx, eth.Code(addr, nil).Returns(&code)); err != nil {
		return common.Address{}, fmt.Errorf("check occupancy: %w", err)
	}
	if len(code) > 0 {
		return common.Address{}, fmt.Errorf("%w: %s", domain.ErrAddressOccupied, addr.Hex())
	}

	nonce, err := f.getNonce(ctx)
	if err != nil {
		return common.Address{}, err
	}

	calldata := make([]byte, 0, len(salt)+len(f.initCode))
	calldata = append(calldata, salt[:]...)
	calldata = append(calldata, f.initCode...)

	tx := types.NewTx(&types.DynamicFeeTx{
		Nonce:     nonce,
		To:        &f.factory,
		GasFeeCap: f.gasFeeCap,
		GasTipCap: f.gasTipCap,
		Gas:       DeployGasLimit,
		Data:      calldata,
	})

	txHash, err := f.sendTx(ctx, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrDeployFailed, err)
	}

	receipt, err := f.waitForReceipt(ctx, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrDeployFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("%w: construction reverted in tx %s", domain.ErrDeployFailed, txHash.Hex())
	}

	log.Info(log.CatDeploy, "deterministic deploy confirmed", "address", addr.Hex(), "tx", txHash.Hex())
	return addr, nil
}

// Deploy constructs the template at a nonce-derived address with a plain
// creation transaction.
func (f *ChainFactory) Deploy(ctx context.Context) (common.Address, error) {
	nonce, err := f.getNonce(ctx)
	if err != nil {
		return common.Address{}, err
	}

	addr := crypto.CreateAddress(f.sender, nonce)

	tx := types.NewTx(&types.DynamicFeeTx{
		Nonce:     nonce,
		GasFeeCap: f.gasFeeCap,
		GasTipCap: f.gasTipCap,
		Gas:       DeployGasLimit,
		Data:      f.initCode,
	})

	txHash, err := f.sendTx(ctx, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrDeployFailed, err)
	}

	receipt, err := f.waitForReceipt(ctx, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrDeployFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("%w: construction reverted in tx %s", domain.ErrDeployFailed, txHash.Hex())
	}

	log.Info(log.CatDeploy, "direct deploy confirmed", "address", addr.Hex(), "tx", txHash.Hex())
	return addr, nil
}

// Occupy is a no-op on chain: occupancy is read from the code at the
// address, which is already durable.
func (f *ChainFactory) Occupy(common.Address) {}

// Release is a no-op on chain: tombstoning a registry entry does not remove
// the code already deployed at the address.
func (f *ChainFactory) Release(addr common.Address) {
	log.Debug(log.CatDeploy, "release ignored for chain-backed instance", "address", addr.Hex())
}

func (f *ChainFactory) getNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	if err := f.client.CallCtx(ctx, eth.Nonce(f.sender, nil).Returns(&nonce)); err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	return nonce, nil
}

func (f *ChainFactory) sendTx(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signedTx, err := types.SignTx(tx, f.signer, f.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := f.client.CallCtx(ctx, eth.SendTx(signedTx).Returns(nil)); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return signedTx.Hash(), nil
}

func (f *ChainFactory) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := f.client.CallCtx(ctx, eth.TxReceipt(txHash).Returns(&receipt))
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ Deployer = (*ChainFactory)(nil)
