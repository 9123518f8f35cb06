// Package deployer submits token contract deployments to EVM networks with go-ethereum.
package deployer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/registry"
	"github.com/Bidon15/autodeploy/internal/tokengen"
)

// Defaults
const (
	DefaultReceiptTimeout = 5 * time.Minute
	DefaultDialTimeout    = 15 * time.Second
)

// Sentinel errors
var (
	ErrNoArtifact  = errors.New("deployer: contract artifact is required")
	ErrNoKey       = errors.New("deployer: no private key configured")
	ErrInvalidKey  = errors.New("deployer: invalid private key")
	ErrChainIDDiff = errors.New("deployer: chain id mismatch")
)

// Backend is the subset of *ethclient.Client used for deployments.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// DialFunc connects to a network's RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthClient is the production DialFunc.
func DialEthClient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Config contains configuration for the Deployer.
type Config struct {
	// Logger for structured logging
	Logger *slog.Logger

	// Artifact is the compiled token contract
	Artifact *Artifact

	// DefaultKey signs for registry.DefaultCredential
	DefaultKey string

	// Decimals scales the whole-token supply into base units; 0 keeps it whole
	Decimals uint8

	// ReceiptTimeout bounds the wait for the deployment to be mined
	ReceiptTimeout time.Duration

	// Dial connects to RPC endpoints; defaults to DialEthClient
	Dial DialFunc
}

// connection is a dialled network cached for the run.
type connection struct {
	backend Backend
	chainID *big.Int
}

// Deployer deploys token contracts. Connections are dialled lazily and reused
// for later attempts on the same network; Close releases them.
type Deployer struct {
	config Config
	logger *slog.Logger
	conns  map[string]*connection
}

// New creates a Deployer.
func New(config Config) (*Deployer, error) {
	if config.Artifact == nil {
		return nil, ErrNoArtifact
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = DefaultReceiptTimeout
	}
	if config.Dial == nil {
		config.Dial = DialEthClient
	}
	return &Deployer{
		config: config,
		logger: config.Logger,
		conns:  make(map[string]*connection),
	}, nil
}

// Deploy sends the token contract creation transaction and waits until the
// contract code is on chain.
func (d *Deployer) Deploy(ctx context.Context, network catalog.Network, cred registry.Credential, token tokengen.Descriptor) (common.Address, error) {
	key, err := d.resolveKey(cred)
	if err != nil {
		return common.Address{}, err
	}

	conn, err := d.connect(ctx, network)
	if err != nil {
		return common.Address{}, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, conn.chainID)
	if err != nil {
		return common.Address{}, fmt.Errorf("create transactor: %w", err)
	}
	auth.Context = ctx

	supply := ScaleSupply(token.Supply, d.config.Decimals)
	address, tx, _, err := bind.DeployContract(auth, d.config.Artifact.ABI, d.config.Artifact.Bytecode, conn.backend,
		token.Name, token.Symbol, supply)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy contract on %s: %w", network.Name, err)
	}

	d.logger.Debug("deployment transaction submitted",
		slog.String("network", network.Name),
		slog.String("from", auth.From.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("predicted_address", address.Hex()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, d.config.ReceiptTimeout)
	defer cancel()

	deployed, err := bind.WaitDeployed(waitCtx, conn.backend, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("wait for deployment %s on %s: %w", tx.Hash().Hex(), network.Name, err)
	}
	return deployed, nil
}

// Close releases every cached RPC connection.
func (d *Deployer) Close() {
	for name, conn := range d.conns {
		conn.backend.Close()
		delete(d.conns, name)
	}
}

func (d *Deployer) connect(ctx context.Context, network catalog.Network) (*connection, error) {
	if conn, ok := d.conns[network.RPCURL]; ok {
		return conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()

	backend, err := d.config.Dial(dialCtx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network.Name, err)
	}

	chainID, err := backend.ChainID(dialCtx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("get chain id for %s: %w", network.Name, err)
	}
	if network.ChainID != 0 && chainID.Uint64() != network.ChainID {
		backend.Close()
		return nil, fmt.Errorf("%w on %s: catalog says %d, rpc says %s", ErrChainIDDiff, network.Name, network.ChainID, chainID)
	}

	conn := &connection{backend: backend, chainID: chainID}
	d.conns[network.RPCURL] = conn
	d.logger.Debug("connected to network",
		slog.String("network", network.Name),
		slog.String("chain_id", chainID.String()),
	)
	return conn, nil
}

func (d *Deployer) resolveKey(cred registry.Credential) (*ecdsa.PrivateKey, error) {
	raw := string(cred)
	if cred.IsDefault() {
		raw = d.config.DefaultKey
	}
	return ParsePrivateKey(raw)
}

// ParsePrivateKey decodes a hex private key with or without the 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoKey
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// AddressOf returns the account address controlled by a credential, resolving
// DefaultCredential to defaultKey.
func AddressOf(cred registry.Credential, defaultKey string) (common.Address, error) {
	raw := string(cred)
	if cred.IsDefault() {
		raw = defaultKey
	}
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// ScaleSupply converts a whole-token supply into base units (supply * 10^decimals).
func ScaleSupply(supply int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(supply), scale)
}
