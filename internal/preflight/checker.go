// Package preflight provides pre-deployment validation checks.
package preflight

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"

	"github.com/Bidon15/autodeploy/internal/catalog"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckRPCReachable verifies the network RPC endpoint is reachable.
	CheckRPCReachable CheckName = "rpc_reachable"
	// CheckChainIDMatch verifies the RPC chain ID matches the catalog entry.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies a deployer account can pay for deployments.
	CheckDeployerBalance CheckName = "deployer_balance"
)

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName              `json:"name"`
	Passed  bool                   `json:"passed"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Request contains the parameters for pre-flight checks on one network.
type Request struct {
	Network  catalog.Network
	Accounts []common.Address

	// RequiredWei is the minimum balance per account; nil means any non-zero balance.
	RequiredWei *big.Int
}

// AccountStatus is the on-chain state of one deployer account.
type AccountStatus struct {
	Address    string `json:"address"`
	BalanceWei string `json:"balance_wei"`
	BalanceETH string `json:"balance_eth"`
	Nonce      uint64 `json:"nonce"`
	Funded     bool   `json:"funded"`
}

// Response contains the results of all pre-flight checks for one network.
type Response struct {
	Network  string          `json:"network"`
	OK       bool            `json:"ok"`
	ChainID  uint64          `json:"chain_id,omitempty"`
	Checks   []CheckResult   `json:"checks"`
	Accounts []AccountStatus `json:"accounts,omitempty"`
}

// Caller is the subset of *w3.Client used by the checker.
type Caller interface {
	CallCtx(ctx context.Context, calls ...w3types.RPCCaller) error
	Close() error
}

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
	dial    func(rpcURL string) (Caller, error)
}

// NewChecker creates a new pre-flight checker.
func NewChecker() *Checker {
	return &Checker{
		timeout: DefaultTimeout,
		dial: func(rpcURL string) (Caller, error) {
			return w3.Dial(rpcURL)
		},
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// RunChecks performs all pre-flight checks and returns the results.
func (c *Checker) RunChecks(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response := &Response{
		Network: req.Network.Name,
		OK:      true,
		Checks:  make([]CheckResult, 0, 2+len(req.Accounts)),
	}

	// Check 1: RPC reachable
	client, chainID, reachableResult := c.checkReachable(rpcCtx, req.Network.RPCURL)
	response.Checks = append(response.Checks, reachableResult)
	if !reachableResult.Passed {
		response.OK = false
		return response, nil // Can't continue without connection
	}
	defer client.Close()
	response.ChainID = chainID

	// Check 2: Chain ID match, only when the catalog pins one
	if req.Network.ChainID != 0 {
		chainIDResult := c.checkChainIDMatch(chainID, req.Network.ChainID)
		response.Checks = append(response.Checks, chainIDResult)
		if !chainIDResult.Passed {
			response.OK = false
		}
	}

	// Check 3: one balance check per deployer account
	required := req.RequiredWei
	if required == nil {
		required = big.NewInt(1)
	}
	for _, addr := range req.Accounts {
		status, balanceResult := c.checkDeployerBalance(rpcCtx, client, addr, required)
		response.Checks = append(response.Checks, balanceResult)
		if status != nil {
			response.Accounts = append(response.Accounts, *status)
		}
		if !balanceResult.Passed {
			response.OK = false
		}
	}

	return response, nil
}

// validateRequest validates the pre-flight request parameters.
func (c *Checker) validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	if req.Network.Name == "" {
		return fmt.Errorf("network name is required")
	}
	if req.Network.RPCURL == "" {
		return fmt.Errorf("network rpc url is required")
	}
	for _, a := range req.Accounts {
		if a == (common.Address{}) {
			return fmt.Errorf("deployer address must not be the zero address")
		}
	}
	return nil
}

// checkReachable dials the RPC and fetches the chain ID in one round trip.
func (c *Checker) checkReachable(ctx context.Context, rpcURL string) (Caller, uint64, CheckResult) {
	result := CheckResult{
		Name: CheckRPCReachable,
	}

	client, err := c.dial(rpcURL)
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("Failed to connect to RPC: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return nil, 0, result
	}

	var chainID uint64
	if err := client.CallCtx(ctx, eth.ChainID().Returns(&chainID)); err != nil {
		_ = client.Close()
		result.Passed = false
		result.Message = fmt.Sprintf("RPC connection failed: %v", err)
		result.Details = map[string]interface{}{
			"error": err.Error(),
		}
		return nil, 0, result
	}

	result.Passed = true
	result.Message = "Connected to RPC successfully"
	result.Details = map[string]interface{}{
		"chain_id": chainID,
	}
	return client, chainID, result
}

// checkChainIDMatch verifies the RPC chain ID matches the expected value.
func (c *Checker) checkChainIDMatch(actual, expected uint64) CheckResult {
	result := CheckResult{
		Name: CheckChainIDMatch,
	}

	if actual != expected {
		result.Passed = false
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %d", expected, actual)
		result.Details = map[string]interface{}{
			"expected": expected,
			"actual":   actual,
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", expected)
	result.Details = map[string]interface{}{
		"chain_id": expected,
	}
	return result
}

// checkDeployerBalance fetches balance and nonce for addr in one batch.
func (c *Checker) checkDeployerBalance(ctx context.Context, client Caller, addr common.Address, requiredWei *big.Int) (*AccountStatus, CheckResult) {
	result := CheckResult{
		Name: CheckDeployerBalance,
	}

	var (
		balance *big.Int
		nonce   uint64
	)
	if err := client.CallCtx(ctx,
		eth.Balance(addr, nil).Returns(&balance),
		eth.Nonce(addr, nil).Returns(&nonce),
	); err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("Failed to get balance of %s: %v", addr.Hex(), err)
		result.Details = map[string]interface{}{
			"address": addr.Hex(),
			"error":   err.Error(),
		}
		return nil, result
	}

	haveETH := weiToETHString(balance)
	needETH := weiToETHString(requiredWei)

	status := &AccountStatus{
		Address:    addr.Hex(),
		BalanceWei: balance.String(),
		BalanceETH: haveETH,
		Nonce:      nonce,
		Funded:     balance.Cmp(requiredWei) >= 0,
	}

	result.Details = map[string]interface{}{
		"address":  addr.Hex(),
		"have_wei": balance.String(),
		"need_wei": requiredWei.String(),
		"have_eth": haveETH,
		"need_eth": needETH,
		"nonce":    nonce,
	}

	if !status.Funded {
		result.Passed = false
		result.Message = fmt.Sprintf("Insufficient balance for %s: have %s ETH, need %s ETH", addr.Hex(), haveETH, needETH)
		return status, result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("%s has %s ETH", addr.Hex(), haveETH)
	return status, result
}

// weiToETHString converts wei to a human-readable ETH string.
func weiToETHString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	weiFloat := new(big.Float).SetInt(wei)
	ethFloat := new(big.Float).Quo(weiFloat, big.NewFloat(1e18))

	// Format with up to 4 decimal places
	return ethFloat.Text('f', 4)
}

// ParseETH converts a decimal ETH amount ("0.05") to wei, truncating below one wei.
func ParseETH(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return nil, fmt.Errorf("invalid ETH amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}
