package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/config"
	"github.com/Bidon15/autodeploy/internal/deployer"
	"github.com/Bidon15/autodeploy/internal/ledger"
	"github.com/Bidon15/autodeploy/internal/registry"
	"github.com/Bidon15/autodeploy/internal/tokengen"
)

// Well-known development key (anvil/hardhat account #0).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcad5cc22ed6f2ff80"

const tokenArtifact = `{"abi":[{"type":"constructor","inputs":[{"name":"name_","type":"string"},{"name":"symbol_","type":"string"},{"name":"supply_","type":"uint256"}],"stateMutability":"nonpayable"}],"bytecode":"0x6001600c60003960016000f300"}`

// isolate clears key variables and points HOME at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"PRIVATE_KEY", "PRIVATE_KEYS", "AUTODEPLOY_PRIVATE_KEY", "AUTODEPLOY_PRIVATE_KEYS", "AUTODEPLOY_ARTIFACT"} {
		t.Setenv(k, "")
	}
	return home
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetInput(strings.NewReader(stdin))
	err := ExecuteWithArgs(args)
	return buf.String(), err
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Token.json")
	require.NoError(t, os.WriteFile(path, []byte(tokenArtifact), 0o600))
	return path
}

// fakeExecutor succeeds budget[network] times per network, then reports
// insufficient funds.
type fakeExecutor struct {
	mu     sync.Mutex
	budget map[string]int
	calls  []string
	closed bool
}

func (f *fakeExecutor) Deploy(_ context.Context, n catalog.Network, _ registry.Credential, _ tokengen.Descriptor) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n.Name)
	if f.budget[n.Name] > 0 {
		f.budget[n.Name]--
		return common.BigToAddress(big.NewInt(int64(len(f.calls)))), nil
	}
	return common.Address{}, errors.New("insufficient funds for gas * price + value")
}

func (f *fakeExecutor) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func useFakeExecutor(t *testing.T, fake *fakeExecutor) {
	t.Helper()
	orig := newExecutor
	newExecutor = func(*config.Config, *deployer.Artifact, *slog.Logger) (executor, error) {
		return fake, nil
	}
	t.Cleanup(func() { newExecutor = orig })
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{
			name:        "basic version",
			args:        []string{"version"},
			wantContain: []string{"autodeploy dev"},
		},
		{
			name:        "verbose version",
			args:        []string{"--verbose", "version"},
			wantContain: []string{"autodeploy", "commit:", "built:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			output, err := execute(t, "", tt.args...)
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, output, want)
			}
		})
	}
}

func TestRootCommand_Help(t *testing.T) {
	isolate(t)
	output, err := execute(t, "", "--help")
	require.NoError(t, err)

	for _, expected := range []string{"deploy", "networks", "check", "history", "config", "--network-type", "--log-format", "PRIVATE_KEYS"} {
		assert.Contains(t, output, expected)
	}
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"deploy", "networks", "check", "history", "config", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestNetworksCommand(t *testing.T) {
	isolate(t)

	output, err := execute(t, "", "networks")
	require.NoError(t, err)
	assert.Contains(t, output, "1  Sepolia")
	assert.Contains(t, output, "11155111")

	output, err = execute(t, "", "networks", "mainnet")
	require.NoError(t, err)
	assert.Contains(t, output, "Ethereum")
	assert.NotContains(t, output, "Sepolia")

	output, err = execute(t, "", "--json", "networks")
	require.NoError(t, err)
	var networks []catalog.Network
	require.NoError(t, json.Unmarshal([]byte(output), &networks))
	assert.Equal(t, "Sepolia", networks[0].Name)

	_, err = execute(t, "", "networks", "devnet")
	assert.ErrorIs(t, err, catalog.ErrUnknownType)
}

func TestNetworksCommand_EnvironmentSelectsType(t *testing.T) {
	isolate(t)
	t.Setenv("AUTODEPLOY_NETWORK_TYPE", "mainnet")

	output, err := execute(t, "", "networks")
	require.NoError(t, err)
	assert.Contains(t, output, "Ethereum")
}

func TestNetworksCommand_ArgumentDoesNotCarryOver(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "networks", "devnet")
	require.ErrorIs(t, err, catalog.ErrUnknownType)

	output, err := execute(t, "", "networks")
	require.NoError(t, err)
	assert.Contains(t, output, "Sepolia")

	t.Setenv("AUTODEPLOY_NETWORK_TYPE", "mainnet")
	output, err = execute(t, "", "networks", "testnet")
	require.NoError(t, err)
	assert.Contains(t, output, "Sepolia")
	assert.NotContains(t, output, "Ethereum")
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEY", devKey)
	t.Setenv("PRIVATE_KEYS", "0xaa,0xbb")

	output, err := execute(t, "", "config", "show", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, output, maskKey(devKey))
	assert.NotContains(t, output, devKey)
	assert.Contains(t, output, "independent")
	assert.Contains(t, output, "unlimited")

	output, err = execute(t, "", "--json", "config", "show")
	require.NoError(t, err)
	var shown map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &shown))
	assert.Equal(t, float64(2), shown["private_keys"])
	assert.Equal(t, "testnet", shown["network_type"])
}

func TestConfigInit(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "autodeploy.yaml")

	output, err := execute(t, "mainnet\n/tmp/Token.json\nnetwork-abort\n", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "Config file created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "network_type: mainnet")
	assert.Contains(t, string(data), "policy: network-abort")
	assert.NotContains(t, string(data), "private")

	output, err = execute(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "network-abort")
	assert.Contains(t, output, "/tmp/Token.json")

	output, err = execute(t, "n\n", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, output, "Aborted")
}

func TestConfigInit_RejectsUnknownPolicy(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "autodeploy.yaml")

	_, err := execute(t, "\n\nretry\n", "--config", path, "config", "init")
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeploy_RequiresKeys(t *testing.T) {
	isolate(t)
	_, err := execute(t, "", "deploy", "--artifact", writeArtifact(t), "--networks", "1")
	assert.ErrorIs(t, err, config.ErrNoKeys)
}

func TestDeploy_RequiresArtifact(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEY", devKey)
	_, err := execute(t, "", "deploy", "--networks", "1")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestDeploy_NoValidSelection(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEY", devKey)
	fake := &fakeExecutor{}
	useFakeExecutor(t, fake)

	output, err := execute(t, "", "deploy", "--artifact", writeArtifact(t), "--networks", "0, 99, x")
	assert.ErrorIs(t, err, registry.ErrNoSelection)
	assert.Contains(t, output, "Available networks:")
	assert.Contains(t, output, "No valid networks selected. Exiting.")
	assert.Empty(t, fake.calls)
}

func TestDeploy_RunsUntilExhausted(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEY", devKey)
	fake := &fakeExecutor{budget: map[string]int{"Sepolia": 2, "Holesky": 1}}
	useFakeExecutor(t, fake)
	ledgerPath := filepath.Join(t.TempDir(), "deployments.jsonl")

	output, err := execute(t, "",
		"deploy",
		"--artifact", writeArtifact(t),
		"--networks", "1,2",
		"--pacing-min", "1ms",
		"--pacing-max", "2ms",
		"--seed", "7",
		"--ledger", ledgerPath,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Sepolia", "Holesky", "Sepolia", "Holesky", "Sepolia"}, fake.calls)
	assert.True(t, fake.closed)
	assert.Contains(t, output, "EVM Auto Deploy Tool")
	assert.Contains(t, output, "Run summary")
	assert.Contains(t, output, "All selected networks have halted deployment.")

	records, err := ledger.ReadFile(ledgerPath)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Sepolia", records[0].Network)
	assert.Equal(t, "https://sepolia.etherscan.io/address/"+records[0].Address, records[0].ExplorerURL)
	assert.Equal(t, 2, records[2].Round)

	output, err = execute(t, "", "history", "--ledger", ledgerPath)
	require.NoError(t, err)
	assert.Contains(t, output, "3 deployment(s)")

	output, err = execute(t, "", "--json", "history", "--ledger", ledgerPath, "--run", records[0].RunID)
	require.NoError(t, err)
	var filtered []ledger.Record
	require.NoError(t, json.Unmarshal([]byte(output), &filtered))
	assert.Len(t, filtered, 3)
}

func TestDeploy_PromptsForNetworks(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEYS", devKey+","+devKey[:len(devKey)-1]+"1")
	fake := &fakeExecutor{budget: map[string]int{"Holesky": 1}}
	useFakeExecutor(t, fake)

	output, err := execute(t, "2\n",
		"deploy",
		"--artifact", writeArtifact(t),
		"--pacing-min", "1ms",
		"--pacing-max", "1ms",
		"--ledger", "",
		"--max-rounds", "5",
	)
	require.NoError(t, err)

	assert.Contains(t, output, "Select networks")
	// Round 1: both keys on Holesky; the second runs out. Round 2: the first runs out.
	assert.Equal(t, []string{"Holesky", "Holesky", "Holesky"}, fake.calls)
}

func TestDeploy_NetworkTypeArgument(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEY", devKey)
	fake := &fakeExecutor{budget: map[string]int{"Ethereum": 1}}
	useFakeExecutor(t, fake)

	output, err := execute(t, "",
		"deploy", "mainnet",
		"--artifact", writeArtifact(t),
		"--networks", "1",
		"--pacing-min", "1ms",
		"--pacing-max", "1ms",
		"--ledger", "",
	)
	require.NoError(t, err)
	assert.Contains(t, output, "Arbitrum One")
	assert.Equal(t, []string{"Ethereum", "Ethereum"}, fake.calls)

	_, err = execute(t, "", "deploy", "devnet", "--artifact", writeArtifact(t), "--networks", "1")
	assert.ErrorIs(t, err, catalog.ErrUnknownType)

	_, err = execute(t, "", "deploy", "mainnet", "testnet")
	assert.ErrorContains(t, err, "accepts at most 1 arg")
}

func TestDeploy_MaxRounds(t *testing.T) {
	isolate(t)
	t.Setenv("PRIVATE_KEY", devKey)
	fake := &fakeExecutor{budget: map[string]int{"Sepolia": 100}}
	useFakeExecutor(t, fake)

	output, err := execute(t, "",
		"deploy",
		"--artifact", writeArtifact(t),
		"--networks", "1",
		"--pacing-min", "1ms",
		"--pacing-max", "1ms",
		"--ledger", "",
		"--max-rounds", "3",
	)
	require.NoError(t, err)
	assert.Len(t, fake.calls, 3)
	assert.NotContains(t, output, "All selected networks have halted deployment.")
}

func TestHistory_InvalidRunID(t *testing.T) {
	isolate(t)
	_, err := execute(t, "", "history", "--run", "not-a-uuid", "--ledger", filepath.Join(t.TempDir(), "none.jsonl"))
	assert.ErrorContains(t, err, "invalid run ID")
}

func TestHistory_Empty(t *testing.T) {
	isolate(t)
	output, err := execute(t, "", "history", "--ledger", filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, output, "No deployments recorded.")
}

// newChainIDServer answers eth_chainId with 0x7a69 (31337).
func newChainIDServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x7a69",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCommand(t *testing.T) {
	isolate(t)
	srv := newChainIDServer(t)

	catalogPath := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(
		"testnet:\n"+
			"  - name: Local\n    rpcUrl: "+srv.URL+"\n    chainId: 31337\n"+
			"  - name: Wrong\n    rpcUrl: "+srv.URL+"\n    chainId: 1\n"), 0o600))

	output, err := execute(t, "", "--catalog", catalogPath, "check", "--networks", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "Local")
	assert.Contains(t, output, "Chain ID 31337 confirmed")

	output, err = execute(t, "", "--catalog", catalogPath, "check")
	assert.ErrorIs(t, err, ErrPreflightFailed)
	assert.Contains(t, output, "Chain ID mismatch")

	_, err = execute(t, "", "--catalog", catalogPath, "check", "--networks", "7")
	assert.ErrorIs(t, err, registry.ErrNoSelection)

	output, err = execute(t, "", "--catalog", catalogPath, "--network-type", "mainnet", "check", "testnet", "--networks", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "Local")

	_, err = execute(t, "", "--catalog", catalogPath, "check", "mainnet")
	assert.ErrorIs(t, err, catalog.ErrUnknownType)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("0x1234"))
	assert.Equal(t, "0xac09...ff80", maskKey(devKey))
}
