package deployer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidArtifact is returned when a compiled contract cannot be used for token deploys.
var ErrInvalidArtifact = errors.New("deployer: invalid contract artifact")

// Artifact is a compiled token contract whose constructor takes
// (string name, string symbol, uint256 supply).
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

// rawArtifact accepts both Hardhat ("bytecode": "0x..") and Foundry
// ("bytecode": {"object": "0x.."}) layouts.
type rawArtifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads and validates a compiled contract JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes a compiled contract JSON document.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("%w: missing abi", ErrInvalidArtifact)
	}

	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: parse abi: %v", ErrInvalidArtifact, err)
	}

	code, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, err
	}

	a := &Artifact{ABI: parsed, Bytecode: code}
	if err := a.validateConstructor(); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if objErr := json.Unmarshal(raw, &obj); objErr != nil {
			return nil, fmt.Errorf("%w: bytecode must be a hex string or {\"object\": ...}", ErrInvalidArtifact)
		}
		hexStr = obj.Object
	}

	hexStr = strings.TrimSpace(hexStr)
	if !strings.HasPrefix(hexStr, "0x") && !strings.HasPrefix(hexStr, "0X") {
		hexStr = "0x" + hexStr
	}
	code, err := hexutil.Decode(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: decode bytecode: %v", ErrInvalidArtifact, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: empty bytecode", ErrInvalidArtifact)
	}
	return code, nil
}

func (a *Artifact) validateConstructor() error {
	inputs := a.ABI.Constructor.Inputs
	if len(inputs) != 3 {
		return fmt.Errorf("%w: constructor must take (string, string, uint256), got %d inputs", ErrInvalidArtifact, len(inputs))
	}
	if inputs[0].Type.T != abi.StringTy || inputs[1].Type.T != abi.StringTy {
		return fmt.Errorf("%w: constructor name and symbol must be strings", ErrInvalidArtifact)
	}
	if inputs[2].Type.T != abi.UintTy || inputs[2].Type.Size != 256 {
		return fmt.Errorf("%w: constructor supply must be uint256", ErrInvalidArtifact)
	}
	return nil
}
