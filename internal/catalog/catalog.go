// Package catalog loads the named EVM network lists that deployments can target.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultType is the network-type tag used when none is given.
const DefaultType = "testnet"

//go:embed networks.yaml
var embeddedCatalog []byte

// Sentinel errors
var (
	ErrUnknownType  = errors.New("catalog: unknown network type")
	ErrEmptyCatalog = errors.New("catalog: no networks defined")
)

// Network describes one deployable EVM network.
type Network struct {
	Name     string `yaml:"name" json:"name"`
	RPCURL   string `yaml:"rpcUrl" json:"rpcUrl"`
	Explorer string `yaml:"explorer" json:"explorer"`

	// ChainID is optional; when set, preflight checks compare it against the RPC.
	ChainID uint64 `yaml:"chainId,omitempty" json:"chainId,omitempty"`
}

// AddressURL returns the explorer link for a contract or account address.
func (n Network) AddressURL(address string) string {
	if n.Explorer == "" {
		return ""
	}
	return strings.TrimRight(n.Explorer, "/") + "/address/" + address
}

// Catalog maps a network-type tag ("testnet", "mainnet", ...) to its ordered network list.
type Catalog map[string][]Network

// Parse decodes a YAML catalog document and normalizes every entry.
func Parse(data []byte) (Catalog, error) {
	var raw map[string][]Network
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := make(Catalog, len(raw))
	for tag, networks := range raw {
		key := normalizeType(tag)
		out := make([]Network, 0, len(networks))
		for i, n := range networks {
			n.Name = strings.TrimSpace(n.Name)
			n.RPCURL = strings.TrimSpace(n.RPCURL)
			n.Explorer = strings.TrimSpace(n.Explorer)
			if n.Name == "" {
				return nil, fmt.Errorf("catalog %q entry %d: name is required", tag, i+1)
			}
			if n.RPCURL == "" {
				return nil, fmt.Errorf("catalog %q entry %q: rpcUrl is required", tag, n.Name)
			}
			out = append(out, n)
		}
		c[key] = out
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() (Catalog, error) {
	return Parse(embeddedCatalog)
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Networks returns the network list for a tag, preserving file order.
func (c Catalog) Networks(tag string) ([]Network, error) {
	key := normalizeType(tag)
	if key == "" {
		key = DefaultType
	}
	networks, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownType, tag, strings.Join(c.Types(), ", "))
	}
	if len(networks) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrEmptyCatalog, key)
	}
	out := make([]Network, len(networks))
	copy(out, networks)
	return out, nil
}

// Types lists the available network-type tags in sorted order.
func (c Catalog) Types() []string {
	out := make([]string, 0, len(c))
	for tag := range c {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Load resolves the network list for tag from path, or from the embedded catalog when path is empty.
func Load(path, tag string) ([]Network, error) {
	var (
		c   Catalog
		err error
	)
	if path != "" {
		c, err = LoadFile(path)
	} else {
		c, err = Default()
	}
	if err != nil {
		return nil, err
	}
	return c.Networks(tag)
}

func normalizeType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
