// Package registry tracks which (network, credential) pairs are still eligible
// for deployment attempts from one round to the next.
//
// Round states are values: every transition produces a new state and never
// grows the set, so a retired pair cannot come back.
package registry

import (
	"errors"
	"fmt"

	"github.com/Bidon15/autodeploy/internal/catalog"
)

// Sentinel errors
var (
	ErrNoSelection = errors.New("registry: no valid network selected")
	ErrNotActive   = errors.New("registry: pair is not active in this round")
)

// Pair is one unit of orchestration state.
type Pair struct {
	Network    catalog.Network
	Credential Credential
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Network.Name, p.Credential.Redacted())
}

// Group is a network with its still-active credentials, in registration order.
type Group struct {
	Network     catalog.Network
	Credentials []Credential
}

// RoundState is the ordered set of active pairs grouped by network.
type RoundState struct {
	groups []Group
}

// Initialize builds the first round from the selected networks crossed with
// creds. With no credentials each network gets a single DefaultCredential entry.
func Initialize(selected []catalog.Network, creds []Credential) (RoundState, error) {
	if len(selected) == 0 {
		return RoundState{}, ErrNoSelection
	}
	if len(creds) == 0 {
		creds = []Credential{DefaultCredential}
	}

	groups := make([]Group, 0, len(selected))
	for _, n := range selected {
		cs := make([]Credential, len(creds))
		copy(cs, creds)
		groups = append(groups, Group{Network: n, Credentials: cs})
	}
	return RoundState{groups: groups}, nil
}

// BeginRound snapshots the survivors of the previous round as the input of the next one.
func BeginRound(survivors RoundState) RoundState {
	return survivors.clone()
}

// Groups returns a copy of the per-network groups.
func (s RoundState) Groups() []Group {
	return s.clone().groups
}

// Pairs flattens the state in attempt order.
func (s RoundState) Pairs() []Pair {
	var out []Pair
	for _, g := range s.groups {
		for _, c := range g.Credentials {
			out = append(out, Pair{Network: g.Network, Credential: c})
		}
	}
	return out
}

// Len is the number of active pairs.
func (s RoundState) Len() int {
	n := 0
	for _, g := range s.groups {
		n += len(g.Credentials)
	}
	return n
}

// Empty reports whether no pair remains.
func (s RoundState) Empty() bool {
	return s.Len() == 0
}

// NetworkCount is the number of networks with at least one active credential.
func (s RoundState) NetworkCount() int {
	return len(s.groups)
}

// Contains reports whether p is active.
func (s RoundState) Contains(p Pair) bool {
	for _, g := range s.groups {
		if g.Network != p.Network {
			continue
		}
		for _, c := range g.Credentials {
			if c == p.Credential {
				return true
			}
		}
	}
	return false
}

func (s RoundState) clone() RoundState {
	groups := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		cs := make([]Credential, len(g.Credentials))
		copy(cs, g.Credentials)
		groups = append(groups, Group{Network: g.Network, Credentials: cs})
	}
	return RoundState{groups: groups}
}

// Builder collects the survivors of a round. It only accepts pairs that were
// active in the round it was created from.
type Builder struct {
	current RoundState
	kept    map[Pair]bool
	dropped map[catalog.Network]bool
}

// NewBuilder starts collecting survivors of current.
func NewBuilder(current RoundState) *Builder {
	return &Builder{
		current: current.clone(),
		kept:    make(map[Pair]bool),
		dropped: make(map[catalog.Network]bool),
	}
}

// Keep carries p into the next round. Pairs of a dropped network are ignored.
func (b *Builder) Keep(p Pair) error {
	if !b.current.Contains(p) {
		return fmt.Errorf("%w: %s", ErrNotActive, p)
	}
	if b.dropped[p.Network] {
		return nil
	}
	b.kept[p] = true
	return nil
}

// DropNetwork removes every pair of n from the next round, including pairs
// already kept.
func (b *Builder) DropNetwork(n catalog.Network) {
	b.dropped[n] = true
	for p := range b.kept {
		if p.Network == n {
			delete(b.kept, p)
		}
	}
}

// State returns the next round's state in the original registration order.
func (b *Builder) State() RoundState {
	var groups []Group
	for _, g := range b.current.groups {
		if b.dropped[g.Network] {
			continue
		}
		var cs []Credential
		for _, c := range g.Credentials {
			if b.kept[Pair{Network: g.Network, Credential: c}] {
				cs = append(cs, c)
			}
		}
		if len(cs) > 0 {
			groups = append(groups, Group{Network: g.Network, Credentials: cs})
		}
	}
	return RoundState{groups: groups}
}
