// Package tokengen synthesizes random token metadata (name, symbol, supply).
//
// All randomness comes from an injected *rand.Rand so a seeded source replays
// the same sequence of descriptors.
package tokengen

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"unicode"
)

// Supply bounds, inclusive.
const (
	MinSupply int64 = 1_000_000
	MaxSupply int64 = 10_000_000
)

// MaxSymbolLen is the longest symbol the generator produces.
const MaxSymbolLen = 4

//go:embed words.json
var embeddedWords []byte

// ErrInvalidWords is returned when a word list cannot drive name generation.
var ErrInvalidWords = errors.New("tokengen: invalid word list")

// Descriptor is the metadata for one deployment attempt.
type Descriptor struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Supply int64  `json:"supply"`
}

// Words holds the vocabulary names are built from.
type Words struct {
	Adjectives []string `json:"adjectives"`
	Nouns      []string `json:"nouns"`
}

// DefaultWords returns the vocabulary compiled into the binary.
func DefaultWords() Words {
	var w Words
	if err := json.Unmarshal(embeddedWords, &w); err != nil {
		panic(fmt.Sprintf("tokengen: embedded words: %v", err))
	}
	return w
}

// LoadWords reads a {"adjectives": [...], "nouns": [...]} JSON file.
func LoadWords(path string) (Words, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Words{}, fmt.Errorf("read words: %w", err)
	}
	var w Words
	if err := json.Unmarshal(data, &w); err != nil {
		return Words{}, fmt.Errorf("parse words: %w", err)
	}
	return w, w.Validate()
}

// Validate checks that both lists are non-empty and every word is purely alphabetic.
func (w Words) Validate() error {
	if len(w.Adjectives) == 0 || len(w.Nouns) == 0 {
		return fmt.Errorf("%w: adjectives and nouns must both be non-empty", ErrInvalidWords)
	}
	for _, list := range [][]string{w.Adjectives, w.Nouns} {
		for _, word := range list {
			if word == "" || strings.IndexFunc(word, func(r rune) bool { return r > unicode.MaxASCII || !unicode.IsLetter(r) }) >= 0 {
				return fmt.Errorf("%w: %q is not an ASCII word", ErrInvalidWords, word)
			}
		}
	}
	return nil
}

// Generator produces token descriptors. It is not safe for concurrent use.
type Generator struct {
	rng   *rand.Rand
	words Words
}

// New creates a generator over words driven by rng.
func New(rng *rand.Rand, words Words) (*Generator, error) {
	if rng == nil {
		return nil, errors.New("tokengen: nil random source")
	}
	if err := words.Validate(); err != nil {
		return nil, err
	}
	return &Generator{rng: rng, words: words}, nil
}

// NewSeeded creates a generator over the embedded vocabulary with a deterministic source.
func NewSeeded(seed uint64) *Generator {
	g, err := New(NewRand(seed), DefaultWords())
	if err != nil {
		panic(err)
	}
	return g
}

// NewRand returns a PCG-backed source for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Next draws a full descriptor: name, then symbol, then supply.
func (g *Generator) Next() Descriptor {
	name := g.Name()
	return Descriptor{
		Name:   name,
		Symbol: g.Symbol(name),
		Supply: g.Supply(),
	}
}

// Name picks one of four word templates and joins the words with spaces.
func (g *Generator) Name() string {
	var parts []string
	switch g.rng.IntN(4) {
	case 0:
		parts = []string{g.adjective(), g.noun()}
	case 1:
		parts = []string{g.noun(), g.adjective()}
	case 2:
		parts = []string{g.adjective(), g.adjective(), g.noun()}
	default:
		parts = []string{g.noun(), g.noun()}
	}
	return strings.Join(parts, " ")
}

// Symbol derives a ticker from name. Half of the time it keeps the capital
// letters, otherwise the leading letters; either way at most four, upper-cased.
func (g *Generator) Symbol(name string) string {
	compact := strings.Join(strings.Fields(name), "")

	if g.rng.Float64() < 0.5 {
		return capitalsSymbol(compact)
	}
	return leadingLettersSymbol(compact)
}

// Supply draws uniformly from [MinSupply, MaxSupply].
func (g *Generator) Supply() int64 {
	return MinSupply + g.rng.Int64N(MaxSupply-MinSupply+1)
}

func (g *Generator) adjective() string {
	return g.words.Adjectives[g.rng.IntN(len(g.words.Adjectives))]
}

func (g *Generator) noun() string {
	return g.words.Nouns[g.rng.IntN(len(g.words.Nouns))]
}

// capitalsSymbol keeps the ASCII capitals of s, falling back to its first four
// characters when there are none.
func capitalsSymbol(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return strings.ToUpper(truncate(s, MaxSymbolLen))
	}
	return truncate(b.String(), MaxSymbolLen)
}

func leadingLettersSymbol(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(truncate(b.String(), MaxSymbolLen))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
