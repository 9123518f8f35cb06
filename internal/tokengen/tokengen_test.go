package tokengen

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,4}$`)

func TestDefaultWords(t *testing.T) {
	w := DefaultWords()
	require.NoError(t, w.Validate())
	assert.NotEmpty(t, w.Adjectives)
	assert.NotEmpty(t, w.Nouns)
}

func TestWords_Validate(t *testing.T) {
	tests := []struct {
		name    string
		words   Words
		wantErr bool
	}{
		{name: "valid", words: Words{Adjectives: []string{"Red"}, Nouns: []string{"Coin"}}},
		{name: "no adjectives", words: Words{Nouns: []string{"Coin"}}, wantErr: true},
		{name: "no nouns", words: Words{Adjectives: []string{"Red"}}, wantErr: true},
		{name: "digit in word", words: Words{Adjectives: []string{"Web3"}, Nouns: []string{"Coin"}}, wantErr: true},
		{name: "empty word", words: Words{Adjectives: []string{""}, Nouns: []string{"Coin"}}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.words.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWords)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RejectsNilSource(t *testing.T) {
	_, err := New(nil, DefaultWords())
	assert.Error(t, err)
}

func TestGenerator_Name(t *testing.T) {
	g := NewSeeded(7)
	words := DefaultWords()
	known := make(map[string]bool)
	for _, w := range append(words.Adjectives, words.Nouns...) {
		known[w] = true
	}

	for i := 0; i < 1000; i++ {
		parts := strings.Split(g.Name(), " ")
		require.GreaterOrEqual(t, len(parts), 2)
		require.LessOrEqual(t, len(parts), 3)
		for _, p := range parts {
			assert.True(t, known[p], "unexpected word %q", p)
		}
	}
}

func TestGenerator_SymbolShape(t *testing.T) {
	g := NewSeeded(11)
	for i := 0; i < 10_000; i++ {
		name := g.Name()
		sym := g.Symbol(name)
		assert.Regexp(t, symbolPattern, sym, "name %q", name)
	}
}

func TestCapitalsSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "CryptoCoin", want: "CC"},
		{in: "MetaHyperCoinVault", want: "MHCV"},
		{in: "MetaHyperCoinVaultExtra", want: "MHCV"},
		{in: "lowercase", want: "LOWE"},
		{in: "abc", want: "ABC"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, capitalsSymbol(tc.in))
		})
	}
}

func TestLeadingLettersSymbol(t *testing.T) {
	assert.Equal(t, "CRYP", leadingLettersSymbol("CryptoCoin"))
	assert.Equal(t, "ABC", leadingLettersSymbol("a1b2c3"))
	assert.Equal(t, "GEM", leadingLettersSymbol("Gem"))
}

func TestGenerator_SymbolStripsWhitespace(t *testing.T) {
	g := NewSeeded(3)
	for i := 0; i < 200; i++ {
		sym := g.Symbol("  Red \t Coin  ")
		assert.Contains(t, []string{"RC", "REDC"}, sym)
	}
}

func TestGenerator_SupplyRange(t *testing.T) {
	g := NewSeeded(42)
	var sawMin, sawAboveMid bool
	for i := 0; i < 100_000; i++ {
		s := g.Supply()
		require.GreaterOrEqual(t, s, MinSupply)
		require.LessOrEqual(t, s, MaxSupply)
		if s < MinSupply+100_000 {
			sawMin = true
		}
		if s > (MinSupply+MaxSupply)/2 {
			sawAboveMid = true
		}
	}
	assert.True(t, sawMin)
	assert.True(t, sawAboveMid)
}

func TestGenerator_SeedReplay(t *testing.T) {
	a := NewSeeded(1234)
	b := NewSeeded(1234)
	for i := 0; i < 500; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}

	c := NewSeeded(4321)
	d := NewSeeded(1234)
	differ := false
	for i := 0; i < 20; i++ {
		if c.Next() != d.Next() {
			differ = true
		}
	}
	assert.True(t, differ)
}

func TestLoadWords(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"adjectives":["Red"],"nouns":["Coin"]}`), 0o600))
	w, err := LoadWords(good)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red"}, w.Adjectives)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"adjectives":[],"nouns":["Coin"]}`), 0o600))
	_, err = LoadWords(bad)
	assert.ErrorIs(t, err, ErrInvalidWords)
}
