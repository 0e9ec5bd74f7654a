package sp500

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Symbol,Security,GICS Sector,GICS Sub-Industry
AAPL,Apple Inc.,Information Technology,Technology Hardware
msft,Microsoft,Information Technology,Systems Software
AAPL,Apple Again,,
,Blank,,
XYZ,Short Row,,
`

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Company{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Information Technology"}, got[0])
	assert.Equal(t, "MSFT", got[1].Symbol)
	assert.Equal(t, "Unknown", got[2].Sector)
}

func TestParseMissingSymbolColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Ticker,Name\nAAPL,Apple\n"))
	assert.ErrorIs(t, err, ErrNoSymbolColumn)
}

func TestSymbols(t *testing.T) {
	cs := []Company{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}}
	assert.Equal(t, []string{"A", "B"}, Symbols(cs, 2))
	assert.Equal(t, []string{"A", "B", "C"}, Symbols(cs, 0))
	assert.Equal(t, []string{"A", "B", "C"}, Symbols(cs, 10))
}
