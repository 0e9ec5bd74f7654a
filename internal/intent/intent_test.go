package intent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text    string
		kind    Kind
		tickers []string
	}{
		{"analyze $aapl", Analyze, []string{"AAPL"}},
		{"What is the insider sentiment for NVDA?", Analyze, []string{"NVDA"}},
		{"TSLA", Analyze, []string{"TSLA"}},
		{"compare AAPL MSFT and GOOG", Compare, []string{"AAPL", "MSFT", "GOOG"}},
		{"AAPL vs MSFT", Compare, []string{"AAPL", "MSFT"}},
		{"$AMD $INTC", Compare, []string{"AMD", "INTC"}},
		{"any unusual patterns at $nvda", Patterns, []string{"NVDA"}},
		{"did insiders cluster their buys at META", Clusters, []string{"META"}},
		{"show me the network graph for MSFT", Network, []string{"MSFT"}},
		{"help", Help, []string{}},
		{"What can you do?", Help, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.tickers, got.Tickers)
		})
	}
}

func TestParseNoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"hello there",
		"compare AAPL",
		"show the patterns",
		"I think THE CEO is OK",
	} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrNoMatch, text)
	}
}

func TestTickers(t *testing.T) {
	assert.Equal(t, []string{"BRK.B", "AAPL"}, Tickers("$brk.b and AAPL and $AAPL"))
	assert.Empty(t, Tickers("Apple and Microsoft"))
}

func TestKindJSON(t *testing.T) {
	b, err := json.Marshal(Intent{Kind: Clusters, Tickers: []string{"X"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"clusters","tickers":["X"]}`, string(b))
}

type recorder struct{ called string }

func (r *recorder) Analyze(_ context.Context, t string) (interface{}, error) {
	r.called = "analyze " + t
	return nil, nil
}
func (r *recorder) Compare(_ context.Context, ts []string) (interface{}, error) {
	r.called = "compare"
	return len(ts), nil
}
func (r *recorder) Patterns(_ context.Context, t string) (interface{}, error) {
	r.called = "patterns " + t
	return nil, nil
}
func (r *recorder) Clusters(_ context.Context, t string) (interface{}, error) {
	r.called = "clusters " + t
	return nil, nil
}
func (r *recorder) Network(_ context.Context, t string) (interface{}, error) {
	r.called = "network " + t
	return nil, nil
}
func (r *recorder) Help(context.Context) (interface{}, error) {
	r.called = "help"
	return HelpText, nil
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		in   Intent
		want string
	}{
		{Intent{Kind: Analyze, Tickers: []string{"A"}}, "analyze A"},
		{Intent{Kind: Patterns, Tickers: []string{"B"}}, "patterns B"},
		{Intent{Kind: Clusters, Tickers: []string{"C"}}, "clusters C"},
		{Intent{Kind: Network, Tickers: []string{"D"}}, "network D"},
		{Intent{Kind: Compare, Tickers: []string{"E", "F"}}, "compare"},
		{Intent{Kind: Help}, "help"},
	}
	for _, tt := range tests {
		r := &recorder{}
		_, err := Dispatch(ctx, tt.in, r)
		require.NoError(t, err)
		assert.Equal(t, tt.want, r.called)
	}

	_, err := Dispatch(ctx, Intent{Kind: Analyze}, &recorder{})
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = Dispatch(ctx, Intent{Kind: Kind(99), Tickers: []string{"A"}}, &recorder{})
	assert.ErrorIs(t, err, ErrNoMatch)
}
