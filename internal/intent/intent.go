// Package intent maps free-text chat messages onto insider commands.
package intent

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoMatch = errors.New("intent: no command recognized")

type Kind int

const (
	Help Kind = iota
	Analyze
	Compare
	Patterns
	Clusters
	Network
)

func (k Kind) String() string {
	switch k {
	case Help:
		return "help"
	case Analyze:
		return "analyze"
	case Compare:
		return "compare"
	case Patterns:
		return "patterns"
	case Clusters:
		return "clusters"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind serialize as its name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for c := Help; c <= Network; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return errors.New("intent: unknown kind " + string(b))
}

type Intent struct {
	Kind    Kind     `json:"kind"`
	Tickers []string `json:"tickers"`
}

var (
	dollarTicker = regexp.MustCompile(`\$([A-Za-z]{1,5}(?:\.[A-Za-z])?)\b`)
	bareTicker   = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

// Upper-case words that look like tickers but are not.
var stopWords = map[string]bool{
	"A": true, "I": true, "AN": true, "AND": true, "ARE": true, "AS": true, "AT": true,
	"BE": true, "BY": true, "CEO": true, "CFO": true, "COO": true, "DO": true, "FOR": true,
	"HOW": true, "IN": true, "IS": true, "IT": true, "ME": true, "MY": true, "OF": true,
	"ON": true, "OR": true, "SEC": true, "THE": true, "TO": true, "US": true, "USA": true,
	"VS": true, "WHAT": true, "WHO": true, "WHY": true, "WITH": true, "BUY": true, "SELL": true,
	"OK": true, "ETF": true, "IPO": true,
}

var keywords = []struct {
	kind  Kind
	words []string
}{
	{Compare, []string{"compare", "versus", " vs ", " vs.", "against", "rank"}},
	{Network, []string{"network", "graph", "connections", "relationships"}},
	{Clusters, []string{"cluster", "coordinated", "together"}},
	{Patterns, []string{"pattern", "momentum", "unusual", "anomal", "season", "accelerat"}},
	{Analyze, []string{"analy", "sentiment", "insider", "score", "buying", "selling", "activity", "check", "look at"}},
	{Help, []string{"help", "what can you do", "commands"}},
}

// Parse picks a command from text. Keywords decide the kind; a message
// with tickers but no keyword is an analysis (or a comparison when it
// names several).
func Parse(text string) (Intent, error) {
	tickers := Tickers(text)
	lower := " " + strings.ToLower(strings.TrimSpace(text)) + " "

	kind, found := Help, false
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				kind, found = k.kind, true
				break
			}
		}
		if found {
			break
		}
	}

	if !found {
		if len(tickers) == 0 {
			return Intent{}, ErrNoMatch
		}
		kind = Analyze
	}
	if kind == Help {
		return Intent{Kind: Help, Tickers: []string{}}, nil
	}
	if kind == Analyze && len(tickers) > 1 {
		kind = Compare
	}

	need := 1
	if kind == Compare {
		need = 2
	}
	if len(tickers) < need {
		return Intent{}, ErrNoMatch
	}
	if kind != Compare {
		tickers = tickers[:1]
	}
	return Intent{Kind: kind, Tickers: tickers}, nil
}

// Tickers extracts $-prefixed symbols in any case plus upper-case 1-5
// letter words outside the stop list, deduplicated in order.
func Tickers(text string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(t string) {
		t = strings.ToUpper(t)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, m := range dollarTicker.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	stripped := dollarTicker.ReplaceAllString(text, " ")
	for _, w := range bareTicker.FindAllString(stripped, -1) {
		if !stopWords[w] {
			add(w)
		}
	}
	return out
}

// HelpText lists the supported commands.
const HelpText = `Try:
  analyze $AAPL          insider sentiment and signals
  patterns NVDA          momentum, acceleration, unusual activity
  clusters TSLA          coordinated buying or selling
  network MSFT           insider network graph
  compare AAPL MSFT GOOG side-by-side ranking`
