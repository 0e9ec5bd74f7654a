package intent

import (
	"context"
	"fmt"
)

// Handler executes each command kind. Results are whatever the caller
// wants to render.
type Handler interface {
	Analyze(ctx context.Context, ticker string) (interface{}, error)
	Compare(ctx context.Context, tickers []string) (interface{}, error)
	Patterns(ctx context.Context, ticker string) (interface{}, error)
	Clusters(ctx context.Context, ticker string) (interface{}, error)
	Network(ctx context.Context, ticker string) (interface{}, error)
	Help(ctx context.Context) (interface{}, error)
}

// Dispatch routes in to the matching Handler method.
func Dispatch(ctx context.Context, in Intent, h Handler) (interface{}, error) {
	switch in.Kind {
	case Help:
		return h.Help(ctx)
	case Compare:
		return h.Compare(ctx, in.Tickers)
	}
	if len(in.Tickers) == 0 {
		return nil, fmt.Errorf("%s: %w", in.Kind, ErrNoMatch)
	}
	switch in.Kind {
	case Analyze:
		return h.Analyze(ctx, in.Tickers[0])
	case Patterns:
		return h.Patterns(ctx, in.Tickers[0])
	case Clusters:
		return h.Clusters(ctx, in.Tickers[0])
	case Network:
		return h.Network(ctx, in.Tickers[0])
	default:
		return nil, fmt.Errorf("unknown intent kind %d: %w", int(in.Kind), ErrNoMatch)
	}
}
