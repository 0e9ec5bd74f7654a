package store

import (
	"context"
	"time"

	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/models"
)

// Source is anything that can list filings for a ticker.
type Source interface {
	Filings(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.Filing, error)
}

// Recorder passes fetches through to Upstream and archives the result.
// Archive failures are logged; the fetch still succeeds.
type Recorder struct {
	Upstream Source
	Archive  *Archive
	Log      *logger.Logger
}

func (r *Recorder) Filings(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.Filing, error) {
	filings, err := r.Upstream.Filings(ctx, ticker, from, to, limit)
	if err != nil {
		return nil, err
	}
	n, err := r.Archive.Save(ctx, filings)
	log := r.Log
	if log == nil {
		log = logger.Get()
	}
	if err != nil {
		log.Warnw("archive filings failed", "ticker", ticker, "error", err)
	} else if n > 0 {
		log.Debugw("archived filings", "ticker", ticker, "new", n)
	}
	return filings, nil
}
