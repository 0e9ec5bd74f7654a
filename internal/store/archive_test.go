package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func filing(ticker, owner string, d int, typ models.TransactionType, total float64) models.Filing {
	return models.Filing{
		Ticker:          ticker,
		FilingDate:      day(d),
		TransactionDate: day(d - 1),
		ReportingOwner:  models.ReportingOwner{Name: owner, Classification: models.RoleDirector},
		NonDerivativeTransactions: []models.NonDerivativeTransaction{
			{TransactionType: typ, Shares: 10, PricePerShare: total / 10, TotalValue: total},
		},
		Source: "fmp",
	}
}

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "filings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSaveAndQuery(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	in := []models.Filing{
		filing("aapl", "Alice", 2, models.Purchase, 1000),
		filing("AAPL", "Bob", 10, models.Sale, 2500),
		filing("AAPL", "Carol", 20, models.Purchase, 300),
		filing("MSFT", "Dan", 5, models.Sale, 50),
	}
	n, err := a.Save(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = a.Save(ctx, in[:2])
	require.NoError(t, err)
	assert.Equal(t, 0, n, "duplicates are ignored")

	got, err := a.Filings(ctx, "aapl", day(5), day(25), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Carol", got[0].ReportingOwner.Name)
	assert.Equal(t, "Bob", got[1].ReportingOwner.Name)
	assert.True(t, got[1].FilingDate.Equal(day(10)))
	assert.True(t, got[1].TransactionDate.Equal(day(9)))
	assert.Equal(t, in[1].NonDerivativeTransactions, got[1].NonDerivativeTransactions)

	limited, err := a.Filings(ctx, "AAPL", time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Carol", limited[0].ReportingOwner.Name)

	tickers, err := a.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
	assert.NoError(t, a.Health(ctx))
}

func TestFilingsUnknownTickerIsEmpty(t *testing.T) {
	got, err := openTemp(t).Filings(context.Background(), "ZZZ", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type stubSource struct {
	filings []models.Filing
	err     error
}

func (s stubSource) Filings(context.Context, string, time.Time, time.Time, int) ([]models.Filing, error) {
	return s.filings, s.err
}

func TestRecorderArchivesUpstream(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	r := &Recorder{
		Upstream: stubSource{filings: []models.Filing{filing("AAPL", "Alice", 3, models.Purchase, 10)}},
		Archive:  a,
		Log:      logger.Nop(),
	}
	got, err := r.Filings(ctx, "AAPL", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	archived, err := a.Filings(ctx, "AAPL", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestRecorderPropagatesUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	r := &Recorder{Upstream: stubSource{err: boom}, Archive: openTemp(t)}
	_, err := r.Filings(context.Background(), "AAPL", time.Time{}, time.Time{}, 10)
	assert.ErrorIs(t, err, boom)
}

func TestRecorderLogsArchiveFailure(t *testing.T) {
	a := openTemp(t)
	require.NoError(t, a.Close())

	core, logs := observer.New(zapcore.WarnLevel)
	r := &Recorder{
		Upstream: stubSource{filings: []models.Filing{filing("AAPL", "Alice", 3, models.Purchase, 10)}},
		Archive:  a,
		Log:      logger.New(zap.New(core)),
	}
	got, err := r.Filings(context.Background(), "AAPL", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, logs.FilterMessage("archive filings failed").Len())
}
