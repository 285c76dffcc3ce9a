package validate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportStore_SaveAndRecentForSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	store, err := OpenReportStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	r := Report{
		RunID: "run-1", Symbol: "BTCUSDT", Timeframe: "1h", InstrumentType: "spot",
		TotalBars: 744, ExpectedBars: 744, Pass: true,
		Issues: []Issue{{Layer: "coverage", Severity: SeverityWarning, Detail: "fine"}},
	}
	require.NoError(t, store.Save(ctx, r))

	got, err := store.RecentForSymbol(ctx, "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "run-1", got[0].RunID)
	require.True(t, got[0].Pass)
	require.Len(t, got[0].Issues, 1)
}

func TestReportStore_IsolatesDifferentSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	store, err := OpenReportStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, Report{RunID: "a", Symbol: "BTCUSDT", Timeframe: "1h"}))
	require.NoError(t, store.Save(ctx, Report{RunID: "b", Symbol: "ETHUSDT", Timeframe: "1h"}))

	got, err := store.RecentForSymbol(ctx, "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "BTCUSDT", got[0].Symbol)
}
