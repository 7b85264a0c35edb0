package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabacktester/types"
)

var errNotStored = errors.New("not stored")

type mockDataStore struct {
	mu     sync.Mutex
	series map[string][]types.PriceSample
	calls  []string
}

func (m *mockDataStore) GetSeries(_ context.Context, symbol string) ([]types.PriceSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, symbol)
	s, ok := m.series[symbol]
	if !ok {
		return nil, errNotStored
	}
	return s, nil
}

type mockArchive struct {
	mu      sync.Mutex
	reports []*Report
	err     error
}

func (m *mockArchive) Save(_ context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return m.err
}

func newMockDataStore() *mockDataStore {
	return &mockDataStore{series: map[string][]types.PriceSample{
		"AAPL": seriesFromCloses(vCloses(250, 125)),
		"MSFT": seriesFromCloses(sineCloses(250)),
		"EMPT": {},
	}}
}

func TestEngine_Run(t *testing.T) {
	db := newMockDataStore()
	archive := &mockArchive{}
	eng := NewEngine(db, DefaultConfig(), NewReportingConfig(0, "")).WithArchive(archive)

	res, err := eng.Run(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Report.Symbol)
	assert.Equal(t, 2, res.Report.TotalTrades)
	assert.Len(t, res.Series, 250)
	assert.Equal(t, 1, res.Summary.RoundTrips)
	require.Len(t, archive.reports, 1)
	assert.Equal(t, res.Report, archive.reports[0])
}

func TestEngine_RunWith_InvalidConfigurationSkipsLoading(t *testing.T) {
	db := newMockDataStore()
	eng := NewEngine(db, DefaultConfig(), ReportingConfig{})

	_, err := eng.RunWith(context.Background(), "AAPL", DefaultConfig().WithInitialInvestment(0))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Empty(t, db.calls)
}

func TestEngine_Run_Errors(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr error
	}{
		{"unknown symbol", "GOOG", errNotStored},
		{"empty series", "EMPT", ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := NewEngine(newMockDataStore(), DefaultConfig(), ReportingConfig{})
			res, err := eng.Run(context.Background(), tt.symbol)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_Run_ArchiveFailureKeepsResult(t *testing.T) {
	archive := &mockArchive{err: errors.New("throttled")}
	eng := NewEngine(newMockDataStore(), DefaultConfig(), ReportingConfig{}).WithArchive(archive)

	res, err := eng.Run(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestEngine_Run_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	eng := NewEngine(newMockDataStore(), DefaultConfig(), NewReportingConfig(0, dir))

	_, err := eng.Run(context.Background(), "AAPL")
	require.NoError(t, err)

	for _, name := range []string{"AAPL_values.csv", "AAPL_trades.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size())
	}
}

func TestEngine_RunAll(t *testing.T) {
	db := newMockDataStore()
	eng := NewEngine(db, DefaultConfig(), ReportingConfig{}).WithWorkers(2)

	results, err := eng.RunAll(context.Background(), []string{"MSFT", "GOOG", "AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotStored)

	require.Len(t, results, 3)
	require.NotNil(t, results[0])
	assert.Equal(t, "MSFT", results[0].Report.Symbol)
	assert.Nil(t, results[1])
	require.NotNil(t, results[2])
	assert.Equal(t, "AAPL", results[2].Report.Symbol)
	assert.NotSame(t, results[0].Report, results[2].Report)
}

func TestEngine_RunAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := newMockDataStore()
	var progress bytes.Buffer
	eng := NewEngine(db, DefaultConfig(), ReportingConfig{}).WithProgress(&progress)
	_, err := eng.RunAll(ctx, []string{"AAPL", "MSFT"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, db.calls)
	// the bar is finished even though no run completed
	assert.Contains(t, progress.String(), "Backtesting in progress...")
}
