package orm

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/metrics"
	"github.com/marshallshelly/setlistdb/pkg/models"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T, opts ...Option) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	reg, err := models.NewRegistry()
	require.NoError(t, err)

	base := []Option{
		WithRegistry(reg),
		WithClock(func() time.Time { return testNow }),
	}
	return New(runtime.NewDB(mock), append(base, opts...)...), mock
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func artistRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "slug", "popularity"})
}

func showRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "artist_id", "venue_id", "name", "status"})
}

func songRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "artist_id", "title", "popularity"})
}
