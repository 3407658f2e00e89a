package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-scraper/models"
)

var columns = []string{
	"url", "title", "price", "size_sqm", "rooms", "city", "neighborhood", "property_type",
	"category", "deal_type", "features", "phone", "email", "whatsapp", "description", "source",
	"extracted_at", "first_seen", "last_seen", "run_id", "active",
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

func TestPostgresStoreGet(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery("FROM listings WHERE url").
		WithArgs("https://a.test/1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"https://a.test/1", "חנות", 12000.0, nil, nil, "תל אביב", "", "retail",
			"commercial", "rent", "{parking,elevator}", "052-1234567", "", "", "desc", "yad2",
			t0, t0, t0, "run-1", true,
		))

	l, err := ps.Get(context.Background(), "https://a.test/1")
	require.NoError(t, err)
	require.NotNil(t, l.Price)
	assert.Equal(t, 12000.0, *l.Price)
	assert.Nil(t, l.Size)
	assert.Equal(t, models.CategoryCommercial, l.Category)
	assert.Equal(t, []string{"parking", "elevator"}, l.Features)
	assert.Equal(t, "תל אביב", l.Location.City)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMissing(t *testing.T) {
	ps, mock := newMockStore(t)
	mock.ExpectQuery("FROM listings WHERE url").WillReturnRows(sqlmock.NewRows(columns))

	_, err := ps.Get(context.Background(), "https://a.test/none")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresStoreInsertConflict(t *testing.T) {
	ps, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(anyArgs(21)...).
		WillReturnError(&pq.Error{Code: uniqueViolation, Message: "duplicate key"})

	err := ps.Insert(context.Background(), listing("https://a.test/1", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsert(t *testing.T) {
	ps, mock := newMockStore(t)
	args := anyArgs(21)
	args[0] = "https://a.test/1"
	mock.ExpectExec("INSERT INTO listings").WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ps.Insert(context.Background(), listing("https://a.test/1", models.Float(1))))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateMissing(t *testing.T) {
	ps, mock := newMockStore(t)
	mock.ExpectExec("UPDATE listings SET").WithArgs(anyArgs(21)...).WillReturnResult(sqlmock.NewResult(0, 0))

	err := ps.Update(context.Background(), listing("https://a.test/1", nil))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresStoreStoreErrorSurfaces(t *testing.T) {
	ps, mock := newMockStore(t)
	mock.ExpectExec("UPDATE listings SET").WithArgs(anyArgs(21)...).WillReturnError(errors.New("connection reset"))

	err := ps.Update(context.Background(), listing("https://a.test/1", nil))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresStoreSnapshots(t *testing.T) {
	ps, mock := newMockStore(t)
	snap := &models.AnalyticsSnapshot{RunID: "run-1", Timestamp: t0, TotalListings: 3}

	mock.ExpectExec("INSERT INTO analytics_snapshots").
		WithArgs("run-1", t0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT payload FROM analytics_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"run_id":"run-1","total_listings":3}`)))

	require.NoError(t, ps.WriteSnapshot(context.Background(), snap))
	latest, err := ps.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.RunID)
	assert.Equal(t, 3, latest.TotalListings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMigrate(t *testing.T) {
	ps, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS listings").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, ps.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
