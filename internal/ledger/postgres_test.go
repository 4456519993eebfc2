package ledger

import (
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_SaveUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "key_ledger")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO key_ledger").
		WithArgs([]byte(`{"currentKeyIndex":1,"usageCounts":[3,0],"lastResetMonth":6}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Save(State{
		CurrentKeyIndex: 1,
		UsageCounts:     []int{3, 0},
		LastResetMonth:  6,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadReadsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "key_ledger")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT state FROM key_ledger").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).
			AddRow([]byte(`{"currentKeyIndex":2,"usageCounts":[1,2,3],"lastResetMonth":0}`)))

	state, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, state.CurrentKeyIndex)
	require.Equal(t, []int{1, 2, 3}, state.UsageCounts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadNoRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "key_ledger")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT state FROM key_ledger").
		WillReturnRows(pgxmock.NewRows([]string{"state"}))

	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewPostgresStoreWithPool_RejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresStoreWithPool(mock, "key-ledger; DROP TABLE")
	require.Error(t, err)
}
