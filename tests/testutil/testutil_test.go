package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mdb := NewMockDB(t)
	mdb.Mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	var n int
	require.NoError(t, mdb.DB.Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
	mdb.ExpectationsWereMet(t)
}

func TestContextWithTimeout(t *testing.T) {
	ctx := ContextWithTimeout(t, 10*time.Millisecond)
	select {
	case <-ctx.Done():
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

