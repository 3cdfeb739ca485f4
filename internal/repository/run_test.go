package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/ReportDrop/internal/database"
	"github.com/dharsanguruparan/ReportDrop/internal/model"
)

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	require.NotNil(t, nullable("x"))
	assert.Equal(t, "x", *nullable("x"))
}

// TestRunRepository needs a scratch PostgreSQL database in
// REPORTDROP_TEST_DATABASE_URL.
func TestRunRepository(t *testing.T) {
	dsn := os.Getenv("REPORTDROP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("REPORTDROP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.EnsureSchema(ctx, pool))

	repo := NewRunRepository(pool)
	token := uuid.NewString()
	require.NoError(t, repo.Create(ctx, &model.Run{Token: token, Kind: "Alarm", ClientID: "c1", RecordID: "r1", State: model.StateReceived}))
	require.NoError(t, repo.MarkState(ctx, token, model.StateRendering))
	require.NoError(t, repo.MarkRendered(ctx, token, model.StateStreamed, 2048, ""))
	require.NoError(t, repo.MarkArchived(ctx, token, "reports/alarm/"+token+".pdf", 2))

	run, err := repo.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, model.StateStreamed, run.State)
	assert.Equal(t, int64(2048), run.Bytes)
	assert.Equal(t, 2, run.Pages)
	assert.Empty(t, run.Message)

	_, err = repo.Get(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, model.ErrRunNotFound))
	assert.True(t, errors.Is(repo.MarkState(ctx, uuid.NewString(), model.StateCleaned), model.ErrRunNotFound))
}
