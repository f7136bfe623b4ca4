package storage

import (
	"context"
	"testing"

	"github.com/careerbase/apigov/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(name string) *models.Service {
	return &models.Service{
		Name:         name,
		DisplayName:  "Resume AI",
		Enabled:      true,
		DailyLimit:   100,
		WeeklyLimit:  500,
		MonthlyLimit: 2000,
		RatePerSec:   5,
	}
}

func TestServiceStore_Upsert_And_Get(t *testing.T) {
	db := newTestDB(t)
	store := NewServiceStore(db)
	ctx := context.Background()

	svc := newTestService("resume-ai")
	require.NoError(t, store.Upsert(ctx, svc))

	got, err := store.Get(ctx, "resume-ai")
	require.NoError(t, err)
	assert.Equal(t, "Resume AI", got.DisplayName)
	assert.Equal(t, 100, got.DailyLimit)
	assert.Equal(t, float64(5), got.RatePerSec)
	assert.True(t, got.Enabled)
}

func TestServiceStore_Upsert_UpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	store := NewServiceStore(db)
	ctx := context.Background()

	svc := newTestService("resume-ai")
	require.NoError(t, store.Upsert(ctx, svc))

	svc.DailyLimit = 250
	svc.Enabled = false
	require.NoError(t, store.Upsert(ctx, svc))

	got, err := store.Get(ctx, "resume-ai")
	require.NoError(t, err)
	assert.Equal(t, 250, got.DailyLimit)
	assert.False(t, got.Enabled)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestServiceStore_Get_NotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewServiceStore(db)

	_, err := store.Get(context.Background(), "no-such-service")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceStore_ListEnabled(t *testing.T) {
	db := newTestDB(t)
	store := NewServiceStore(db)
	ctx := context.Background()

	enabled := newTestService("resume-ai")
	require.NoError(t, store.Upsert(ctx, enabled))

	disabled := newTestService("legacy-matcher")
	disabled.Enabled = false
	require.NoError(t, store.Upsert(ctx, disabled))

	services, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "resume-ai", services[0].Name)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
