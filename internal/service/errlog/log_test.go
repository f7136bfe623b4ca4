package errlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLog builds a log over real storage, with the service row and a
// parent call record in place so error inserts satisfy their foreign keys
func newTestLog(t *testing.T) (*Log, *storage.ErrorStore, string) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	services := storage.NewServiceStore(db)
	require.NoError(t, services.Upsert(ctx, &models.Service{
		Name:        "resume-ai",
		DisplayName: "Resume AI",
		Enabled:     true,
	}))

	call := &models.CallRecord{
		ServiceName: "resume-ai",
		Endpoint:    "/v1/score",
		StartedAt:   time.Now().UTC(),
		DurationMs:  100,
		Outcome:     models.OutcomeFailure,
	}
	require.NoError(t, storage.NewCallStore(db).Insert(ctx, call))

	store := storage.NewErrorStore(db)
	return New(store), store, call.ID
}

func seedErrors(t *testing.T, store *storage.ErrorStore, callID, service string, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		require.NoError(t, store.Insert(context.Background(), &models.ErrorRecord{
			CallID:      callID,
			ServiceName: service,
			Endpoint:    "/v1/score",
			Kind:        models.KindTimeout,
			Message:     "deadline exceeded",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestRecent_DefaultLimit(t *testing.T) {
	log, store, callID := newTestLog(t)
	seedErrors(t, store, callID, "resume-ai", 60)

	records, err := log.Recent(context.Background(), "resume-ai", 0)
	require.NoError(t, err)
	assert.Len(t, records, defaultLimit)
}

func TestRecent_ClampsOversizedLimit(t *testing.T) {
	log, store, callID := newTestLog(t)
	seedErrors(t, store, callID, "resume-ai", 5)

	records, err := log.Recent(context.Background(), "resume-ai", 100000)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestCountSince(t *testing.T) {
	log, store, callID := newTestLog(t)
	seedErrors(t, store, callID, "resume-ai", 10)

	count, err := log.CountSince(context.Background(), "resume-ai", time.Now().UTC().Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
