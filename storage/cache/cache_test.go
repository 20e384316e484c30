package draftcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/student"
	"github.com/trezcool/admissions/tests"
)

func testDraftStore(t *testing.T, s admission.DraftStore) {
	ctx := context.Background()
	d := admission.Draft{
		ID:        "draft-1",
		Profile:   student.Profile{FirstName: "Asha", LastName: "Patel"},
		AmountNow: testutil.Dec("1500.50"),
		Steps:     []admission.DraftStep{admission.StepProfile},
	}
	require.NoError(t, s.SaveDraft(ctx, d))

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Profile.FirstName)
	assert.True(t, got.AmountNow.Equal(d.AmountNow))
	assert.True(t, got.HasStep(admission.StepProfile))

	require.NoError(t, s.DeleteDraft(ctx, d.ID))
	_, err = s.GetDraft(ctx, d.ID)
	assert.Equal(t, core.ErrNotFound, errors.Cause(err))
}

func TestMemoryStore(t *testing.T) {
	testDraftStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_expiry(t *testing.T) {
	now := time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, s.SaveDraft(ctx, admission.Draft{ID: "d"}))

	testutil.FreezeTime(t, now.Add(59*time.Second))
	_, err := s.GetDraft(ctx, "d")
	require.NoError(t, err)

	testutil.FreezeTime(t, now.Add(time.Minute))
	_, err = s.GetDraft(ctx, "d")
	assert.Equal(t, core.ErrNotFound, errors.Cause(err))
}

// TestRedisStore needs a Redis server: TEST_REDIS_ADDRESS=localhost:6379
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDRESS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	testDraftStore(t, NewRedisStore(client, time.Minute))
}
