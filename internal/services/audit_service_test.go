package services

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostandfound/internal/models"
)

func newAuditFixture(t *testing.T, withRedis bool) (AuditService, *fakeEventRepo) {
	t.Helper()
	repo := newFakeEventRepo()
	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	svc := NewAuditService(repo, rdb, nil, 5, 24*time.Hour, 2, 3)
	return svc, repo
}

func TestRecordAppendsEvent(t *testing.T) {
	svc, repo := newAuditFixture(t, false)

	svc.Record(models.EventLogin, testEmail, true, "login ok")

	e := repo.last()
	require.NotNil(t, e)
	assert.Equal(t, models.EventLogin, e.Type)
	assert.Equal(t, testEmail, e.Identifier)
	assert.True(t, e.Success)
	assert.False(t, e.AlertFlag)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestAlertFlagCrossesThreshold(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		name := "sql"
		if withRedis {
			name = "redis"
		}
		t.Run(name, func(t *testing.T) {
			svc, repo := newAuditFixture(t, withRedis)

			for i := 0; i < 4; i++ {
				svc.Record(models.EventLogin, "eve@example.com", false, "wrong password")
				assert.False(t, repo.last().AlertFlag, "failure %d must not be flagged", i+1)
			}

			svc.Record(models.EventLogin, "eve@example.com", false, "wrong password")
			assert.True(t, repo.last().AlertFlag, "fifth failure crosses the threshold")

			svc.Record(models.EventLogin, "eve@example.com", false, "wrong password")
			assert.True(t, repo.last().AlertFlag, "flag stays set past the threshold")
		})
	}
}

func TestAlertFlagIsPerIdentifier(t *testing.T) {
	svc, repo := newAuditFixture(t, true)

	for i := 0; i < 5; i++ {
		svc.Record(models.EventLogin, "eve@example.com", false, "wrong password")
	}
	require.True(t, repo.last().AlertFlag)

	svc.Record(models.EventLogin, "ava@example.com", false, "wrong password")
	assert.False(t, repo.last().AlertFlag)
}

func TestSuccessAndNonLoginEventsNeverFlag(t *testing.T) {
	svc, repo := newAuditFixture(t, false)

	for i := 0; i < 10; i++ {
		svc.Record(models.EventLogin, testEmail, true, "login ok")
		svc.Record(models.EventVerification, testEmail, false, "code mismatch")
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, e := range repo.events {
		assert.False(t, e.AlertFlag)
	}
}

func TestSQLFallbackCountsOldFailures(t *testing.T) {
	svc, repo := newAuditFixture(t, false)

	// four failures already in the log, inside the window
	for i := 0; i < 4; i++ {
		repo.add(models.EventLogin, "eve@example.com", false, time.Now().Add(-time.Hour))
	}

	svc.Record(models.EventLogin, "eve@example.com", false, "wrong password")
	assert.True(t, repo.last().AlertFlag)
}

func TestSQLFallbackIgnoresFailuresOutsideWindow(t *testing.T) {
	svc, repo := newAuditFixture(t, false)

	for i := 0; i < 10; i++ {
		repo.add(models.EventLogin, "eve@example.com", false, time.Now().Add(-25*time.Hour))
	}

	svc.Record(models.EventLogin, "eve@example.com", false, "wrong password")
	assert.False(t, repo.last().AlertFlag)
}

func TestQueryAppliesLimitDefaults(t *testing.T) {
	svc, repo := newAuditFixture(t, false)

	for i := 0; i < 5; i++ {
		repo.add(models.EventLogin, testEmail, true, time.Now())
	}

	events, stats, err := svc.Query(models.AuthEventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2, "zero limit falls back to the default")
	assert.Equal(t, 5, stats.Total, "aggregates cover the filtered set, not the page")

	events, _, err = svc.Query(models.AuthEventFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, events, 3, "limit is capped")
}

func TestQueryNewestFirstWithStats(t *testing.T) {
	svc, repo := newAuditFixture(t, false)

	repo.add(models.EventLogin, testEmail, true, time.Now().Add(-2*time.Minute))
	repo.add(models.EventLogin, testEmail, false, time.Now().Add(-time.Minute))
	repo.add(models.EventVerification, testPhone, true, time.Now())

	events, stats, err := svc.Query(models.AuthEventFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventVerification, events[0].Type)
	assert.Equal(t, models.EventLogin, events[2].Type)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.ByType[models.EventLogin])

	// type filter narrows both the page and the aggregates
	events, stats, err = svc.Query(models.AuthEventFilter{Type: models.EventLogin, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 2, stats.Total)
}
