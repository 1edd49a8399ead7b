package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/repository"
	"github.com/xauti/content_go_server/internal/service"
	"github.com/xauti/content_go_server/internal/testutil"
)

func setupCronService(t *testing.T) (*Service, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	userRepo := repository.NewUserRepository(db)
	quotaService := service.NewQuotaService(userRepo, cfg)
	generationService := service.NewGenerationService(
		repository.NewContentRequestRepository(db),
		quotaService,
		nil,
		nil,
		nil,
		nil,
		cfg,
	)
	cronService := NewService(quotaService, generationService)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return cronService, db, cleanup
}

func TestNewService(t *testing.T) {
	svc := NewService(nil, nil)
	assert.NotNil(t, svc)
	assert.Nil(t, svc.quotaService)
	assert.NotNil(t, svc.stopChan)
	assert.Equal(t, time.Minute, svc.sweepInterval)
}

func TestNextMonthStart(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid month", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"december rolls year", time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"exactly on the first", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"non-UTC input", time.Date(2026, 1, 31, 23, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextMonthStart(tt.now))
		})
	}
}

func TestService_StartAndStop(t *testing.T) {
	svc, _, cleanup := setupCronService(t)
	defer cleanup()

	svc.Start()
	time.Sleep(10 * time.Millisecond)
	svc.Stop()
	time.Sleep(10 * time.Millisecond)
}

func TestService_RunNow(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	within := testutil.TestUser(t, db, testutil.WithUsage(3, 4))
	overspent := testutil.TestUser(t, db, testutil.WithEmail("over@example.com"), testutil.WithUsage(8, 4))

	require.NoError(t, svc.RunNow())

	var updated model.User
	require.NoError(t, db.First(&updated, within.ID).Error)
	assert.Equal(t, 0, updated.GenerationsUsed)
	assert.Equal(t, 4, updated.BonusGenerations)

	require.NoError(t, db.First(&updated, overspent.ID).Error)
	assert.Equal(t, 0, updated.GenerationsUsed)
	assert.Equal(t, 1, updated.BonusGenerations)
}

func TestService_RunNow_NoUsers(t *testing.T) {
	svc, _, cleanup := setupCronService(t)
	defer cleanup()

	assert.NoError(t, svc.RunNow())
}

func TestService_SweepStale(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsage(1, 0))
	stale := testutil.TestContentRequest(t, db, user.ID,
		testutil.WithStatus(model.StatusProcessing),
		testutil.WithStartedAt(time.Now().Add(-time.Hour)))

	assert.Equal(t, 1, svc.sweepStale())

	var req model.ContentRequest
	require.NoError(t, db.First(&req, stale.ID).Error)
	assert.Equal(t, model.StatusFailed, req.Status)
}

func TestService_NilDependencies(t *testing.T) {
	svc := NewService(nil, nil)
	assert.Equal(t, 0, svc.sweepStale())
	svc.resetMonthlyQuotas()
}

func TestService_StopBeforeStart(t *testing.T) {
	svc, _, cleanup := setupCronService(t)
	defer cleanup()

	svc.Stop()
}
