package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/repository"
	"github.com/xauti/content_go_server/internal/testutil"
)

func TestUserService_GetProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	cfg := testConfig()
	service := NewUserService(userRepo, NewQuotaService(userRepo, cfg), cfg)

	user := testutil.TestUser(t, db, testutil.WithTier(model.TierBasic, 5), testutil.WithUsage(2, 1))

	info, err := service.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, info.Email)
	assert.Equal(t, []string{"basic"}, info.Tags)
	require.NotNil(t, info.Quota)
	assert.Equal(t, 4, info.Quota.Remaining)
	assert.False(t, info.Quota.ScriptsEnabled)

	_, err = service.GetProfile(99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_ChangePassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	cfg := testConfig()
	service := NewUserService(userRepo, NewQuotaService(userRepo, cfg), cfg)
	user := testutil.TestUser(t, db)

	err := service.ChangePassword(user.ID, &dto.ChangePasswordRequest{
		CurrentPassword: "wrong-password",
		NewPassword:     "new-password-123",
	})
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = service.ChangePassword(user.ID, &dto.ChangePasswordRequest{
		CurrentPassword: testutil.TestPassword,
		NewPassword:     "new-password-123",
	})
	require.NoError(t, err)

	found, _ := userRepo.GetByID(user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte("new-password-123")))
}

func TestUserService_ChangePassword_Legacy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	cfg := testConfig()
	service := NewUserService(userRepo, NewQuotaService(userRepo, cfg), cfg)
	user := testutil.TestUser(t, db, testutil.WithPasswordHash("legacy-plain"))

	err := service.ChangePassword(user.ID, &dto.ChangePasswordRequest{
		CurrentPassword: "legacy-plain",
		NewPassword:     "new-password-123",
	})
	require.NoError(t, err)

	found, _ := userRepo.GetByID(user.ID)
	assert.True(t, isBcryptHash(found.PasswordHash))
}
