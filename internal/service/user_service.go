package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/repository"
)

var ErrWrongPassword = errors.New("current password is incorrect")

type UserService struct {
	userRepo     *repository.UserRepository
	quotaService *QuotaService
	cfg          *config.Config
}

func NewUserService(userRepo *repository.UserRepository, quotaService *QuotaService, cfg *config.Config) *UserService {
	return &UserService{
		userRepo:     userRepo,
		quotaService: quotaService,
		cfg:          cfg,
	}
}

// GetProfile returns the user with quota details.
func (s *UserService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.quotaService.getUser(userID)
	if err != nil {
		return nil, err
	}
	return buildUserInfo(user, s.quotaService.BuildQuotaInfo(user)), nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(userID int64, req *dto.ChangePasswordRequest) error {
	user, err := s.quotaService.getUser(userID)
	if err != nil {
		return err
	}

	current := []byte(req.CurrentPassword)
	switch {
	case isBcryptHash(user.PasswordHash):
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), current) != nil {
			return ErrWrongPassword
		}
	case user.PasswordHash == "" || user.PasswordHash != req.CurrentPassword:
		return ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.UpdateFields(userID, map[string]interface{}{"password_hash": string(hashed)})
}
