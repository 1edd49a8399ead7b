package service

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/jwt"
	"github.com/xauti/content_go_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type AuthService struct {
	userRepo     *repository.UserRepository
	quotaService *QuotaService
	cfg          *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, quotaService *QuotaService, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		quotaService: quotaService,
		cfg:          cfg,
	}
}

// Register creates a free-tier account in the tenant and signs it in. A
// contact the CRM created without a password is claimed instead: it gets the
// password and keeps its tags, tier and bonus.
func (s *AuthService) Register(tenantID int64, req *dto.SignUpRequest) (*dto.SignInResponse, error) {
	email := normalizeEmail(req.Email)

	existing, err := s.userRepo.GetByEmail(tenantID, email)
	switch {
	case err == nil && existing.PasswordHash != "":
		return nil, ErrEmailExists
	case err == nil:
		return s.claim(existing, req)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		TenantID:           tenantID,
		Email:              email,
		Name:               strings.TrimSpace(req.Name),
		PasswordHash:       string(hashed),
		IsAdmin:            tenantID == 0 && s.isBootstrapAdmin(email),
		SubscriptionTier:   model.TierFree,
		GenerationsLimit:   s.cfg.Subscription.Limit(model.TierFree),
		SubscriptionStatus: model.SubscriptionInactive,
		Tags:               model.StringArray{},
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) claim(user *model.User, req *dto.SignUpRequest) (*dto.SignInResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = string(hashed)

	fields := map[string]interface{}{"password_hash": user.PasswordHash}
	if name := strings.TrimSpace(req.Name); user.Name == "" && name != "" {
		user.Name = name
		fields["name"] = name
	}
	if err := s.userRepo.UpdateFields(user.ID, fields); err != nil {
		return nil, err
	}
	if err := s.quotaService.Reconcile(user); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	}).Info("crm contact claimed its account")
	return s.issue(user)
}

// SignIn checks the password, re-derives the tier from the CRM tags and
// returns a token. A legacy plaintext password is accepted once and then
// replaced with its bcrypt hash.
func (s *AuthService) SignIn(tenantID int64, req *dto.SignInRequest) (*dto.SignInResponse, error) {
	user, err := s.userRepo.GetByEmail(tenantID, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.verifyPassword(user, req.Password); err != nil {
		return nil, err
	}

	if err := s.quotaService.Reconcile(user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// GetUserByID loads a user for the auth middleware.
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) verifyPassword(user *model.User, password string) error {
	if user.PasswordHash == "" {
		return ErrInvalidCredentials
	}

	if isBcryptHash(user.PasswordHash) {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{"password_hash": user.PasswordHash}); err != nil {
		return err
	}
	log.WithField("user_id", user.ID).Info("upgraded legacy password to bcrypt")
	return nil
}

func (s *AuthService) issue(user *model.User) (*dto.SignInResponse, error) {
	token, err := jwt.GenerateToken(user.ID, user.TenantID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.SignInResponse{
		Token: token,
		User:  buildUserInfo(user, s.quotaService.BuildQuotaInfo(user)),
	}, nil
}

func (s *AuthService) isBootstrapAdmin(email string) bool {
	for _, admin := range s.cfg.Admin.Emails {
		if normalizeEmail(admin) == email {
			return true
		}
	}
	return false
}

func buildUserInfo(user *model.User, quota *dto.QuotaInfo) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.Name,
		IsAdmin:            user.IsAdmin,
		SubscriptionTier:   user.SubscriptionTier,
		SubscriptionStatus: user.SubscriptionStatus,
		Tags:               []string(user.Tags),
		Quota:              quota,
		CreatedAt:          user.CreatedAt.Format(time.RFC3339),
	}
	if info.Tags == nil {
		info.Tags = []string{}
	}
	if user.SubscriptionEndDate != nil {
		info.SubscriptionEndDate = user.SubscriptionEndDate.Format(time.RFC3339)
	}
	return info
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
