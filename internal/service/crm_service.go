package service

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/repository"
)

var (
	ErrCRMMissingEmail = errors.New("contact email is missing")
	ErrCRMInvalidBody  = errors.New("webhook body is not valid JSON")
)

// CRMs disagree on field names, so each value is looked up in order.
var (
	crmEmailPaths = []string{"email", "Email", "contact.email", "contact_email", "customer.email", "data.email", "payload.email"}
	crmTagPaths   = []string{"tags", "Tags", "contact.tags", "tag", "data.tags", "customData.tags"}
	crmNamePaths  = []string{"name", "full_name", "contact.name", "contact.full_name", "data.name"}
	crmFirstPaths = []string{"first_name", "firstName", "contact.first_name"}
	crmLastPaths  = []string{"last_name", "lastName", "contact.last_name"}
	crmEndPaths   = []string{"subscription_end", "subscriptionEndDate", "expires_at", "contact.subscription_end", "customData.subscription_end"}
)

// crmContact is the normalized webhook payload.
type crmContact struct {
	Email   string
	Name    string
	Tags    []string
	HasTags bool
	EndDate *time.Time
}

type CRMService struct {
	userRepo     *repository.UserRepository
	quotaService *QuotaService
	cfg          *config.Config
}

func NewCRMService(userRepo *repository.UserRepository, quotaService *QuotaService, cfg *config.Config) *CRMService {
	return &CRMService{
		userRepo:     userRepo,
		quotaService: quotaService,
		cfg:          cfg,
	}
}

// VerifySecret accepts anything when no secret is configured.
func (s *CRMService) VerifySecret(provided string) bool {
	secret := s.cfg.CRM.WebhookSecret
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) == 1
}

// HandleWebhook upserts the contact in the tenant, replaces its tags and
// re-derives tier and limit.
func (s *CRMService) HandleWebhook(tenantID int64, body []byte) (*dto.CRMSyncResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrCRMInvalidBody
	}
	contact := parseCRMContact(gjson.ParseBytes(body))
	if contact.Email == "" {
		return nil, ErrCRMMissingEmail
	}

	user, err := s.userRepo.GetByEmail(tenantID, contact.Email)
	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.newContactUser(tenantID, contact)
		if err != nil {
			return nil, err
		}
		created = true
	case err != nil:
		return nil, err
	default:
		if contact.HasTags {
			user.Tags = model.StringArray(contact.Tags)
		}
		if contact.Name != "" {
			user.Name = contact.Name
		}
		if contact.EndDate != nil {
			user.SubscriptionEndDate = contact.EndDate
		}
		s.quotaService.ApplyTier(user)
		if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
			"tags":                  user.Tags,
			"name":                  user.Name,
			"subscription_end_date": user.SubscriptionEndDate,
			"subscription_tier":     user.SubscriptionTier,
			"generations_limit":     user.GenerationsLimit,
			"subscription_status":   user.SubscriptionStatus,
		}); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"user_id":   user.ID,
		"tenant_id": tenantID,
		"created":   created,
		"tier":      user.SubscriptionTier,
		"tags":      len(user.Tags),
	}).Info("crm contact synced")

	return &dto.CRMSyncResult{
		UserID:           user.ID,
		Email:            user.Email,
		Created:          created,
		Tags:             user.Tags,
		Tier:             user.SubscriptionTier,
		GenerationsLimit: user.GenerationsLimit,
	}, nil
}

func (s *CRMService) newContactUser(tenantID int64, contact *crmContact) (*model.User, error) {
	user := &model.User{
		TenantID:            tenantID,
		Email:               contact.Email,
		Name:                contact.Name,
		Tags:                model.StringArray(contact.Tags),
		SubscriptionEndDate: contact.EndDate,
	}
	if user.Tags == nil {
		user.Tags = model.StringArray{}
	}

	// Without a default password the contact claims the account by signing up.
	if pw := s.cfg.CRM.DefaultPassword; pw != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hashed)
	}

	s.quotaService.ApplyTier(user)
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func parseCRMContact(body gjson.Result) *crmContact {
	contact := &crmContact{
		Email: normalizeEmail(firstString(body, crmEmailPaths...)),
		Name:  firstString(body, crmNamePaths...),
	}

	if contact.Name == "" {
		first := firstString(body, crmFirstPaths...)
		last := firstString(body, crmLastPaths...)
		contact.Name = strings.TrimSpace(first + " " + last)
	}

	for _, p := range crmTagPaths {
		if v := body.Get(p); v.Exists() {
			contact.Tags = parseTags(v)
			contact.HasTags = true
			break
		}
	}

	if end := firstString(body, crmEndPaths...); end != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, end); err == nil {
				t = t.UTC()
				contact.EndDate = &t
				break
			}
		}
	}
	return contact
}

// parseTags accepts ["a","b"], [{"name":"a"}], or "a, b".
func parseTags(v gjson.Result) []string {
	var raw []string
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			switch {
			case item.Type == gjson.String:
				raw = append(raw, item.Str)
			case item.IsObject():
				raw = append(raw, firstString(item, "name", "tag", "label"))
			}
		}
	case v.Type == gjson.String:
		raw = strings.Split(v.Str, ",")
	}

	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}
