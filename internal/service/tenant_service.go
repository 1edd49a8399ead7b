package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/crypto"
	"github.com/xauti/content_go_server/internal/pkg/dns"
	"github.com/xauti/content_go_server/internal/repository"
)

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrTenantInactive    = errors.New("this instance is disabled")
	ErrTenantExists      = errors.New("domain or subdomain already in use")
	ErrInvalidSubdomain  = errors.New("subdomain may only contain lowercase letters, digits and hyphens")
	ErrTenantNoDomain    = errors.New("tenant has no custom domain")
	ErrTenantNoSubdomain = errors.New("tenant has no subdomain")
	ErrDNSNotConfigured  = errors.New("DNS provisioning is not configured")
	ErrDNSProvider       = errors.New("DNS provider request failed")
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Credentials are the external API credentials used for one tenant. Empty
// tenant values fall back to the global configuration.
type Credentials struct {
	N8NWebhookURL       string
	StripeSecretKey     string
	StripeWebhookSecret string
	OpenAIKey           string
}

type TenantService struct {
	tenantRepo  *repository.TenantRepository
	encryptor   *crypto.Encryptor
	checker     *dns.Checker
	provisioner dns.Provisioner
	cfg         *config.Config
}

// NewTenantService accepts a nil provisioner when Cloudflare is not set up.
func NewTenantService(
	tenantRepo *repository.TenantRepository,
	encryptor *crypto.Encryptor,
	checker *dns.Checker,
	provisioner dns.Provisioner,
	cfg *config.Config,
) *TenantService {
	return &TenantService{
		tenantRepo:  tenantRepo,
		encryptor:   encryptor,
		checker:     checker,
		provisioner: provisioner,
		cfg:         cfg,
	}
}

// Resolve maps a request host to a tenant. The ?tenant= override wins over
// the Host header. A nil tenant means the primary instance.
func (s *TenantService) Resolve(host, override string) (*model.Tenant, error) {
	tenant, err := s.lookup(host, override)
	if err != nil {
		return nil, err
	}
	if tenant != nil && !tenant.IsActive {
		return nil, ErrTenantInactive
	}
	return tenant, nil
}

func (s *TenantService) lookup(host, override string) (*model.Tenant, error) {
	if sub := strings.ToLower(strings.TrimSpace(override)); sub != "" {
		return s.findOptional(s.tenantRepo.GetBySubdomain(sub))
	}

	host = normalizeHost(host)
	if host == "" {
		return nil, nil
	}

	tenant, err := s.findOptional(s.tenantRepo.GetByDomain(host))
	if err != nil || tenant != nil {
		return tenant, err
	}

	base := normalizeHost(s.cfg.Tenant.BaseDomain)
	if base == "" || !strings.HasSuffix(host, "."+base) {
		return nil, nil
	}
	sub := strings.TrimSuffix(host, "."+base)
	if sub == "" || strings.Contains(sub, ".") {
		return nil, nil
	}
	return s.findOptional(s.tenantRepo.GetBySubdomain(sub))
}

func (s *TenantService) findOptional(tenant *model.Tenant, err error) (*model.Tenant, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

// Credentials decrypts the tenant's secrets, filling blanks from config.
func (s *TenantService) Credentials(tenant *model.Tenant) (*Credentials, error) {
	creds := &Credentials{
		N8NWebhookURL:       s.cfg.N8N.WebhookURL,
		StripeSecretKey:     s.cfg.Stripe.SecretKey,
		StripeWebhookSecret: s.cfg.Stripe.WebhookSecret,
		OpenAIKey:           s.cfg.OpenAI.APIKey,
	}
	if tenant == nil {
		return creds, nil
	}

	if tenant.N8NWebhookURL != "" {
		creds.N8NWebhookURL = tenant.N8NWebhookURL
	}

	secrets := []struct {
		cipher string
		dst    *string
		name   string
	}{
		{tenant.StripeSecretKey, &creds.StripeSecretKey, "stripe_secret_key"},
		{tenant.StripeWebhookSecret, &creds.StripeWebhookSecret, "stripe_webhook_secret"},
		{tenant.OpenAIKey, &creds.OpenAIKey, "openai_key"},
	}
	for _, sec := range secrets {
		plain, err := s.encryptor.DecryptString(sec.cipher)
		if err != nil {
			return nil, fmt.Errorf("decrypt tenant %d %s: %w", tenant.ID, sec.name, err)
		}
		if plain != "" {
			*sec.dst = plain
		}
	}
	return creds, nil
}

// CredentialsByID loads the tenant first; 0 is the primary instance.
func (s *TenantService) CredentialsByID(tenantID int64) (*Credentials, error) {
	if tenantID == 0 {
		return s.Credentials(nil)
	}
	tenant, err := s.getTenant(tenantID)
	if err != nil {
		return nil, err
	}
	return s.Credentials(tenant)
}

// Branding returns the public look of the resolved instance.
func (s *TenantService) Branding(tenant *model.Tenant) *dto.BrandingInfo {
	if tenant == nil {
		return &dto.BrandingInfo{
			Name:     "Xauti Content Generator",
			Branding: map[string]interface{}{},
		}
	}
	branding := map[string]interface{}(tenant.Branding)
	if branding == nil {
		branding = map[string]interface{}{}
	}
	return &dto.BrandingInfo{
		TenantID: tenant.ID,
		Name:     tenant.Name,
		Branding: branding,
	}
}

func (s *TenantService) List() ([]*dto.TenantInfo, error) {
	tenants, err := s.tenantRepo.List()
	if err != nil {
		return nil, err
	}
	infos := make([]*dto.TenantInfo, 0, len(tenants))
	for _, t := range tenants {
		infos = append(infos, buildTenantInfo(t))
	}
	return infos, nil
}

func (s *TenantService) Get(id int64) (*dto.TenantInfo, error) {
	tenant, err := s.getTenant(id)
	if err != nil {
		return nil, err
	}
	return buildTenantInfo(tenant), nil
}

// Create stores a new tenant with its secrets encrypted.
func (s *TenantService) Create(req *dto.CreateTenantRequest) (*dto.TenantInfo, error) {
	domain := normalizeHost(req.Domain)
	sub := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if sub != "" && !subdomainPattern.MatchString(sub) {
		return nil, ErrInvalidSubdomain
	}

	exists, err := s.tenantRepo.ExistsByDomainOrSubdomain(domain, sub, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrTenantExists
	}

	tenant := &model.Tenant{
		Name:          strings.TrimSpace(req.Name),
		Domain:        optionalString(domain),
		Subdomain:     optionalString(sub),
		N8NWebhookURL: strings.TrimSpace(req.N8NWebhookURL),
		Branding:      req.Branding,
		IsActive:      true,
	}
	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}

	if tenant.StripeSecretKey, err = s.encryptor.EncryptString(req.StripeSecretKey); err != nil {
		return nil, err
	}
	if tenant.StripeWebhookSecret, err = s.encryptor.EncryptString(req.StripeWebhookSecret); err != nil {
		return nil, err
	}
	if tenant.OpenAIKey, err = s.encryptor.EncryptString(req.OpenAIKey); err != nil {
		return nil, err
	}

	if err := s.tenantRepo.Create(tenant); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"tenant_id": tenant.ID, "name": tenant.Name}).Info("tenant created")
	return buildTenantInfo(tenant), nil
}

// Update applies the fields present in req. An empty secret string clears
// the tenant override.
func (s *TenantService) Update(id int64, req *dto.UpdateTenantRequest) (*dto.TenantInfo, error) {
	tenant, err := s.getTenant(id)
	if err != nil {
		return nil, err
	}

	domain := derefHost(tenant.Domain)
	sub := deref(tenant.Subdomain)
	if req.Domain != nil {
		domain = normalizeHost(*req.Domain)
	}
	if req.Subdomain != nil {
		sub = strings.ToLower(strings.TrimSpace(*req.Subdomain))
		if sub != "" && !subdomainPattern.MatchString(sub) {
			return nil, ErrInvalidSubdomain
		}
	}
	if req.Domain != nil || req.Subdomain != nil {
		exists, err := s.tenantRepo.ExistsByDomainOrSubdomain(domain, sub, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrTenantExists
		}
		tenant.Domain = optionalString(domain)
		tenant.Subdomain = optionalString(sub)
	}

	if req.Name != nil {
		tenant.Name = strings.TrimSpace(*req.Name)
	}
	if req.N8NWebhookURL != nil {
		tenant.N8NWebhookURL = strings.TrimSpace(*req.N8NWebhookURL)
	}
	if req.Branding != nil {
		tenant.Branding = req.Branding
	}
	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}

	secrets := []struct {
		plain *string
		dst   *string
	}{
		{req.StripeSecretKey, &tenant.StripeSecretKey},
		{req.StripeWebhookSecret, &tenant.StripeWebhookSecret},
		{req.OpenAIKey, &tenant.OpenAIKey},
	}
	for _, sec := range secrets {
		if sec.plain == nil {
			continue
		}
		cipher, err := s.encryptor.EncryptString(strings.TrimSpace(*sec.plain))
		if err != nil {
			return nil, err
		}
		*sec.dst = cipher
	}

	if err := s.tenantRepo.Update(tenant); err != nil {
		return nil, err
	}
	return buildTenantInfo(tenant), nil
}

// Delete removes the tenant and, when one was provisioned, its DNS record.
func (s *TenantService) Delete(ctx context.Context, id int64) error {
	tenant, err := s.getTenant(id)
	if err != nil {
		return err
	}

	if tenant.DNSRecordID != "" && s.provisioner != nil {
		if err := s.provisioner.Delete(ctx, tenant.DNSRecordID); err != nil {
			log.WithError(err).WithField("tenant_id", id).Warn("failed to delete tenant DNS record")
		}
	}

	return s.tenantRepo.Delete(id)
}

// CheckDNS reports whether the tenant's custom domain points at us.
func (s *TenantService) CheckDNS(ctx context.Context, id int64) (*dto.DNSCheckResult, error) {
	tenant, err := s.getTenant(id)
	if err != nil {
		return nil, err
	}
	domain := derefHost(tenant.Domain)
	if domain == "" {
		return nil, ErrTenantNoDomain
	}

	result := s.checker.Check(ctx, domain, s.dnsTarget())
	out := &dto.DNSCheckResult{
		Domain:    result.Domain,
		CNAME:     result.CNAME,
		Addresses: result.Addresses,
		Target:    result.Target,
		Verified:  result.Verified,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	return out, nil
}

// ProvisionDNS points <subdomain>.<base_domain> at the platform and stores
// the record id.
func (s *TenantService) ProvisionDNS(ctx context.Context, id int64) (*dto.ProvisionDNSResult, error) {
	if s.provisioner == nil || s.cfg.Tenant.BaseDomain == "" {
		return nil, ErrDNSNotConfigured
	}

	tenant, err := s.getTenant(id)
	if err != nil {
		return nil, err
	}
	sub := deref(tenant.Subdomain)
	if sub == "" {
		return nil, ErrTenantNoSubdomain
	}

	name := sub + "." + normalizeHost(s.cfg.Tenant.BaseDomain)
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	record, err := s.provisioner.UpsertCNAME(ctx, name, s.dnsTarget())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDNSProvider, err)
	}

	if err := s.tenantRepo.UpdateFields(id, map[string]interface{}{
		"dns_record_id": record.ID,
	}); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tenant_id": id,
		"name":      record.Name,
		"record_id": record.ID,
	}).Info("tenant DNS provisioned")

	return &dto.ProvisionDNSResult{
		RecordID: record.ID,
		Name:     record.Name,
		Target:   record.Content,
	}, nil
}

func (s *TenantService) dnsTarget() string {
	if s.cfg.Tenant.DNSTarget != "" {
		return normalizeHost(s.cfg.Tenant.DNSTarget)
	}
	return normalizeHost(s.cfg.Tenant.BaseDomain)
}

func (s *TenantService) getTenant(id int64) (*model.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func buildTenantInfo(t *model.Tenant) *dto.TenantInfo {
	branding := map[string]interface{}(t.Branding)
	if branding == nil {
		branding = map[string]interface{}{}
	}
	return &dto.TenantInfo{
		ID:                     t.ID,
		Name:                   t.Name,
		Domain:                 deref(t.Domain),
		Subdomain:              deref(t.Subdomain),
		N8NWebhookURL:          t.N8NWebhookURL,
		HasStripeSecretKey:     t.StripeSecretKey != "",
		HasStripeWebhookSecret: t.StripeWebhookSecret != "",
		HasOpenAIKey:           t.OpenAIKey != "",
		Branding:               branding,
		IsActive:               t.IsActive,
		DNSRecordID:            t.DNSRecordID,
		CreatedAt:              t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              t.UpdatedAt.Format(time.RFC3339),
	}
}

// normalizeHost lowercases and strips the port and trailing dot.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefHost(s *string) string {
	return normalizeHost(deref(s))
}
