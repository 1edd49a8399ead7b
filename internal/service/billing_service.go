package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/payment"
	"github.com/xauti/content_go_server/internal/repository"
)

var (
	ErrPackageNotFound       = errors.New("package not found")
	ErrPaymentsNotConfigured = errors.New("payments are not configured for this instance")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrInvalidPurchase       = errors.New("checkout session does not describe a valid purchase")
	ErrSessionMismatch       = errors.New("checkout session belongs to another user")
	ErrPaymentProvider       = errors.New("payment provider request failed")
)

type BillingService struct {
	db            *gorm.DB
	userRepo      *repository.UserRepository
	purchaseRepo  *repository.PurchaseRepository
	tenantService *TenantService
	gateway       payment.Gateway
	cfg           *config.Config
}

// NewBillingService needs the db handle to credit purchases in one
// transaction.
func NewBillingService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	purchaseRepo *repository.PurchaseRepository,
	tenantService *TenantService,
	gateway payment.Gateway,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		db:            db,
		userRepo:      userRepo,
		purchaseRepo:  purchaseRepo,
		tenantService: tenantService,
		gateway:       gateway,
		cfg:           cfg,
	}
}

// Packages lists the add-on generation packs.
func (s *BillingService) Packages() []*dto.PackageInfo {
	out := make([]*dto.PackageInfo, 0, len(s.cfg.Stripe.Packages))
	for _, p := range s.cfg.Stripe.Packages {
		out = append(out, &dto.PackageInfo{
			ID:          p.ID,
			Name:        p.Name,
			Generations: p.Generations,
			PriceCents:  p.PriceCents,
			Currency:    s.cfg.Stripe.Currency,
		})
	}
	return out
}

// Tiers lists subscription tiers from highest to lowest.
func (s *BillingService) Tiers() []*dto.TierInfo {
	names := rankedTiers(s.cfg.Subscription.Tiers)
	out := make([]*dto.TierInfo, 0, len(names))
	for _, name := range names {
		rule := s.cfg.Subscription.Tiers[name]
		display := rule.DisplayName
		if display == "" {
			display = name
		}
		out = append(out, &dto.TierInfo{
			Tier:             name,
			DisplayName:      display,
			GenerationsLimit: rule.GenerationsLimit,
			PriceCents:       rule.PriceCents,
			ScriptsEnabled:   Tier(name).AllowsScripts(),
		})
	}
	return out
}

// CreateCheckout opens a Stripe Checkout session for an add-on package,
// charged to the tenant's Stripe account.
func (s *BillingService) CreateCheckout(ctx context.Context, userID int64, tenant *model.Tenant, packageID string) (*dto.CheckoutResponse, error) {
	pkg, ok := s.cfg.Stripe.Package(packageID)
	if !ok {
		return nil, ErrPackageNotFound
	}

	creds, err := s.tenantService.Credentials(tenant)
	if err != nil {
		return nil, err
	}
	if creds.StripeSecretKey == "" {
		return nil, ErrPaymentsNotConfigured
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	base := s.frontendURL(tenant)
	sess, err := s.gateway.CreateCheckout(ctx, &payment.CheckoutParams{
		SecretKey:     creds.StripeSecretKey,
		UserID:        user.ID,
		TenantID:      tenantIDOf(tenant),
		PackageID:     pkg.ID,
		ProductName:   pkg.Name,
		Generations:   pkg.Generations,
		AmountCents:   pkg.PriceCents,
		Currency:      s.cfg.Stripe.Currency,
		PriceID:       pkg.PriceID,
		CustomerEmail: user.Email,
		CustomerID:    user.StripeCustomerID,
		SuccessURL:    base + "/dashboard?purchase=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     base + "/dashboard?purchase=cancelled",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	log.WithFields(log.Fields{
		"user_id":    user.ID,
		"package_id": pkg.ID,
		"session_id": sess.ID,
	}).Info("checkout session created")

	return &dto.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// HandleWebhook verifies a Stripe event and credits completed checkouts.
// Other event types are acknowledged and ignored.
func (s *BillingService) HandleWebhook(tenant *model.Tenant, payload []byte, signature string) error {
	creds, err := s.tenantService.Credentials(tenant)
	if err != nil {
		return err
	}
	if creds.StripeWebhookSecret == "" {
		return ErrPaymentsNotConfigured
	}

	event, err := s.gateway.ParseWebhook(payload, signature, creds.StripeWebhookSecret)
	if err != nil {
		log.WithError(err).Warn("stripe webhook rejected")
		return ErrInvalidSignature
	}

	if event.Type != payment.EventCheckoutCompleted || event.Session == nil {
		log.WithField("type", event.Type).Debug("stripe event ignored")
		return nil
	}
	if !event.Session.Paid() {
		log.WithField("session_id", event.Session.ID).Info("checkout completed without payment, waiting")
		return nil
	}

	_, err = s.RecordPurchase(event.Session)
	return err
}

// VerifySession reconciles a checkout when the user returns before the
// webhook arrived.
func (s *BillingService) VerifySession(ctx context.Context, userID int64, tenant *model.Tenant, sessionID string) (*dto.VerifyPurchaseResponse, error) {
	creds, err := s.tenantService.Credentials(tenant)
	if err != nil {
		return nil, err
	}
	if creds.StripeSecretKey == "" {
		return nil, ErrPaymentsNotConfigured
	}

	sess, err := s.gateway.GetSession(ctx, creds.StripeSecretKey, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	if sess.MetadataInt("user_id") != userID {
		return nil, ErrSessionMismatch
	}

	resp := &dto.VerifyPurchaseResponse{}
	if sess.Paid() {
		if _, err := s.RecordPurchase(sess); err != nil {
			return nil, err
		}
		resp.Credited = true
		resp.Generations = int(sess.MetadataInt("generations"))
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	resp.BonusGenerations = user.BonusGenerations
	return resp, nil
}

// RecordPurchase appends the ledger row and adds the bonus generations in
// one transaction. It reports false when the payment was already recorded.
func (s *BillingService) RecordPurchase(sess *payment.Session) (bool, error) {
	userID := sess.MetadataInt("user_id")
	generations := int(sess.MetadataInt("generations"))
	if userID <= 0 || generations <= 0 {
		return false, ErrInvalidPurchase
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if user.TenantID != sess.MetadataInt("tenant_id") {
		return false, ErrInvalidPurchase
	}

	paymentID := sess.PaymentID()
	credited := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		purchases := s.purchaseRepo.WithTx(tx)
		exists, err := purchases.ExistsByPaymentID(paymentID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		if err := purchases.Create(&model.GenerationPurchase{
			UserID:          user.ID,
			TenantID:        user.TenantID,
			PackageID:       sess.Metadata["package_id"],
			Generations:     generations,
			AmountCents:     sess.AmountTotal,
			Currency:        sess.Currency,
			StripeSessionID: sess.ID,
			StripePaymentID: paymentID,
		}); err != nil {
			return err
		}

		users := s.userRepo.WithTx(tx)
		if err := users.AddBonus(user.ID, generations); err != nil {
			return err
		}
		if sess.CustomerID != "" && user.StripeCustomerID == "" {
			if err := users.UpdateFields(user.ID, map[string]interface{}{
				"stripe_customer_id": sess.CustomerID,
			}); err != nil {
				return err
			}
		}
		credited = true
		return nil
	})
	if err != nil {
		// A concurrent delivery may have won the unique payment id.
		if exists, existsErr := s.purchaseRepo.ExistsByPaymentID(paymentID); existsErr == nil && exists {
			return false, nil
		}
		return false, fmt.Errorf("record purchase %s: %w", paymentID, err)
	}

	if credited {
		log.WithFields(log.Fields{
			"user_id":     user.ID,
			"generations": generations,
			"payment_id":  paymentID,
		}).Info("add-on generations credited")
	}
	return credited, nil
}

// History lists the user's purchases, newest first.
func (s *BillingService) History(userID int64) ([]*dto.PurchaseItem, error) {
	purchases, err := s.purchaseRepo.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.PurchaseItem, 0, len(purchases))
	for _, p := range purchases {
		items = append(items, &dto.PurchaseItem{
			ID:          p.ID,
			PackageID:   p.PackageID,
			Generations: p.Generations,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

// frontendURL sends buyers back to the host they bought on.
func (s *BillingService) frontendURL(tenant *model.Tenant) string {
	if tenant != nil {
		if d := deref(tenant.Domain); d != "" {
			return "https://" + d
		}
		if sub := deref(tenant.Subdomain); sub != "" && s.cfg.Tenant.BaseDomain != "" {
			return "https://" + sub + "." + normalizeHost(s.cfg.Tenant.BaseDomain)
		}
	}
	return strings.TrimRight(s.cfg.Stripe.FrontendURL, "/")
}
