package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

const EventCheckoutCompleted = "checkout.session.completed"

var ErrNotConfigured = errors.New("stripe is not configured")

// CheckoutParams describes a one-off add-on purchase.
type CheckoutParams struct {
	SecretKey     string
	UserID        int64
	TenantID      int64
	PackageID     string
	ProductName   string
	Generations   int
	AmountCents   int64
	Currency      string
	PriceID       string
	CustomerEmail string
	CustomerID    string
	SuccessURL    string
	CancelURL     string
}

// Session is the subset of a Checkout Session the billing flow needs.
type Session struct {
	ID              string
	URL             string
	PaymentStatus   string
	PaymentIntentID string
	CustomerID      string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
}

// Paid reports whether Stripe has captured the payment.
func (s *Session) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
}

// PaymentID identifies the payment for idempotency. Free sessions have no
// payment intent, so the session id stands in.
func (s *Session) PaymentID() string {
	if s.PaymentIntentID != "" {
		return s.PaymentIntentID
	}
	return s.ID
}

func (s *Session) MetadataInt(key string) int64 {
	v, _ := strconv.ParseInt(s.Metadata[key], 10, 64)
	return v
}

// Event is a verified webhook event.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

// Gateway is the payment provider used by the billing service.
type Gateway interface {
	CreateCheckout(ctx context.Context, p *CheckoutParams) (*Session, error)
	GetSession(ctx context.Context, secretKey, sessionID string) (*Session, error)
	ParseWebhook(payload []byte, signature, secret string) (*Event, error)
}

// StripeGateway talks to Stripe with a client per secret key, so tenants
// charge into their own accounts.
type StripeGateway struct {
	backends *stripe.Backends
}

// NewStripeGateway uses the default Stripe backends when backends is nil.
func NewStripeGateway(backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{backends: backends}
}

func (g *StripeGateway) api(secretKey string) (*client.API, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	return client.New(secretKey, g.backends), nil
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, p *CheckoutParams) (*Session, error) {
	sc, err := g.api(p.SecretKey)
	if err != nil {
		return nil, err
	}

	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if p.PriceID != "" {
		item.Price = stripe.String(p.PriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(p.Currency),
			UnitAmount: stripe.Int64(p.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(p.ProductName),
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{item},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(p.UserID, 10)),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatInt(p.UserID, 10))
	params.AddMetadata("tenant_id", strconv.FormatInt(p.TenantID, 10))
	params.AddMetadata("package_id", p.PackageID)
	params.AddMetadata("generations", strconv.Itoa(p.Generations))

	sess, err := sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripe(sess), nil
}

func (g *StripeGateway) GetSession(ctx context.Context, secretKey, sessionID string) (*Session, error) {
	sc, err := g.api(secretKey)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return fromStripe(sess), nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature, secret string) (*Event, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Type == EventCheckoutCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = fromStripe(&sess)
	}
	return out, nil
}

func fromStripe(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
