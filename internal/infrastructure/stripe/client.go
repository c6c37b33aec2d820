package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	stripego "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"

	"storefront-backend/internal/usecase"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the API transport; nil uses the live Stripe API.
	Backends *stripego.Backends
}

type Client struct {
	api           *client.API
	webhookSecret string
}

func New(cfg Config) *Client {
	return &Client{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (usecase.CheckoutSession, error) {
	var out usecase.CheckoutSession
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return out, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	out = usecase.CheckoutSession{
		ID:            s.ID,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		PaymentStatus: string(s.PaymentStatus),
		CustomerEmail: sessionEmail(s),
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Invoice != nil {
		out.InvoiceID = s.Invoice.ID
	}

	lp := &stripego.CheckoutSessionListLineItemsParams{Session: stripego.String(sessionID)}
	lp.Context = ctx
	lp.Limit = stripego.Int64(100)
	lp.AddExpand("data.price.product")
	it := c.api.CheckoutSessions.ListLineItems(lp)
	for it.Next() {
		out.LineItems = append(out.LineItems, convertLineItem(it.LineItem()))
	}
	if err := it.Err(); err != nil {
		return out, fmt.Errorf("list line items for %s: %w", sessionID, err)
	}
	return out, nil
}

func sessionEmail(s *stripego.CheckoutSession) string {
	if s.CustomerDetails != nil && strings.TrimSpace(s.CustomerDetails.Email) != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

func convertLineItem(li *stripego.LineItem) usecase.CheckoutLineItem {
	out := usecase.CheckoutLineItem{
		Description:    li.Description,
		Quantity:       li.Quantity,
		AmountSubtotal: li.AmountSubtotal,
	}
	if li.Price != nil {
		out.UnitAmount = li.Price.UnitAmount
		if p := li.Price.Product; p != nil {
			out.ProductDetail = p.Description
			if out.Description == "" {
				out.Description = p.Name
			}
		}
	}
	return out
}

func (c *Client) CreateCoupon(ctx context.Context, spec usecase.CouponSpec) (string, error) {
	params := &stripego.CouponParams{
		PercentOff: stripego.Float64(spec.PercentOff),
		Duration:   stripego.String(string(stripego.CouponDurationOnce)),
	}
	if spec.Name != "" {
		params.Name = stripego.String(spec.Name)
	}
	params.Context = ctx
	cp, err := c.api.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("create coupon: %w", err)
	}
	return cp.ID, nil
}

func (c *Client) CreatePromotionCode(ctx context.Context, spec usecase.PromotionSpec) (usecase.PromotionCode, error) {
	params := &stripego.PromotionCodeParams{
		Coupon:         stripego.String(spec.CouponID),
		MaxRedemptions: stripego.Int64(spec.MaxRedemptions),
	}
	params.Context = ctx
	if spec.Identity.UserID != "" {
		params.AddMetadata("user_id", spec.Identity.UserID)
	}
	if spec.Identity.Email != "" {
		params.AddMetadata("email", spec.Identity.Email)
	}
	params.AddMetadata("tier", strconv.Itoa(spec.Tier))
	pc, err := c.api.PromotionCodes.New(params)
	if err != nil {
		return usecase.PromotionCode{}, fmt.Errorf("create promotion code: %w", err)
	}
	return usecase.PromotionCode{ID: pc.ID, Code: pc.Code}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Events sent with an API version other than the library's are accepted.
func (c *Client) ParseWebhook(payload []byte, signatureHeader string) (usecase.WebhookEvent, error) {
	var out usecase.WebhookEvent
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return out, fmt.Errorf("%w: %v", usecase.ErrSignature, err)
	}
	out.ID = ev.ID
	out.Type = string(ev.Type)
	if ev.Type == stripego.EventTypeCheckoutSessionCompleted && ev.Data != nil {
		var s stripego.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return out, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = s.ID
	}
	return out, nil
}
