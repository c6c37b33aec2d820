package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	stripego "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"

	"storefront-backend/internal/domain"
	"storefront-backend/internal/usecase"
)

const testWebhookSecret = "whsec_test_secret"

// fakeStripe serves canned API responses and records form posts.
type fakeStripe struct {
	mu    sync.Mutex
	forms map[string]map[string]string
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		f.mu.Lock()
		if f.forms == nil {
			f.forms = map[string]map[string]string{}
		}
		vals := map[string]string{}
		for k := range r.PostForm {
			vals[k] = r.PostForm.Get(k)
		}
		f.forms[r.URL.Path] = vals
		f.mu.Unlock()
	}
	switch {
	case r.URL.Path == "/v1/checkout/sessions/cs_789":
		_, _ = w.Write([]byte(`{
			"id": "cs_789",
			"object": "checkout.session",
			"amount_total": 5000,
			"currency": "usd",
			"payment_status": "paid",
			"payment_intent": "pi_123",
			"customer_email": "fallback@example.com",
			"customer_details": {"email": "a@example.com"}
		}`))
	case r.URL.Path == "/v1/checkout/sessions/cs_789/line_items":
		_, _ = w.Write([]byte(`{
			"object": "list",
			"url": "/v1/checkout/sessions/cs_789/line_items",
			"has_more": false,
			"data": [
				{"id": "li_1", "object": "item", "description": "House wash", "quantity": 1, "amount_subtotal": 3500,
				 "price": {"id": "price_1", "object": "price", "unit_amount": 3500,
				           "product": {"id": "prod_1", "object": "product", "name": "House wash", "description": "Two-story soft wash"}}},
				{"id": "li_2", "object": "item", "description": "Gutter rinse", "quantity": 3, "amount_subtotal": 1500}
			]
		}`))
	case r.URL.Path == "/v1/checkout/sessions/cs_missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "No such checkout.session: cs_missing"}}`))
	case r.URL.Path == "/v1/coupons":
		_, _ = w.Write([]byte(`{"id": "co_new", "object": "coupon", "percent_off": 10, "duration": "once"}`))
	case r.URL.Path == "/v1/promotion_codes":
		_, _ = w.Write([]byte(`{"id": "promo_1", "object": "promotion_code", "code": "THANKS10AB", "max_redemptions": 1}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "unknown path"}}`))
	}
}

func newTestClient(t *testing.T) (*Client, *fakeStripe) {
	t.Helper()
	fake := &fakeStripe{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(srv.URL),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})
	c := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Backends:      &stripego.Backends{API: backend, Connect: backend, Uploads: backend},
	})
	return c, fake
}

func TestClient_GetSession(t *testing.T) {
	c, _ := newTestClient(t)
	s, err := c.GetSession(context.Background(), "cs_789")
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if s.AmountTotal != 5000 || s.Currency != "usd" || s.PaymentStatus != "paid" {
		t.Fatalf("session = %+v", s)
	}
	if s.PaymentIntentID != "pi_123" {
		t.Fatalf("payment intent = %q", s.PaymentIntentID)
	}
	if s.CustomerEmail != "a@example.com" {
		t.Fatalf("customer details email should win, got %q", s.CustomerEmail)
	}
	if len(s.LineItems) != 2 {
		t.Fatalf("line items = %d", len(s.LineItems))
	}
	if li := s.LineItems[0]; li.UnitAmount != 3500 || li.ProductDetail != "Two-story soft wash" {
		t.Fatalf("first line item = %+v", li)
	}
	if li := s.LineItems[1]; li.UnitAmount != 0 || li.AmountSubtotal != 1500 || li.Quantity != 3 {
		t.Fatalf("second line item = %+v", li)
	}
}

func TestClient_GetSessionPropagatesProviderError(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.GetSession(context.Background(), "cs_missing"); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestClient_CouponAndPromotionCode(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	couponID, err := c.CreateCoupon(ctx, usecase.CouponSpec{PercentOff: 10, Name: "Loyalty"})
	if err != nil {
		t.Fatalf("CreateCoupon error: %v", err)
	}
	if couponID != "co_new" {
		t.Fatalf("coupon id = %q", couponID)
	}
	promo, err := c.CreatePromotionCode(ctx, usecase.PromotionSpec{
		CouponID:       couponID,
		MaxRedemptions: 1,
		Identity:       domain.NewIdentity("user_42", "a@example.com"),
		Tier:           1,
	})
	if err != nil {
		t.Fatalf("CreatePromotionCode error: %v", err)
	}
	if promo.ID != "promo_1" || promo.Code != "THANKS10AB" {
		t.Fatalf("promo = %+v", promo)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	coupon := fake.forms["/v1/coupons"]
	if coupon["percent_off"] != "10" || coupon["duration"] != "once" {
		t.Fatalf("coupon form = %v", coupon)
	}
	pf := fake.forms["/v1/promotion_codes"]
	if pf["coupon"] != "co_new" || pf["max_redemptions"] != "1" {
		t.Fatalf("promotion form = %v", pf)
	}
	if pf["metadata[user_id]"] != "user_42" || pf["metadata[email]"] != "a@example.com" || pf["metadata[tier]"] != "1" {
		t.Fatalf("promotion metadata = %v", pf)
	}
}

func TestClient_ParseWebhook(t *testing.T) {
	c := New(Config{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_789","object":"checkout.session"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})

	ev, err := c.ParseWebhook(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("ParseWebhook error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != "checkout.session.completed" || ev.SessionID != "cs_789" {
		t.Fatalf("event = %+v", ev)
	}

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})
	_, err = c.ParseWebhook(forged.Payload, forged.Header)
	if !errors.Is(err, usecase.ErrSignature) {
		t.Fatalf("want ErrSignature, got %v", err)
	}
	_, err = c.ParseWebhook(payload, "")
	if err == nil || !strings.Contains(err.Error(), usecase.ErrSignature.Error()) {
		t.Fatalf("missing header should fail signature check, got %v", err)
	}
}

func TestClient_ParseWebhookOtherEventType(t *testing.T) {
	c := New(Config{WebhookSecret: testWebhookSecret})
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
	ev, err := c.ParseWebhook(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("ParseWebhook error: %v", err)
	}
	if ev.Type != "invoice.paid" || ev.SessionID != "" {
		t.Fatalf("event = %+v", ev)
	}
}
