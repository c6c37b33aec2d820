package usecase

import (
	"context"

	"storefront-backend/internal/domain"
)

type OrderRepo interface {
	GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, bool, error)
	// CreateOrder inserts o unless an order for o.StripeSessionID already
	// exists, in which case it reports false and leaves the store unchanged.
	CreateOrder(ctx context.Context, o *domain.Order) (bool, error)
	PutOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	// BackfillOrderIdentity sets user id and email only where they are blank
	// and returns the stored order.
	BackfillOrderIdentity(ctx context.Context, orderID string, id domain.Identity) (*domain.Order, error)
	ListOrders(ctx context.Context, id domain.Identity, page, pageSize int) ([]domain.Order, int, error)
}

type RewardRepo interface {
	// AppendLedger is a no-op returning false when the order already earned
	// an entry.
	AppendLedger(ctx context.Context, e *domain.LedgerEntry) (bool, error)
	CountLedger(ctx context.Context, id domain.Identity) (int, error)
	FindAward(ctx context.Context, id domain.Identity, tier int) (*domain.Award, bool, error)
	// InsertAward is a no-op returning false when (IdentityKey, Tier) is taken.
	InsertAward(ctx context.Context, a *domain.Award) (bool, error)
	ListAwards(ctx context.Context, id domain.Identity) ([]domain.Award, error)
}

type CheckoutLineItem struct {
	Description    string
	ProductDetail  string
	Quantity       int64
	UnitAmount     int64
	AmountSubtotal int64
}

type CheckoutSession struct {
	ID              string
	AmountTotal     int64
	Currency        string
	PaymentIntentID string
	InvoiceID       string
	PaymentStatus   string
	CustomerEmail   string
	LineItems       []CheckoutLineItem
}

type CouponSpec struct {
	PercentOff float64
	Name       string
}

type PromotionSpec struct {
	CouponID       string
	MaxRedemptions int64
	Identity       domain.Identity
	Tier           int
}

type PromotionCode struct {
	ID   string
	Code string
}

type CheckoutGateway interface {
	GetSession(ctx context.Context, sessionID string) (CheckoutSession, error)
	CreateCoupon(ctx context.Context, spec CouponSpec) (string, error)
	CreatePromotionCode(ctx context.Context, spec PromotionSpec) (PromotionCode, error)
}

type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

type WebhookVerifier interface {
	ParseWebhook(payload []byte, signatureHeader string) (WebhookEvent, error)
}

type Notifier interface {
	AwardIssued(ctx context.Context, a *domain.Award) error
}

type ReconcileJob struct {
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id,omitempty"`
}

type ReconcileQueue interface {
	Enqueue(ctx context.Context, job ReconcileJob) error
}
