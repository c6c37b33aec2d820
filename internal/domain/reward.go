package domain

import "time"

const (
	PointsPerOrder      = 1
	Tier1               = 1
	Tier1Threshold      = 3
	Tier1PercentOff     = 10
	Tier1MaxRedemptions = 1
)

type LedgerSource string

const (
	SourceWebhook LedgerSource = "webhook"
	SourceClaim   LedgerSource = "claim"
	SourceRetry   LedgerSource = "retry"
)

// LedgerEntry is one point-earning event. Entries are never updated or
// deleted, and there is at most one per OrderID.
type LedgerEntry struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId,omitempty"`
	Email     string       `json:"email,omitempty"`
	OrderID   string       `json:"orderId"`
	Points    int          `json:"points"`
	Source    LedgerSource `json:"source"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Award is a tier unlock. At most one exists per (IdentityKey, Tier).
type Award struct {
	ID                    string    `json:"id"`
	IdentityKey           string    `json:"-"`
	UserID                string    `json:"userId,omitempty"`
	Email                 string    `json:"email,omitempty"`
	Tier                  int       `json:"tier"`
	StripeCouponID        string    `json:"-"`
	StripePromotionCodeID string    `json:"-"`
	Code                  string    `json:"code"`
	IssuedAt              time.Time `json:"issuedAt"`
}
