package domain

import "time"

type OrderStatus string

const (
	OrderPaid              OrderStatus = "paid"
	OrderInvoiced          OrderStatus = "invoiced"
	OrderUnpaid            OrderStatus = "unpaid"
	OrderNoPaymentRequired OrderStatus = "no_payment_required"
)

type OrderItem struct {
	OrderID         string `json:"-"`
	Title           string `json:"title"`
	Detail          string `json:"detail,omitempty"`
	UnitAmountCents int64  `json:"unitAmountCents"`
	Quantity        int64  `json:"quantity"`
}

// Order is one completed or invoiced checkout. StripeSessionID is unique
// across all orders.
type Order struct {
	ID                    string      `json:"orderId"`
	UserID                string      `json:"userId,omitempty"`
	Email                 string      `json:"email,omitempty"`
	AmountCents           int64       `json:"amountCents"`
	Currency              string      `json:"currency"`
	Status                OrderStatus `json:"status"`
	StripeSessionID       string      `json:"stripeSessionId"`
	StripePaymentIntentID string      `json:"stripePaymentIntentId,omitempty"`
	StripeInvoiceID       string      `json:"stripeInvoiceId,omitempty"`
	Items                 []OrderItem `json:"items,omitempty"`
	CreatedAt             time.Time   `json:"createdAt"`
}

func (o *Order) Identity() Identity {
	return NewIdentity(o.UserID, o.Email)
}

// ItemsTotal sums unit amount times quantity over all items.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.UnitAmountCents * it.Quantity
	}
	return total
}
