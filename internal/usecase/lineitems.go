package usecase

import (
	"strings"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domain"
)

// buildOrderItems converts provider line items into order items. When a line
// item carries no unit price, it is reconstructed as subtotal / quantity
// rounded half away from zero to whole minor units.
func buildOrderItems(orderID string, lines []CheckoutLineItem) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, li := range lines {
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		unit := li.UnitAmount
		if unit <= 0 {
			unit = unitFromSubtotal(li.AmountSubtotal, qty)
		}
		title := strings.TrimSpace(li.Description)
		if title == "" {
			title = "Item"
		}
		items = append(items, domain.OrderItem{
			OrderID:         orderID,
			Title:           title,
			Detail:          strings.TrimSpace(li.ProductDetail),
			UnitAmountCents: unit,
			Quantity:        qty,
		})
	}
	return items
}

func unitFromSubtotal(subtotal, qty int64) int64 {
	if qty <= 0 {
		return subtotal
	}
	return decimal.NewFromInt(subtotal).Div(decimal.NewFromInt(qty)).Round(0).IntPart()
}
