package usecase

import "testing"

func TestUnitFromSubtotal(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		qty      int64
		want     int64
	}{
		{"exact", 6000, 3, 2000},
		{"rounds down below half", 1000, 3, 333},
		{"rounds half up", 1001, 2, 501},
		{"rounds up above half", 2000, 3, 667},
		{"zero quantity keeps subtotal", 4200, 0, 4200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unitFromSubtotal(tt.subtotal, tt.qty); got != tt.want {
				t.Fatalf("unitFromSubtotal(%d, %d) = %d, want %d", tt.subtotal, tt.qty, got, tt.want)
			}
		})
	}
}

func TestBuildOrderItemsSumsToSessionTotal(t *testing.T) {
	lines := []CheckoutLineItem{
		{Description: "Driveway wash", ProductDetail: " up to 600 sq ft ", Quantity: 1, UnitAmount: 2500},
		{Description: "Window rinse", Quantity: 3, AmountSubtotal: 1500},
		{Description: "", Quantity: 0, AmountSubtotal: 1000},
	}
	items := buildOrderItems("ord_1", lines)
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	var total int64
	for _, it := range items {
		if it.OrderID != "ord_1" {
			t.Fatalf("order id not set: %+v", it)
		}
		total += it.UnitAmountCents * it.Quantity
	}
	if total != 5000 {
		t.Fatalf("items total = %d, want 5000", total)
	}
	if items[0].Detail != "up to 600 sq ft" {
		t.Fatalf("detail = %q", items[0].Detail)
	}
	if items[1].UnitAmountCents != 500 || items[1].Quantity != 3 {
		t.Fatalf("reconstructed item = %+v", items[1])
	}
	if items[2].Title != "Item" || items[2].Quantity != 1 {
		t.Fatalf("defaults not applied: %+v", items[2])
	}
}
