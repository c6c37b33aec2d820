package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"storefront-backend/internal/domain"
)

// Runs against a disposable database named by STOREFRONT_TEST_DATABASE_URL.
func newTestPostgres(t *testing.T) *PostgresRepo {
	t.Helper()
	dsn := os.Getenv("STOREFRONT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DATABASE_URL not set")
	}
	r, err := NewPostgresRepo(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if err := r.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return r
}

func TestPostgresRepo_OrderAndRewardsFlow(t *testing.T) {
	r := newTestPostgres(t)
	ctx := context.Background()
	session := "cs_test_" + uuid.NewString()
	user := "user_" + uuid.NewString()
	email := uuid.NewString() + "@example.com"

	o := newOrder(uuid.NewString(), session, "", email, time.Now().UTC())
	created, err := r.CreateOrder(ctx, o)
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	dup := newOrder(uuid.NewString(), session, user, "", time.Now().UTC())
	if created, err := r.CreateOrder(ctx, dup); err != nil || created {
		t.Fatalf("duplicate create: created=%v err=%v", created, err)
	}
	if err := r.PutOrderItems(ctx, o.ID, []domain.OrderItem{{Title: "House wash", UnitAmountCents: 5000, Quantity: 1}}); err != nil {
		t.Fatalf("items: %v", err)
	}

	got, err := r.BackfillOrderIdentity(ctx, o.ID, domain.NewIdentity(user, "other@example.com"))
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if got.UserID != user || got.Email != email || len(got.Items) != 1 {
		t.Fatalf("backfilled order = %+v", got)
	}

	id := domain.NewIdentity(user, email)
	entry := &domain.LedgerEntry{ID: uuid.NewString(), UserID: user, Email: email, OrderID: o.ID, Points: 1, Source: domain.SourceClaim, CreatedAt: time.Now().UTC()}
	if ok, err := r.AppendLedger(ctx, entry); err != nil || !ok {
		t.Fatalf("append: ok=%v err=%v", ok, err)
	}
	entry.ID = uuid.NewString()
	if ok, err := r.AppendLedger(ctx, entry); err != nil || ok {
		t.Fatalf("duplicate append: ok=%v err=%v", ok, err)
	}
	if n, err := r.CountLedger(ctx, domain.NewIdentity("", email)); err != nil || n != 1 {
		t.Fatalf("count: n=%d err=%v", n, err)
	}

	award := &domain.Award{ID: uuid.NewString(), IdentityKey: id.Key(), UserID: user, Email: email, Tier: domain.Tier1,
		StripeCouponID: "co_1", StripePromotionCodeID: "promo_1", Code: "THANKS10", IssuedAt: time.Now().UTC()}
	if ok, err := r.InsertAward(ctx, award); err != nil || !ok {
		t.Fatalf("insert award: ok=%v err=%v", ok, err)
	}
	award.ID = uuid.NewString()
	if ok, err := r.InsertAward(ctx, award); err != nil || ok {
		t.Fatalf("duplicate award: ok=%v err=%v", ok, err)
	}
	found, ok, err := r.FindAward(ctx, id, domain.Tier1)
	if err != nil || !ok || found.Code != "THANKS10" {
		t.Fatalf("find award: %+v ok=%v err=%v", found, ok, err)
	}

	orders, total, err := r.ListOrders(ctx, id, 1, 10)
	if err != nil || total != 1 || len(orders) != 1 {
		t.Fatalf("list: total=%d len=%d err=%v", total, len(orders), err)
	}
}
