package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"storefront-backend/internal/domain"
)

type Outcome string

const (
	ClaimedExisting Outcome = "claimed-existing"
	ClaimedInserted Outcome = "claimed-inserted"
)

type ReconcileResult struct {
	Outcome    Outcome       `json:"status"`
	Order      *domain.Order `json:"order"`
	Evaluation Evaluation    `json:"rewards"`
}

type OrderService struct {
	Repo    OrderRepo
	Gateway CheckoutGateway
	Rewards *RewardService
}

// Reconcile makes sure an order exists for sessionID, attributes it to the
// best identity known so far, and evaluates rewards for it. It is safe to call
// repeatedly and concurrently for the same session.
func (s *OrderService) Reconcile(ctx context.Context, sessionID string, caller domain.Identity, source domain.LedgerSource) (ReconcileResult, error) {
	var res ReconcileResult
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return res, ErrBadRequest("session_id required")
	}
	logCtx := log.WithFields(log.Fields{"session_id": sessionID, "source": source})

	o, ok, err := s.Repo.GetOrderBySession(ctx, sessionID)
	if err != nil {
		return res, storeErr("get order", err)
	}
	if ok {
		return s.claimExisting(ctx, o, caller, source)
	}

	sess, err := s.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		return res, gatewayErr("get session", err)
	}
	if sess.ID == "" {
		sess.ID = sessionID
	}
	o = newOrderFromSession(sess, caller)
	created, err := s.Repo.CreateOrder(ctx, o)
	if err != nil {
		return res, storeErr("create order", err)
	}
	if !created {
		// Lost the insert race to another trigger for the same session.
		existing, ok, err := s.Repo.GetOrderBySession(ctx, sessionID)
		if err != nil {
			return res, storeErr("get order", err)
		}
		if !ok {
			return res, ErrNotFound("order for session " + sessionID)
		}
		return s.claimExisting(ctx, existing, caller, source)
	}

	items := buildOrderItems(o.ID, sess.LineItems)
	if len(items) > 0 {
		if err := s.Repo.PutOrderItems(ctx, o.ID, items); err != nil {
			logCtx.WithError(err).WithField("order_id", o.ID).Warn("order line items not stored")
		} else {
			o.Items = items
		}
	}
	logCtx.WithFields(log.Fields{
		"order_id":     o.ID,
		"amount_cents": o.AmountCents,
		"identity":     o.Identity().String(),
	}).Info("order created")

	ev, err := s.evaluate(ctx, o, source)
	if err != nil {
		return res, err
	}
	return ReconcileResult{Outcome: ClaimedInserted, Order: o, Evaluation: ev}, nil
}

func (s *OrderService) claimExisting(ctx context.Context, o *domain.Order, caller domain.Identity, source domain.LedgerSource) (ReconcileResult, error) {
	var res ReconcileResult
	current := o.Identity()
	if merged := current.Merge(caller); merged != current {
		updated, err := s.Repo.BackfillOrderIdentity(ctx, o.ID, caller)
		if err != nil {
			return res, storeErr("backfill order identity", err)
		}
		log.WithFields(log.Fields{
			"order_id": o.ID,
			"identity": updated.Identity().String(),
		}).Info("order identity backfilled")
		o = updated
	}
	ev, err := s.evaluate(ctx, o, source)
	if err != nil {
		return res, err
	}
	return ReconcileResult{Outcome: ClaimedExisting, Order: o, Evaluation: ev}, nil
}

func (s *OrderService) evaluate(ctx context.Context, o *domain.Order, source domain.LedgerSource) (Evaluation, error) {
	id := o.Identity()
	if id.Empty() {
		log.WithField("order_id", o.ID).Info("order has no identity, rewards skipped")
		return Evaluation{Skipped: true}, nil
	}
	if s.Rewards == nil {
		return Evaluation{Skipped: true}, nil
	}
	return s.Rewards.Evaluate(ctx, id, o.ID, source)
}

func (s *OrderService) List(ctx context.Context, id domain.Identity, page, pageSize int) ([]domain.Order, int, error) {
	if id.Empty() {
		return nil, 0, ErrUnauthorized("identity required")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	orders, total, err := s.Repo.ListOrders(ctx, id, page, pageSize)
	if err != nil {
		return nil, 0, storeErr("list orders", err)
	}
	return orders, total, nil
}

func newOrderFromSession(sess CheckoutSession, caller domain.Identity) *domain.Order {
	id := caller.Merge(domain.NewIdentity("", sess.CustomerEmail))
	status := domain.OrderStatus(strings.TrimSpace(sess.PaymentStatus))
	if status == "" {
		status = domain.OrderPaid
	}
	currency := strings.ToLower(strings.TrimSpace(sess.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &domain.Order{
		ID:                    uuid.NewString(),
		UserID:                id.UserID,
		Email:                 id.Email,
		AmountCents:           sess.AmountTotal,
		Currency:              currency,
		Status:                status,
		StripeSessionID:       sess.ID,
		StripePaymentIntentID: sess.PaymentIntentID,
		StripeInvoiceID:       sess.InvoiceID,
		CreatedAt:             time.Now().UTC(),
	}
}
