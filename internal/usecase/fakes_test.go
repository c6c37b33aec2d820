package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-backend/internal/domain"
)

type fakeGateway struct {
	mu          sync.Mutex
	sessions    map[string]CheckoutSession
	sessionErr  error
	promoErr    error
	getCalls    int
	couponCalls int
	promoCalls  int
	lastPromo   PromotionSpec
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]CheckoutSession{}}
}

func (g *fakeGateway) add(s CheckoutSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[s.ID] = s
}

func (g *fakeGateway) GetSession(_ context.Context, id string) (CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.sessionErr != nil {
		return CheckoutSession{}, g.sessionErr
	}
	s, ok := g.sessions[id]
	if !ok {
		return CheckoutSession{}, errors.New("no such checkout.session: " + id)
	}
	return s, nil
}

func (g *fakeGateway) CreateCoupon(_ context.Context, spec CouponSpec) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.couponCalls++
	return fmt.Sprintf("co_%d", g.couponCalls), nil
}

func (g *fakeGateway) CreatePromotionCode(_ context.Context, spec PromotionSpec) (PromotionCode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.promoErr != nil {
		return PromotionCode{}, g.promoErr
	}
	g.promoCalls++
	g.lastPromo = spec
	return PromotionCode{ID: fmt.Sprintf("promo_%d", g.promoCalls), Code: fmt.Sprintf("THANKS10-%d", g.promoCalls)}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	awards []domain.Award
	err    error
}

func (n *recordingNotifier) AwardIssued(_ context.Context, a *domain.Award) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.awards = append(n.awards, *a)
	return n.err
}
