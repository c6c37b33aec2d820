package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"storefront-backend/internal/domain"
)

type RewardService struct {
	Repo    RewardRepo
	Gateway CheckoutGateway
	// CouponID, when set, is reused for every award instead of creating a
	// coupon per award.
	CouponID string
	Notifier Notifier
	// NotifyTimeout bounds each award notification; zero means 30s.
	NotifyTimeout time.Duration

	notifications sync.WaitGroup
}

type Evaluation struct {
	Skipped        bool          `json:"skipped,omitempty"`
	LedgerAppended bool          `json:"ledgerAppended"`
	Points         int           `json:"points"`
	AwardIssued    bool          `json:"awardIssued"`
	Award          *domain.Award `json:"award,omitempty"`
}

type RewardStatus struct {
	Points        int            `json:"points"`
	Threshold     int            `json:"threshold"`
	PointsToTier1 int            `json:"pointsToTier1"`
	Awards        []domain.Award `json:"awards"`
}

// Evaluate records the ledger entry for orderID and issues the tier-1 award
// once the identity's points reach the threshold. Calling it again for the
// same order adds nothing.
func (s *RewardService) Evaluate(ctx context.Context, id domain.Identity, orderID string, source domain.LedgerSource) (Evaluation, error) {
	var ev Evaluation
	if id.Empty() {
		ev.Skipped = true
		return ev, nil
	}
	logCtx := log.WithFields(log.Fields{"order_id": orderID, "identity": id.String()})

	entry := &domain.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    id.UserID,
		Email:     id.Email,
		OrderID:   orderID,
		Points:    domain.PointsPerOrder,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	appended, err := s.Repo.AppendLedger(ctx, entry)
	if err != nil {
		return ev, storeErr("append ledger", err)
	}
	ev.LedgerAppended = appended

	points, err := s.Repo.CountLedger(ctx, id)
	if err != nil {
		return ev, storeErr("count ledger", err)
	}
	ev.Points = points

	existing, ok, err := s.Repo.FindAward(ctx, id, domain.Tier1)
	if err != nil {
		return ev, storeErr("find award", err)
	}
	if ok {
		ev.Award = existing
		return ev, nil
	}
	if points < domain.Tier1Threshold {
		logCtx.WithField("points", points).Debug("below reward threshold")
		return ev, nil
	}

	award, issued, err := s.issueTier1(ctx, id)
	if err != nil {
		return ev, err
	}
	ev.Award = award
	ev.AwardIssued = issued
	if issued {
		logCtx.WithFields(log.Fields{"points": points, "tier": award.Tier}).Info("reward award issued")
		s.notify(award)
	}
	return ev, nil
}

func (s *RewardService) issueTier1(ctx context.Context, id domain.Identity) (*domain.Award, bool, error) {
	couponID := s.CouponID
	if couponID == "" {
		created, err := s.Gateway.CreateCoupon(ctx, CouponSpec{
			PercentOff: domain.Tier1PercentOff,
			Name:       "Loyalty reward: 10% off",
		})
		if err != nil {
			return nil, false, gatewayErr("create coupon", err)
		}
		couponID = created
	}
	promo, err := s.Gateway.CreatePromotionCode(ctx, PromotionSpec{
		CouponID:       couponID,
		MaxRedemptions: domain.Tier1MaxRedemptions,
		Identity:       id,
		Tier:           domain.Tier1,
	})
	if err != nil {
		return nil, false, gatewayErr("create promotion code", err)
	}

	award := &domain.Award{
		ID:                    uuid.NewString(),
		IdentityKey:           id.Key(),
		UserID:                id.UserID,
		Email:                 id.Email,
		Tier:                  domain.Tier1,
		StripeCouponID:        couponID,
		StripePromotionCodeID: promo.ID,
		Code:                  promo.Code,
		IssuedAt:              time.Now().UTC(),
	}
	inserted, err := s.Repo.InsertAward(ctx, award)
	if err != nil {
		return nil, false, storeErr("insert award", err)
	}
	if inserted {
		return award, true, nil
	}

	// A concurrent evaluation stored the award first; the code minted here is
	// left unused.
	log.WithFields(log.Fields{
		"identity":          id.String(),
		"promotion_code_id": promo.ID,
	}).Warn("award already issued concurrently, discarding minted promotion code")
	winner, ok, err := s.Repo.FindAward(ctx, id, domain.Tier1)
	if err != nil {
		return nil, false, storeErr("find award", err)
	}
	if !ok {
		return nil, false, nil
	}
	return winner, false, nil
}

// notify sends the award notification in the background, detached from the
// request that issued the award.
func (s *RewardService) notify(a *domain.Award) {
	if s.Notifier == nil || a.Email == "" {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	award := *a
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Notifier.AwardIssued(ctx, &award); err != nil {
			log.WithError(err).WithField("award_id", award.ID).Warn("award notification failed")
		}
	}()
}

// WaitNotifications blocks until every notification already started has
// finished or timed out.
func (s *RewardService) WaitNotifications() {
	s.notifications.Wait()
}

func (s *RewardService) Status(ctx context.Context, id domain.Identity) (RewardStatus, error) {
	st := RewardStatus{Threshold: domain.Tier1Threshold, Awards: []domain.Award{}}
	if id.Empty() {
		return st, ErrUnauthorized("identity required")
	}
	points, err := s.Repo.CountLedger(ctx, id)
	if err != nil {
		return st, storeErr("count ledger", err)
	}
	awards, err := s.Repo.ListAwards(ctx, id)
	if err != nil {
		return st, storeErr("list awards", err)
	}
	st.Points = points
	if len(awards) > 0 {
		st.Awards = awards
	}
	if points < domain.Tier1Threshold {
		st.PointsToTier1 = domain.Tier1Threshold - points
	}
	return st, nil
}
