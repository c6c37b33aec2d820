package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"storefront-backend/internal/config"
	"storefront-backend/internal/infrastructure/mailer"
	"storefront-backend/internal/infrastructure/queue"
	"storefront-backend/internal/infrastructure/repo"
	"storefront-backend/internal/infrastructure/stripe"
	"storefront-backend/internal/usecase"
)

type store interface {
	usecase.OrderRepo
	usecase.RewardRepo
}

type app struct {
	orders  *usecase.OrderService
	rewards *usecase.RewardService
	auth    *usecase.AuthService
	stripe  *stripe.Client
	queue   *queue.SQSQueue
	close   func()
}

func openStore(c config.Config) (store, func(), error) {
	if c.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return repo.NewMemoryRepo(), func() {}, nil
	}
	pg, err := repo.NewPostgresRepo(c.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

func buildApp(ctx context.Context, c config.Config) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	st, closeStore, err := openStore(c)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	gw := stripe.New(stripe.Config{SecretKey: c.StripeSecretKey, WebhookSecret: c.StripeWebhookSecret})

	rewards := &usecase.RewardService{Repo: st, Gateway: gw, CouponID: c.RewardCouponID}
	if c.MailEnabled() {
		rewards.Notifier = mailer.NewSMTPNotifier(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.MailFrom)
	}
	a := &app{
		orders:  &usecase.OrderService{Repo: st, Gateway: gw, Rewards: rewards},
		rewards: rewards,
		auth:    &usecase.AuthService{JWTSecret: c.JWTSecret},
		stripe:  gw,
		close:   closeStore,
	}
	if c.ReconcileQueueURL != "" {
		q, err := queue.NewSQSQueue(ctx, c.AWSRegion, c.ReconcileQueueURL)
		if err != nil {
			closeStore()
			return nil, err
		}
		a.queue = q
	}
	return a, nil
}
