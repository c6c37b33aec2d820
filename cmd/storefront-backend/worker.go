package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront-backend/internal/domain"
	"storefront-backend/internal/usecase"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Retry webhook reconciliations from the reconcile queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			if a.queue == nil {
				return errors.New("RECONCILE_QUEUE_URL required")
			}
			log.Info("reconcile worker started")
			defer a.rewards.WaitNotifications()
			return a.queue.Consume(ctx, func(ctx context.Context, job usecase.ReconcileJob) error {
				res, err := a.orders.Reconcile(ctx, job.SessionID, domain.Identity{}, domain.SourceRetry)
				if err != nil {
					return err
				}
				log.WithFields(log.Fields{"session_id": job.SessionID, "status": res.Outcome}).Info("reconcile retried")
				return nil
			})
		},
	}
}
