package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	log "github.com/sirupsen/logrus"

	"storefront-backend/internal/domain"
)

type SMTPNotifier struct {
	host string
	port string
	user string
	pass string
	from string
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPNotifier(host, port, user, pass, from string) *SMTPNotifier {
	return &SMTPNotifier{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// AwardIssued emails the redeemable code to the award's email address. It
// stops waiting on the SMTP server once ctx is done.
func (n *SMTPNotifier) AwardIssued(ctx context.Context, a *domain.Award) error {
	if a.Email == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.pass, n.host)
	}
	addr := fmt.Sprintf("%s:%s", n.host, n.port)
	msg := awardEmail(n.from, a)
	done := make(chan error, 1)
	go func() { done <- n.send(msg, addr, auth) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send award email: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("send award email: %w", ctx.Err())
	}
	log.WithFields(log.Fields{"award_id": a.ID, "email": a.Email}).Info("award email sent")
	return nil
}

func awardEmail(from string, a *domain.Award) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{a.Email}
	e.Subject = fmt.Sprintf("You've earned %d%% off your next wash", domain.Tier1PercentOff)
	e.Text = []byte(fmt.Sprintf(
		"Thanks for being a repeat customer!\n\nYou've completed %d orders with us, so here is %d%% off your next service.\n\nYour code: %s\n\nEnter it at checkout. It can be used once.\n",
		domain.Tier1Threshold, domain.Tier1PercentOff, a.Code,
	))
	return e
}
