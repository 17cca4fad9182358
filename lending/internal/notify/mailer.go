package notify

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/service"
	"github.com/Astemirdum/librakeeper/pkg/circuit_breaker"
	"github.com/Astemirdum/librakeeper/pkg/email"
)

const maxParallelSends = 4

// Mailer turns loan notifications into emails.
type Mailer struct {
	sender email.Sender
	cb     circuit_breaker.CircuitBreaker
	dedupe Deduper
	appURL string
	log    *zap.Logger
}

var _ service.Notifier = (*Mailer)(nil)

func NewMailer(sender email.Sender, cb circuit_breaker.CircuitBreaker, dedupe Deduper, appURL string, log *zap.Logger) *Mailer {
	if dedupe == nil {
		dedupe = NewNoopDeduper()
	}
	return &Mailer{
		sender: sender,
		cb:     cb,
		dedupe: dedupe,
		appURL: strings.TrimRight(appURL, "/"),
		log:    log.Named("mailer"),
	}
}

// NotifyLoanRequested mails every admin in parallel. It returns the first
// failure after all sends have finished.
func (m *Mailer) NotifyLoanRequested(ctx context.Context, msg model.LoanRequested) error {
	body, err := render(ctx, loanRequestEmail(msg.BorrowerName, msg.ItemTitle, m.appURL))
	if err != nil {
		return errors.Wrap(err, "render loan request")
	}
	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for _, to := range msg.AdminEmails {
		to := to
		g.Go(func() error {
			return m.send(ctx, "requested:"+msg.LoanID+":"+strings.ToLower(to), email.SendEmailParams{
				SendTo:   to,
				Subject:  "New Loan Request",
				BodyHTML: body,
				Tag:      "loan-requested",
			})
		})
	}
	return g.Wait()
}

func (m *Mailer) NotifyLoanDecided(ctx context.Context, msg model.LoanDecided) error {
	decision := strings.ToLower(string(msg.Decision))
	body, err := render(ctx, loanStatusEmail(msg.ItemTitle, decision, m.appURL))
	if err != nil {
		return errors.Wrap(err, "render loan status")
	}
	return m.send(ctx, "decided:"+msg.LoanID+":"+string(msg.Decision), email.SendEmailParams{
		SendTo:   msg.BorrowerEmail,
		Subject:  "Loan Request " + decision,
		BodyHTML: body,
		Tag:      "loan-decided",
	})
}

func (m *Mailer) send(ctx context.Context, key string, params email.SendEmailParams) error {
	fresh, err := m.dedupe.Acquire(ctx, key)
	if err != nil {
		// redis unavailable, send without dedupe
		m.log.Warn("dedupe acquire", zap.String("key", key), zap.Error(err))
		fresh = true
	}
	if !fresh {
		m.log.Debug("already sent", zap.String("key", key))
		return nil
	}

	err = m.cb.Call(func() error {
		return m.sender.SendEmail(ctx, params)
	})
	if err != nil {
		if rerr := m.dedupe.Release(ctx, key); rerr != nil {
			m.log.Warn("dedupe release", zap.String("key", key), zap.Error(rerr))
		}
		return errors.Wrapf(err, "send %s to %s", params.Tag, params.SendTo)
	}
	m.log.Info("email sent", zap.String("to", params.SendTo), zap.String("tag", params.Tag))
	return nil
}
