package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/repository"
	"github.com/Astemirdum/librakeeper/pkg/auth"
)

const defaultNotifyTimeout = 30 * time.Second

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	notifier Notifier

	adminEmails   []string
	notifyTimeout time.Duration
	now           func() time.Time

	// in-flight notifications
	wg sync.WaitGroup
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithAdminEmails adds recipients of loan requests on top of the ADMIN users.
func WithAdminEmails(emails []string) Option {
	return func(s *Service) {
		s.adminEmails = emails
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.notifyTimeout = d
	}
}

func NewService(repo repository.Repository, notifier Notifier, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:           log.Named("service"),
		repo:          repo,
		notifier:      notifier,
		notifyTimeout: defaultNotifyTimeout,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until every notification started so far has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// dispatch runs fn in the background on a context that outlives the request.
func (s *Service) dispatch(ctx context.Context, name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Error(name, zap.Error(err))
		}
	}()
}

func requireIdentity(actor auth.Identity) error {
	if actor.UserID == "" {
		return errs.ErrNoIdentity
	}
	return nil
}

func requireAdmin(actor auth.Identity) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return errs.ErrAdminOnly
	}
	return nil
}

func userFromIdentity(actor auth.Identity) model.User {
	role := model.RoleUser
	if actor.IsAdmin() {
		role = model.RoleAdmin
	}
	return model.User{
		ID:    actor.UserID,
		Name:  actor.Name,
		Email: actor.Email,
		Role:  role,
	}
}

func displayName(actor auth.Identity) string {
	switch {
	case actor.Name != "":
		return actor.Name
	case actor.Email != "":
		return actor.Email
	}
	return actor.UserID
}

func (s *Service) adminRecipients(ctx context.Context) ([]string, error) {
	stored, err := s.repo.ListAdminEmails(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(stored)+len(s.adminEmails))
	out := make([]string, 0, len(stored)+len(s.adminEmails))
	for _, e := range append(append([]string{}, s.adminEmails...), stored...) {
		key := strings.ToLower(strings.TrimSpace(e))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(e))
	}
	return out, nil
}
