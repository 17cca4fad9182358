package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/repository"
	"github.com/Astemirdum/librakeeper/lending/internal/service"
	"github.com/Astemirdum/librakeeper/pkg/auth"

	notifier_mocks "github.com/Astemirdum/librakeeper/lending/internal/service/mocks"
)

var (
	admin = auth.Identity{UserID: "admin-1", Name: "Admin", Email: "admin@example.com", Role: auth.RoleAdmin}
	alice = auth.Identity{UserID: "user-a", Name: "Alice", Email: "alice@example.com", Role: auth.RoleUser}
	bob   = auth.Identity{UserID: "user-b", Name: "Bob", Email: "bob@example.com", Role: auth.RoleUser}
	carol = auth.Identity{UserID: "user-c", Name: "Carol", Email: "carol@example.com", Role: auth.RoleUser}
)

type fixture struct {
	svc      *service.Service
	repo     repository.Repository
	notifier *notifier_mocks.MockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := gomock.NewController(t)
	repo := repository.NewMemoryRepository()
	notifier := notifier_mocks.NewMockNotifier(c)
	svc := service.NewService(repo, notifier, zap.NewExample().Named("test"),
		service.WithClock(stepClock()),
		service.WithAdminEmails([]string{"admin@example.com"}),
	)
	// the controller verifies expectations after pending notifications are done
	t.Cleanup(svc.Wait)
	return &fixture{svc: svc, repo: repo, notifier: notifier}
}

// stepClock ticks one second per call so that creation order is observable.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func (f *fixture) item(t *testing.T, title string, status model.ItemStatus) model.Item {
	t.Helper()
	it, err := f.svc.CreateItem(context.Background(), admin, model.CreateItemRequest{
		Title:  title,
		Type:   model.TypeBook,
		Status: status,
	})
	require.NoError(t, err)
	return it
}

func (f *fixture) request(t *testing.T, who auth.Identity, itemID string) model.Loan {
	t.Helper()
	loan, err := f.svc.RequestLoan(context.Background(), who, itemID)
	require.NoError(t, err)
	return loan
}

// borrowed returns an item lent to who through the regular request/approve flow.
func (f *fixture) borrowed(t *testing.T, who auth.Identity) (model.Item, model.Loan) {
	t.Helper()
	it := f.item(t, "Dune", model.ItemAvailable)
	loan := f.request(t, who, it.ID)
	loan, err := f.svc.DecideLoan(context.Background(), admin, loan.ID, model.LoanApproved, nil)
	require.NoError(t, err)
	it, err = f.svc.GetItem(context.Background(), it.ID)
	require.NoError(t, err)
	require.Equal(t, model.ItemBorrowed, it.Status)
	return it, loan
}

func (f *fixture) allowNotifications() {
	f.notifier.EXPECT().NotifyLoanRequested(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.notifier.EXPECT().NotifyLoanDecided(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func (f *fixture) approvedCount(t *testing.T, itemID string) int {
	t.Helper()
	loans, err := f.repo.ListActiveLoansForItem(context.Background(), itemID)
	require.NoError(t, err)
	return len(loans)
}

func TestService_RequestLoan(t *testing.T) {
	t.Parallel()
	type setup func(t *testing.T, f *fixture) string

	tests := []struct {
		name    string
		actor   auth.Identity
		setup   setup
		wantErr error
		notify  bool
	}{
		{
			name:  "ok",
			actor: alice,
			setup: func(t *testing.T, f *fixture) string {
				return f.item(t, "Dune", model.ItemAvailable).ID
			},
			notify: true,
		},
		{
			name:  "err. no identity",
			actor: auth.Identity{},
			setup: func(t *testing.T, f *fixture) string {
				return f.item(t, "Dune", model.ItemAvailable).ID
			},
			wantErr: errs.ErrUnauthorized,
		},
		{
			name:  "err. item not found",
			actor: alice,
			setup: func(t *testing.T, f *fixture) string {
				return "missing"
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name:  "err. item lost",
			actor: alice,
			setup: func(t *testing.T, f *fixture) string {
				return f.item(t, "Dune", model.ItemLost).ID
			},
			wantErr: errs.ErrInvalidState,
		},
		{
			name:  "err. item reserved",
			actor: alice,
			setup: func(t *testing.T, f *fixture) string {
				return f.item(t, "Dune", model.ItemReserved).ID
			},
			wantErr: errs.ErrInvalidState,
		},
		{
			name:  "err. item borrowed with pending loans",
			actor: carol,
			setup: func(t *testing.T, f *fixture) string {
				f.allowNotifications()
				it, _ := f.borrowed(t, alice)
				_, err := f.repo.CreateLoan(context.Background(), model.Loan{
					ID: "pending", ItemID: it.ID, UserID: bob.UserID, Status: model.LoanPending,
				})
				require.NoError(t, err)
				return it.ID
			},
			wantErr: errs.ErrInvalidState,
		},
		{
			name:  "err. already pending",
			actor: alice,
			setup: func(t *testing.T, f *fixture) string {
				f.allowNotifications()
				it := f.item(t, "Dune", model.ItemAvailable)
				f.request(t, alice, it.ID)
				return it.ID
			},
			wantErr: errs.ErrConflict,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			itemID := tt.setup(t, f)
			if tt.notify {
				f.notifier.EXPECT().
					NotifyLoanRequested(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, msg model.LoanRequested) error {
						require.Equal(t, []string{"admin@example.com"}, msg.AdminEmails)
						require.Equal(t, "Alice", msg.BorrowerName)
						require.Equal(t, "Dune", msg.ItemTitle)
						require.NotEmpty(t, msg.LoanID)
						return nil
					})
			}

			loan, err := f.svc.RequestLoan(context.Background(), tt.actor, itemID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, model.LoanPending, loan.Status)
			require.Equal(t, tt.actor.UserID, loan.UserID)
			require.False(t, loan.CreatedAt.IsZero())

			it, err := f.svc.GetItem(context.Background(), itemID)
			require.NoError(t, err)
			require.Equal(t, model.ItemAvailable, it.Status)
		})
	}
}

func TestService_RequestLoan_NotifierFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	it := f.item(t, "Dune", model.ItemAvailable)

	done := make(chan struct{})
	f.notifier.EXPECT().
		NotifyLoanRequested(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ model.LoanRequested) error {
			defer close(done)
			require.NoError(t, ctx.Err())
			return errors.New("smtp down")
		})

	ctx, cancel := context.WithCancel(context.Background())
	loan, err := f.svc.RequestLoan(ctx, alice, it.ID)
	cancel()
	require.NoError(t, err)
	require.Equal(t, model.LoanPending, loan.Status)
	<-done
}

func TestService_SecondApprovalConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.notifier.EXPECT().NotifyLoanRequested(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.notifier.EXPECT().
		NotifyLoanDecided(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg model.LoanDecided) error {
			require.Equal(t, alice.Email, msg.BorrowerEmail)
			require.Equal(t, model.LoanApproved, msg.Decision)
			return nil
		})

	ctx := context.Background()
	it := f.item(t, "Dune", model.ItemAvailable)
	l1 := f.request(t, alice, it.ID)
	l2 := f.request(t, bob, it.ID)

	it, err := f.svc.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, model.ItemAvailable, it.Status)

	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	l1, err = f.svc.DecideLoan(ctx, admin, l1.ID, model.LoanApproved, &due)
	require.NoError(t, err)
	require.Equal(t, model.LoanApproved, l1.Status)
	require.NotNil(t, l1.ApprovedAt)
	require.Equal(t, due, *l1.DueAt)

	_, err = f.svc.DecideLoan(ctx, admin, l2.ID, model.LoanApproved, nil)
	require.ErrorIs(t, err, errs.ErrConflict)

	l2, err = f.repo.GetLoan(ctx, l2.ID)
	require.NoError(t, err)
	require.Equal(t, model.LoanPending, l2.Status)
	l1, err = f.repo.GetLoan(ctx, l1.ID)
	require.NoError(t, err)
	require.Equal(t, model.LoanApproved, l1.Status)

	it, err = f.svc.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, model.ItemBorrowed, it.Status)
	require.Equal(t, 1, f.approvedCount(t, it.ID))
}

func TestService_ConcurrentApprovals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotifications()

	const borrowers = 16
	ctx := context.Background()
	it := f.item(t, "Dune", model.ItemAvailable)
	loans := make([]model.Loan, 0, borrowers)
	for i := 0; i < borrowers; i++ {
		who := auth.Identity{UserID: fmt.Sprintf("user-%d", i), Name: "u", Email: fmt.Sprintf("u%d@example.com", i)}
		loans = append(loans, f.request(t, who, it.ID))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		approved  int
		conflicts int
	)
	for _, l := range loans {
		l := l
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.DecideLoan(ctx, admin, l.ID, model.LoanApproved, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, errs.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, approved)
	require.Equal(t, borrowers-1, conflicts)
	require.Equal(t, 1, f.approvedCount(t, it.ID))

	pending, err := f.repo.ListLoans(ctx, model.LoanFilter{ItemID: it.ID, Status: model.LoanPending})
	require.NoError(t, err)
	require.Len(t, pending, borrowers-1)

	it, err = f.svc.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, model.ItemBorrowed, it.Status)
}

func TestService_DecideLoan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("err. approve lost item", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)
		lost := model.ItemLost
		_, err := f.svc.UpdateItem(ctx, admin, it.ID, model.UpdateItemRequest{Status: &lost})
		require.NoError(t, err)

		_, err = f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanApproved, nil)
		require.ErrorIs(t, err, errs.ErrInvalidState)

		loan, err = f.repo.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		require.Equal(t, model.LoanPending, loan.Status)
	})

	t.Run("ok. approve reserved item", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)
		reserved := model.ItemReserved
		_, err := f.svc.UpdateItem(ctx, admin, it.ID, model.UpdateItemRequest{Status: &reserved})
		require.NoError(t, err)

		_, err = f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanApproved, nil)
		require.NoError(t, err)
		it, err = f.svc.GetItem(ctx, it.ID)
		require.NoError(t, err)
		require.Equal(t, model.ItemBorrowed, it.Status)
	})

	t.Run("ok. reject leaves item alone and is idempotent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notifier.EXPECT().NotifyLoanRequested(gomock.Any(), gomock.Any()).Return(nil)
		f.notifier.EXPECT().
			NotifyLoanDecided(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg model.LoanDecided) error {
				require.Equal(t, model.LoanRejected, msg.Decision)
				require.Equal(t, alice.Email, msg.BorrowerEmail)
				return nil
			}).
			Times(1)

		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)

		rejected, err := f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanRejected, nil)
		require.NoError(t, err)
		require.Equal(t, model.LoanRejected, rejected.Status)
		require.Nil(t, rejected.ApprovedAt)

		again, err := f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanRejected, nil)
		require.NoError(t, err)
		require.Equal(t, rejected, again)

		got, err := f.svc.GetItem(ctx, it.ID)
		require.NoError(t, err)
		require.Equal(t, it, got)
	})

	t.Run("err. approve rejected loan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)
		_, err := f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanRejected, nil)
		require.NoError(t, err)

		_, err = f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanApproved, nil)
		require.ErrorIs(t, err, errs.ErrInvalidState)
		require.Equal(t, 0, f.approvedCount(t, it.ID))
	})

	t.Run("ok. re-approve is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notifier.EXPECT().NotifyLoanRequested(gomock.Any(), gomock.Any()).Return(nil)
		f.notifier.EXPECT().NotifyLoanDecided(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		it, loan := f.borrowed(t, alice)

		again, err := f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanApproved, nil)
		require.NoError(t, err)
		require.Equal(t, loan, again)
		require.Equal(t, 1, f.approvedCount(t, it.ID))
	})

	t.Run("err. reject approved loan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, loan := f.borrowed(t, alice)

		_, err := f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanRejected, nil)
		require.ErrorIs(t, err, errs.ErrInvalidState)
		it, err = f.svc.GetItem(ctx, it.ID)
		require.NoError(t, err)
		require.Equal(t, model.ItemBorrowed, it.Status)
	})

	t.Run("err. not admin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)

		_, err := f.svc.DecideLoan(ctx, alice, loan.ID, model.LoanApproved, nil)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("err. loan not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.DecideLoan(ctx, admin, "missing", model.LoanApproved, nil)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("err. bad decision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.DecideLoan(ctx, admin, "any", model.LoanReturned, nil)
		require.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("ok. notifier failure does not fail the decision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.notifier.EXPECT().NotifyLoanRequested(gomock.Any(), gomock.Any()).Return(nil)
		f.notifier.EXPECT().NotifyLoanDecided(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))
		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)

		loan, err := f.svc.DecideLoan(ctx, admin, loan.ID, model.LoanApproved, nil)
		require.NoError(t, err)
		require.Equal(t, model.LoanApproved, loan.Status)
	})
}

func TestService_ReturnLoan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, loan := f.borrowed(t, alice)
		_, err := f.svc.JoinWaitlist(ctx, bob, it.ID)
		require.NoError(t, err)

		loan, err = f.svc.ReturnLoan(ctx, admin, loan.ID)
		require.NoError(t, err)
		require.Equal(t, model.LoanReturned, loan.Status)
		require.NotNil(t, loan.ReturnedAt)

		it, err = f.svc.GetItem(ctx, it.ID)
		require.NoError(t, err)
		require.Equal(t, model.ItemAvailable, it.Status)
		require.Equal(t, 0, f.approvedCount(t, it.ID))

		// the waitlist is not touched by a return
		entries, err := f.svc.ListWaitlist(ctx, it.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		_, err = f.svc.ReturnLoan(ctx, admin, loan.ID)
		require.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("err. pending loan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it := f.item(t, "Dune", model.ItemAvailable)
		loan := f.request(t, alice, it.ID)

		_, err := f.svc.ReturnLoan(ctx, admin, loan.ID)
		require.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("err. not admin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		_, loan := f.borrowed(t, alice)

		_, err := f.svc.ReturnLoan(ctx, alice, loan.ID)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("err. not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.ReturnLoan(ctx, admin, "missing")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("ok. item can be lent again", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, loan := f.borrowed(t, alice)
		_, err := f.svc.ReturnLoan(ctx, admin, loan.ID)
		require.NoError(t, err)

		next := f.request(t, bob, it.ID)
		_, err = f.svc.DecideLoan(ctx, admin, next.ID, model.LoanApproved, nil)
		require.NoError(t, err)
		require.Equal(t, 1, f.approvedCount(t, it.ID))
	})
}

func TestService_Waitlist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("join, rejoin, leave twice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, _ := f.borrowed(t, alice)

		entry, err := f.svc.JoinWaitlist(ctx, carol, it.ID)
		require.NoError(t, err)
		require.Equal(t, carol.UserID, entry.UserID)
		require.Equal(t, "Carol", entry.UserName)

		_, err = f.svc.JoinWaitlist(ctx, carol, it.ID)
		require.ErrorIs(t, err, errs.ErrConflict)

		require.NoError(t, f.svc.LeaveWaitlist(ctx, carol, it.ID))
		entries, err := f.svc.ListWaitlist(ctx, it.ID)
		require.NoError(t, err)
		require.Empty(t, entries)

		require.NoError(t, f.svc.LeaveWaitlist(ctx, carol, it.ID))

		_, err = f.svc.JoinWaitlist(ctx, carol, it.ID)
		require.NoError(t, err)
	})

	t.Run("queue order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, _ := f.borrowed(t, alice)

		for _, who := range []auth.Identity{carol, bob} {
			_, err := f.svc.JoinWaitlist(ctx, who, it.ID)
			require.NoError(t, err)
		}
		entries, err := f.svc.ListWaitlist(ctx, it.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "Carol", entries[0].UserName)
		require.Equal(t, "Bob", entries[1].UserName)
	})

	t.Run("err. item available", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		it := f.item(t, "Dune", model.ItemAvailable)

		_, err := f.svc.JoinWaitlist(ctx, carol, it.ID)
		require.ErrorIs(t, err, errs.ErrInvalidState)
		require.EqualError(t, err, "item is not borrowed")
	})

	t.Run("err. borrower joins", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, _ := f.borrowed(t, alice)

		_, err := f.svc.JoinWaitlist(ctx, alice, it.ID)
		require.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("err. item not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.JoinWaitlist(ctx, carol, "missing")
		require.ErrorIs(t, err, errs.ErrNotFound)
		_, err = f.svc.ListWaitlist(ctx, "missing")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("err. anonymous", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.JoinWaitlist(ctx, auth.Identity{}, "any")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
		require.ErrorIs(t, f.svc.LeaveWaitlist(ctx, auth.Identity{}, "any"), errs.ErrUnauthorized)
	})
}

func TestService_Catalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("borrowed status is owned by loans", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		free := f.item(t, "Solaris", model.ItemAvailable)
		lent, _ := f.borrowed(t, alice)

		borrowedStatus := model.ItemBorrowed
		_, err := f.svc.UpdateItem(ctx, admin, free.ID, model.UpdateItemRequest{Status: &borrowedStatus})
		require.ErrorIs(t, err, errs.ErrInvalidState)

		available := model.ItemAvailable
		_, err = f.svc.UpdateItem(ctx, admin, lent.ID, model.UpdateItemRequest{Status: &available})
		require.ErrorIs(t, err, errs.ErrInvalidState)

		title := "Dune Messiah"
		got, err := f.svc.UpdateItem(ctx, admin, lent.ID, model.UpdateItemRequest{Title: &title})
		require.NoError(t, err)
		require.Equal(t, title, got.Title)
		require.Equal(t, model.ItemBorrowed, got.Status)

		_, err = f.svc.CreateItem(ctx, admin, model.CreateItemRequest{Title: "x", Type: model.TypeToy, Status: model.ItemBorrowed})
		require.ErrorIs(t, err, errs.ErrInvalidState)
	})

	t.Run("admin only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.CreateItem(ctx, alice, model.CreateItemRequest{Title: "x", Type: model.TypeToy})
		require.ErrorIs(t, err, errs.ErrUnauthorized)
		require.ErrorIs(t, f.svc.DeleteItem(ctx, bob, "any"), errs.ErrUnauthorized)
	})

	t.Run("list with filter and paging", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.item(t, "A", model.ItemAvailable)
		f.item(t, "B", model.ItemLost)
		f.item(t, "C", model.ItemAvailable)

		all, err := f.svc.ListItems(ctx, model.ItemFilter{})
		require.NoError(t, err)
		require.Len(t, all.Items, 3)
		require.Equal(t, "C", all.Items[0].Title)

		avail, err := f.svc.ListItems(ctx, model.ItemFilter{Status: model.ItemAvailable})
		require.NoError(t, err)
		require.Len(t, avail.Items, 2)

		page, err := f.svc.ListItems(ctx, model.ItemFilter{Page: 2, Size: 2})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		require.Equal(t, "A", page.Items[0].Title)
	})

	t.Run("delete cascades", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.allowNotifications()
		it, _ := f.borrowed(t, alice)
		_, err := f.svc.JoinWaitlist(ctx, bob, it.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.DeleteItem(ctx, admin, it.ID))
		loans, err := f.svc.ListLoans(ctx, admin, "")
		require.NoError(t, err)
		require.Empty(t, loans)
		require.ErrorIs(t, f.svc.DeleteItem(ctx, admin, it.ID), errs.ErrNotFound)
	})
}

func TestService_ListLoans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.allowNotifications()

	one := f.item(t, "A", model.ItemAvailable)
	two := f.item(t, "B", model.ItemAvailable)
	f.request(t, alice, one.ID)
	f.request(t, bob, one.ID)
	f.request(t, alice, two.ID)

	mine, err := f.svc.ListLoans(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, l := range mine {
		require.Equal(t, alice.UserID, l.UserID)
	}
	require.Equal(t, two.ID, mine[0].ItemID)

	all, err := f.svc.ListLoans(ctx, admin, model.LoanPending)
	require.NoError(t, err)
	require.Len(t, all, 3)

	none, err := f.svc.ListLoans(ctx, admin, model.LoanApproved)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = f.svc.ListLoans(ctx, auth.Identity{}, "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
