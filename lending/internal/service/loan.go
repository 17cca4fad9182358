package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/repository"
	"github.com/Astemirdum/librakeeper/pkg/auth"
)

// RequestLoan creates a PENDING loan for an AVAILABLE item and tells the admins.
func (s *Service) RequestLoan(ctx context.Context, actor auth.Identity, itemID string) (model.Loan, error) {
	if err := requireIdentity(actor); err != nil {
		return model.Loan{}, err
	}
	var (
		loan model.Loan
		item model.Item
	)
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if err = tx.UpsertUser(ctx, userFromIdentity(actor)); err != nil {
			return errors.Wrap(err, "UpsertUser")
		}
		if item, err = tx.GetItem(ctx, itemID); err != nil {
			return err
		}
		if item.Status != model.ItemAvailable {
			return errs.ErrItemNotAvailable
		}
		pending, err := tx.HasPendingLoan(ctx, itemID, actor.UserID)
		if err != nil {
			return errors.Wrap(err, "HasPendingLoan")
		}
		if pending {
			return errs.ErrLoanAlreadyPending
		}
		now := s.now()
		loan, err = tx.CreateLoan(ctx, model.Loan{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			UserID:    actor.UserID,
			Status:    model.LoanPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}

	borrower := displayName(actor)
	s.dispatch(ctx, "NotifyLoanRequested", func(ctx context.Context) error {
		admins, err := s.adminRecipients(ctx)
		if err != nil {
			return errors.Wrap(err, "adminRecipients")
		}
		if len(admins) == 0 {
			s.log.Warn("no admin recipients for loan request", zap.String("loanId", loan.ID))
			return nil
		}
		return s.notifier.NotifyLoanRequested(ctx, model.LoanRequested{
			LoanID:       loan.ID,
			AdminEmails:  admins,
			BorrowerName: borrower,
			ItemTitle:    item.Title,
		})
	})
	return loan, nil
}

// DecideLoan approves or rejects a loan. Approval moves the item to BORROWED
// under the item row lock; the losing side of a race gets a conflict and its
// loan stays PENDING. Repeating the decision a loan already carries is a no-op.
func (s *Service) DecideLoan(ctx context.Context, actor auth.Identity, loanID string, decision model.LoanStatus, dueAt *time.Time) (model.Loan, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Loan{}, err
	}
	if decision != model.LoanApproved && decision != model.LoanRejected {
		return model.Loan{}, errs.New(errs.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	var (
		loan    model.Loan
		item    model.Item
		changed bool
	)
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if loan, err = tx.GetLoan(ctx, loanID); err != nil {
			return err
		}
		// item before loan, the same order item deletion takes
		if item, err = tx.LockItem(ctx, loan.ItemID); err != nil {
			return err
		}
		if loan, err = tx.LockLoan(ctx, loanID); err != nil {
			return err
		}
		if loan.Status == decision {
			return nil
		}
		if loan.Status != model.LoanPending {
			return errs.ErrLoanNotPending
		}

		now := s.now()
		if decision == model.LoanApproved {
			if err := s.approve(ctx, tx, item); err != nil {
				return err
			}
			loan.ApprovedAt = &now
			if dueAt != nil {
				due := dueAt.UTC()
				loan.DueAt = &due
			}
		}
		loan.Status = decision
		loan.UpdatedAt = now
		if loan, err = tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	if !changed {
		return loan, nil
	}

	s.dispatch(ctx, "NotifyLoanDecided", func(ctx context.Context) error {
		borrower, err := s.repo.GetUser(ctx, loan.UserID)
		if err != nil {
			return errors.Wrap(err, "GetUser")
		}
		if borrower.Email == "" {
			s.log.Warn("borrower has no email", zap.String("userId", borrower.ID))
			return nil
		}
		return s.notifier.NotifyLoanDecided(ctx, model.LoanDecided{
			LoanID:        loan.ID,
			BorrowerEmail: borrower.Email,
			ItemTitle:     item.Title,
			Decision:      loan.Status,
		})
	})
	return loan, nil
}

// approve runs inside the decision transaction with the item row locked.
func (s *Service) approve(ctx context.Context, tx repository.Repository, item model.Item) error {
	if item.Status == model.ItemBorrowed {
		return errs.ErrActiveLoanExists
	}
	if !item.Status.Approvable() {
		return errs.ErrItemNotApprovable
	}
	active, err := tx.ListActiveLoansForItem(ctx, item.ID)
	if err != nil {
		return errors.Wrap(err, "ListActiveLoansForItem")
	}
	if len(active) > 0 {
		return errs.ErrActiveLoanExists
	}
	if err := tx.UpdateItemStatus(ctx, item.ID, model.ItemBorrowed, model.ItemAvailable, model.ItemReserved); err != nil {
		if errors.Is(err, errs.ErrStatusChanged) {
			return errs.ErrActiveLoanExists
		}
		return err
	}
	return nil
}

// ReturnLoan closes an APPROVED loan and makes the item AVAILABLE again.
// The waitlist is left untouched.
func (s *Service) ReturnLoan(ctx context.Context, actor auth.Identity, loanID string) (model.Loan, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if loan, err = tx.GetLoan(ctx, loanID); err != nil {
			return err
		}
		if _, err = tx.LockItem(ctx, loan.ItemID); err != nil {
			return err
		}
		if loan, err = tx.LockLoan(ctx, loanID); err != nil {
			return err
		}
		if loan.Status != model.LoanApproved {
			return errs.ErrLoanNotApproved
		}
		now := s.now()
		loan.Status = model.LoanReturned
		loan.ReturnedAt = &now
		loan.UpdatedAt = now
		if loan, err = tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		return tx.UpdateItemStatus(ctx, loan.ItemID, model.ItemAvailable, model.ItemBorrowed)
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// ListLoans returns every loan to admins and only their own loans to users.
func (s *Service) ListLoans(ctx context.Context, actor auth.Identity, status model.LoanStatus) ([]model.Loan, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	f := model.LoanFilter{Status: status}
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	return s.repo.ListLoans(ctx, f)
}

func (s *Service) JoinWaitlist(ctx context.Context, actor auth.Identity, itemID string) (model.WaitlistEntry, error) {
	if err := requireIdentity(actor); err != nil {
		return model.WaitlistEntry{}, err
	}
	var entry model.WaitlistEntry
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		if err := tx.UpsertUser(ctx, userFromIdentity(actor)); err != nil {
			return errors.Wrap(err, "UpsertUser")
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status != model.ItemBorrowed {
			return errs.ErrItemNotBorrowed
		}
		active, err := tx.ListActiveLoansForItem(ctx, itemID)
		if err != nil {
			return errors.Wrap(err, "ListActiveLoansForItem")
		}
		for _, l := range active {
			if l.UserID == actor.UserID {
				return errs.ErrOwnLoanWaitlist
			}
		}
		_, err = tx.GetWaitlistEntry(ctx, itemID, actor.UserID)
		switch {
		case err == nil:
			return errs.ErrAlreadyInWaitlist
		case !errors.Is(err, errs.ErrNotFound):
			return errors.Wrap(err, "GetWaitlistEntry")
		}
		entry, err = tx.CreateWaitlistEntry(ctx, model.WaitlistEntry{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			UserID:    actor.UserID,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return model.WaitlistEntry{}, err
	}
	entry.UserName = actor.Name
	return entry, nil
}

// LeaveWaitlist is idempotent: leaving a waitlist one is not on succeeds.
func (s *Service) LeaveWaitlist(ctx context.Context, actor auth.Identity, itemID string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if err := s.repo.DeleteWaitlistEntry(ctx, itemID, actor.UserID); err != nil {
		return errors.Wrap(err, "DeleteWaitlistEntry")
	}
	return nil
}

func (s *Service) ListWaitlist(ctx context.Context, itemID string) ([]model.WaitlistEntry, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListWaitlist(ctx, itemID)
}
