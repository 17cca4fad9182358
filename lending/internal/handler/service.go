package handler

import (
	"context"
	"time"

	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/service"
	"github.com/Astemirdum/librakeeper/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LendingService interface {
	RequestLoan(ctx context.Context, actor auth.Identity, itemID string) (model.Loan, error)
	DecideLoan(ctx context.Context, actor auth.Identity, loanID string, decision model.LoanStatus, dueAt *time.Time) (model.Loan, error)
	ReturnLoan(ctx context.Context, actor auth.Identity, loanID string) (model.Loan, error)
	ListLoans(ctx context.Context, actor auth.Identity, status model.LoanStatus) ([]model.Loan, error)

	JoinWaitlist(ctx context.Context, actor auth.Identity, itemID string) (model.WaitlistEntry, error)
	LeaveWaitlist(ctx context.Context, actor auth.Identity, itemID string) error
	ListWaitlist(ctx context.Context, itemID string) ([]model.WaitlistEntry, error)

	CreateItem(ctx context.Context, actor auth.Identity, req model.CreateItemRequest) (model.Item, error)
	GetItem(ctx context.Context, id string) (model.Item, error)
	ListItems(ctx context.Context, f model.ItemFilter) (model.ListItems, error)
	UpdateItem(ctx context.Context, actor auth.Identity, id string, req model.UpdateItemRequest) (model.Item, error)
	DeleteItem(ctx context.Context, actor auth.Identity, id string) error
}

var _ LendingService = (*service.Service)(nil)
