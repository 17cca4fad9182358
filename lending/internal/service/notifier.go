package service

import (
	"context"

	"github.com/Astemirdum/librakeeper/lending/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=notifier.go -destination=mocks/mock.go

// Notifier delivers loan notifications. It is called after the state change
// has been committed; its errors never reach the caller of the engine.
type Notifier interface {
	NotifyLoanRequested(ctx context.Context, msg model.LoanRequested) error
	NotifyLoanDecided(ctx context.Context, msg model.LoanDecided) error
}
