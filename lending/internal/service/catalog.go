package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Astemirdum/librakeeper/lending/internal/errs"
	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/repository"
	"github.com/Astemirdum/librakeeper/pkg/auth"
)

func (s *Service) CreateItem(ctx context.Context, actor auth.Identity, req model.CreateItemRequest) (model.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Item{}, err
	}
	status := req.Status
	if status == "" {
		status = model.ItemAvailable
	}
	if status == model.ItemBorrowed {
		return model.Item{}, errs.ErrItemStatusLocked
	}
	now := s.now()
	return s.repo.CreateItem(ctx, model.Item{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Publisher:   req.Publisher,
		CoverImage:  req.CoverImage,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) GetItem(ctx context.Context, id string) (model.Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, f model.ItemFilter) (model.ListItems, error) {
	return s.repo.ListItems(ctx, f)
}

// UpdateItem edits catalog fields. BORROWED is owned by the loan lifecycle, so
// the status can neither be set to it nor moved away from it here.
func (s *Service) UpdateItem(ctx context.Context, actor auth.Identity, id string, req model.UpdateItemRequest) (model.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Item{}, err
	}
	var item model.Item
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if item, err = tx.LockItem(ctx, id); err != nil {
			return err
		}
		if req.Status != nil && *req.Status != item.Status &&
			(*req.Status == model.ItemBorrowed || item.Status == model.ItemBorrowed) {
			return errs.ErrItemStatusLocked
		}
		req.Apply(&item)
		item.UpdatedAt = s.now()
		item, err = tx.UpdateItem(ctx, item)
		return err
	})
	if err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// DeleteItem removes the item together with its loans and waitlist.
func (s *Service) DeleteItem(ctx context.Context, actor auth.Identity, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, id)
}
