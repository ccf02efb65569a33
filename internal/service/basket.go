package service

import (
	"context"
	"fmt"

	"onlinestore/internal/model"
	"onlinestore/internal/repository"
)

type BasketService struct {
	repo repository.Repository
}

func NewBasketService(repo repository.Repository) *BasketService {
	return &BasketService{repo: repo}
}

// AddOrMerge adds quantity of product to the owner's basket. An existing line
// for the same product is incremented instead of duplicated; created reports
// which of the two happened.
func (s *BasketService) AddOrMerge(ctx context.Context, ownerID, productID string, quantity int) (*model.BasketLine, bool, error) {
	if productID == "" {
		return nil, false, invalid("goodId is required")
	}
	if quantity <= 0 {
		return nil, false, invalid("count must be greater than zero")
	}

	line, created, err := s.repo.UpsertBasketLine(ctx, ownerID, productID, quantity)
	if err != nil {
		return nil, false, notFound("product "+productID, err)
	}
	return line, created, nil
}

// SetQuantity overwrites the line quantity. A quantity of zero or less removes
// the line and returns a nil line; removing an absent line is not an error.
func (s *BasketService) SetQuantity(ctx context.Context, ownerID, lineID string, quantity int) (*model.BasketLine, error) {
	if quantity <= 0 {
		if _, err := s.repo.DeleteBasketLines(ctx, ownerID, []string{lineID}); err != nil {
			return nil, fmt.Errorf("delete basket line: %w", err)
		}
		return nil, nil
	}

	line, err := s.repo.UpdateBasketLine(ctx, ownerID, lineID, quantity)
	if err != nil {
		return nil, notFound("basket line "+lineID, err)
	}
	return line, nil
}

func (s *BasketService) ListFor(ctx context.Context, ownerID string) ([]model.BasketLine, error) {
	lines, err := s.repo.ListBasketLines(ctx, ownerID, false)
	if err != nil {
		return nil, fmt.Errorf("list basket: %w", err)
	}
	if lines == nil {
		lines = []model.BasketLine{}
	}
	return lines, nil
}

// ClearFor removes the snapshot lines from the owner's basket. Lines added
// after the snapshot was taken are left in place.
func (s *BasketService) ClearFor(ctx context.Context, ownerID string, snapshot []model.BasketLine) error {
	ids := make([]string, 0, len(snapshot))
	for _, l := range snapshot {
		ids = append(ids, l.ID)
	}
	if _, err := s.repo.DeleteBasketLines(ctx, ownerID, ids); err != nil {
		return fmt.Errorf("clear basket: %w", err)
	}
	return nil
}

// snapshot reads and locks the owner's lines for the rest of the
// surrounding transaction.
func (s *BasketService) snapshot(ctx context.Context, ownerID string) ([]model.BasketLine, error) {
	lines, err := s.repo.ListBasketLines(ctx, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("read basket: %w", err)
	}
	return lines, nil
}
