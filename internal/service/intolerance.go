package service

import (
	"context"
	"fmt"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
	"github.com/sakif/piecemeal/internal/validation"
)

// IntoleranceService manages the dietary restrictions a user declares.
// Declared intolerances filter the user's recipe searches.
type IntoleranceService struct {
	repo repository.IntoleranceRepository
}

func NewIntoleranceService(repo repository.IntoleranceRepository) *IntoleranceService {
	return &IntoleranceService{repo: repo}
}

func checkIntolerance(i model.Intolerance) error {
	if !i.Valid() {
		return apperror.InvalidArgument("intolerance", fmt.Sprintf("unknown intolerance %d", int(i)))
	}
	return nil
}

// Add reports false when the user had already declared i.
func (s *IntoleranceService) Add(ctx context.Context, userID string, i model.Intolerance) (bool, error) {
	if err := checkIntolerance(i); err != nil {
		return false, err
	}
	return s.repo.AddIntolerance(ctx, userID, i)
}

func (s *IntoleranceService) Has(ctx context.Context, userID string, i model.Intolerance) (bool, error) {
	if err := checkIntolerance(i); err != nil {
		return false, err
	}
	return s.repo.HasIntolerance(ctx, userID, i)
}

// Delete reports whether i had been declared.
func (s *IntoleranceService) Delete(ctx context.Context, userID string, i model.Intolerance) (bool, error) {
	if err := checkIntolerance(i); err != nil {
		return false, err
	}
	return s.repo.DeleteIntolerance(ctx, userID, i)
}

func (s *IntoleranceService) List(ctx context.Context, userID string, offset, limit int) ([]model.Intolerance, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	return s.repo.GetIntolerances(ctx, userID, repository.ListOptions{Offset: offset, Limit: limit})
}

// All returns every declared intolerance; search filters use it.
func (s *IntoleranceService) All(ctx context.Context, userID string) ([]model.Intolerance, error) {
	list, _, err := s.repo.GetIntolerances(ctx, userID, repository.ListOptions{})
	return list, err
}
