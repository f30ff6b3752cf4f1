package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"workdesk/internal/model"
	"workdesk/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.repo.List(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("category %d", id))
	}
	return category, nil
}

// Create adds a category named name (trimmed, 1..64 characters).
func (s *CategoryService) Create(ctx context.Context, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	verr := &ValidationError{}
	switch {
	case name == "":
		verr.Add("name", "Обязательное поле.")
	case utf8.RuneCountInString(name) > model.CategoryNameMaxLen:
		verr.Add("name", fmt.Sprintf("Не более %d символов.", model.CategoryNameMaxLen))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	category := model.Category{Name: name}
	if err := s.repo.Create(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}
