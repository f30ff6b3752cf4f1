package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"workdesk/internal/model"
	"workdesk/internal/repository"
)

// ArticleInput represents data required to write an article.
type ArticleInput struct {
	Title      string
	Text       string
	CategoryID *uint
}

// ArticleService wraps article queries and authoring.
type ArticleService struct {
	articleRepo  *repository.ArticleRepository
	categoryRepo *repository.CategoryRepository
	userRepo     *repository.UserRepository
	now          func() time.Time
}

func NewArticleService(articleRepo *repository.ArticleRepository, categoryRepo *repository.CategoryRepository, userRepo *repository.UserRepository) *ArticleService {
	return &ArticleService{articleRepo: articleRepo, categoryRepo: categoryRepo, userRepo: userRepo, now: time.Now}
}

// List returns every article, newest first.
func (s *ArticleService) List(ctx context.Context) ([]model.Article, error) {
	return s.articleRepo.List(ctx)
}

func (s *ArticleService) Get(ctx context.Context, id uint) (*model.Article, error) {
	article, err := s.articleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("article %d", id))
	}
	return article, nil
}

// ByCategory returns the category and its articles.
func (s *ArticleService) ByCategory(ctx context.Context, categoryID uint) (*model.Category, []model.Article, error) {
	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, nil, notFound(err, fmt.Sprintf("category %d", categoryID))
	}
	articles, err := s.articleRepo.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, nil, err
	}
	return category, articles, nil
}

// ByAuthor returns the author and the articles they wrote.
func (s *ArticleService) ByAuthor(ctx context.Context, userID uint) (*model.User, []model.Article, error) {
	author, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, notFound(err, fmt.Sprintf("user %d", userID))
	}
	articles, err := s.articleRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return author, articles, nil
}

// Search matches q against title and text ignoring case. A blank q
// returns every article.
func (s *ArticleService) Search(ctx context.Context, q string) ([]model.Article, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.articleRepo.List(ctx)
	}
	return s.articleRepo.Search(ctx, q)
}

// Write stores a new article by author dated today.
func (s *ArticleService) Write(ctx context.Context, author *model.User, in ArticleInput) (*model.Article, error) {
	if author == nil {
		return nil, fmt.Errorf("%w: anonymous author", ErrForbidden)
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Text = strings.TrimSpace(in.Text)

	verr := &ValidationError{}
	switch {
	case in.Title == "":
		verr.Add("title", "Обязательное поле.")
	case utf8.RuneCountInString(in.Title) > model.TitleMaxLen:
		verr.Add("title", fmt.Sprintf("Не более %d символов.", model.TitleMaxLen))
	}
	if in.Text == "" {
		verr.Add("text", "Обязательное поле.")
	}
	if in.CategoryID != nil {
		_, err := s.categoryRepo.GetByID(ctx, *in.CategoryID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			verr.Add("category", "Выберите существующую категорию.")
		case err != nil:
			return nil, err
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	article := model.Article{
		Title:      in.Title,
		Text:       in.Text,
		Date:       today(s.now()),
		UserID:     &author.ID,
		CategoryID: in.CategoryID,
	}
	if err := s.articleRepo.Create(ctx, &article); err != nil {
		return nil, err
	}
	return &article, nil
}
