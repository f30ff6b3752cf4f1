package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"workdesk/internal/model"
)

// ArticleRepository reads and writes articles with author and category preloaded.
type ArticleRepository struct {
	db *gorm.DB
}

func NewArticleRepository(db *gorm.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Category").
		Order("date DESC, id DESC")
}

func (r *ArticleRepository) Create(ctx context.Context, article *model.Article) error {
	if err := r.db.WithContext(ctx).Create(article).Error; err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

func (r *ArticleRepository) List(ctx context.Context) ([]model.Article, error) {
	var articles []model.Article
	if err := r.query(ctx).Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *ArticleRepository) FindByID(ctx context.Context, id uint) (*model.Article, error) {
	var article model.Article
	if err := r.db.WithContext(ctx).Preload("User").Preload("Category").First(&article, id).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *ArticleRepository) ListByCategory(ctx context.Context, categoryID uint) ([]model.Article, error) {
	var articles []model.Article
	if err := r.query(ctx).Where("category_id = ?", categoryID).Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *ArticleRepository) ListByUser(ctx context.Context, userID uint) ([]model.Article, error) {
	var articles []model.Article
	if err := r.query(ctx).Where("user_id = ?", userID).Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// Search returns articles whose title or text contains q, ignoring case.
func (r *ArticleRepository) Search(ctx context.Context, q string) ([]model.Article, error) {
	needle := strings.ToLower(q)
	var articles []model.Article
	if err := r.query(ctx).
		Where("instr(casefold(title), ?) > 0 OR instr(casefold(text), ?) > 0", needle, needle).
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return articles, nil
}
