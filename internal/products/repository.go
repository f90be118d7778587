package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// Repository wires together product persistence helpers.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Create inserts every column so an explicit is_active=false is not
// replaced by the column default.
func (r *Repository) Create(ctx context.Context, m *models.Product) error {
	if m.Variants == nil {
		m.Variants = pq.StringArray{}
	}
	return r.DB(ctx).Select("*").Create(m).Error
}

func (r *Repository) Save(ctx context.Context, m *models.Product) error {
	return r.DB(ctx).Save(m).Error
}

// FindByID loads the product regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var m models.Product
	if err := r.DB(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var m models.Product
	if err := r.DB(ctx).First(&m, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByRefs loads every product matching one of the ids or slugs.
func (r *Repository) FindByRefs(ctx context.Context, ids []uuid.UUID, slugs []string) ([]models.Product, error) {
	if len(ids) == 0 && len(slugs) == 0 {
		return nil, nil
	}
	q := r.DB(ctx).Model(&models.Product{})
	switch {
	case len(ids) > 0 && len(slugs) > 0:
		q = q.Where("id IN ? OR slug IN ?", ids, slugs)
	case len(ids) > 0:
		q = q.Where("id IN ?", ids)
	default:
		q = q.Where("slug IN ?", slugs)
	}
	var rows []models.Product
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns a newest-first page with a lookahead row.
func (r *Repository) List(ctx context.Context, input ListProductsInput, cursor *pagination.Cursor) ([]models.Product, error) {
	q := r.DB(ctx).Model(&models.Product{})
	if !input.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if term := strings.TrimSpace(input.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR slug LIKE ?", like, like)
	}
	var rows []models.Product
	if err := pagination.Apply(q, cursor, input.Pagination.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
