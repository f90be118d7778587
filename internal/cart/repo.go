package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
)

// Repository persists the one-per-user cart.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// FindByUser loads the user's cart with its items in insertion order.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC").Order("id ASC") }).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Upsert returns the user's cart row, creating it when absent.
func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB(ctx).Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		if err := r.DB(ctx).Model(&cart).UpdateColumn("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cart = models.Cart{ID: uuid.New(), UserID: userID}
	if err := r.DB(ctx).Create(&cart).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrConcurrentCart
		}
		return nil, err
	}
	return &cart, nil
}

// ReplaceItems deletes every line of cartID and inserts items.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	if err := r.DB(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	// distinct created_at values keep the submitted line order stable
	base := time.Now().UTC()
	for i := range items {
		items[i].CartID = cartID
		items[i].CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.DB(ctx).Create(&items).Error
}

// ClearOrderedLines removes the user's cart lines matching an order's
// (product, variant) pairs. Lines for anything else were added after the
// order was placed and survive.
func (r *Repository) ClearOrderedLines(ctx context.Context, userID uuid.UUID, items []models.OrderItem) (int64, error) {
	var removed int64
	for _, item := range items {
		res := r.DB(ctx).
			Where("cart_id IN (?)", r.DB(ctx).Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)).
			Where("product_id = ? AND variant = ?", item.ProductID, item.Variant).
			Delete(&models.CartItem{})
		if res.Error != nil {
			return removed, res.Error
		}
		removed += res.RowsAffected
	}
	return removed, nil
}

// ErrConcurrentCart signals that another request created the cart first.
var ErrConcurrentCart = errors.New("cart created concurrently")
