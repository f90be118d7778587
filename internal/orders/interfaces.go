package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntentRef(ctx context.Context, ref string) (*models.Order, error)
	SetPaymentIntentRef(ctx context.Context, id uuid.UUID, ref string) error
	// TransitionStatus moves id to next only while its status is one of from,
	// applying extra columns in the same statement. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, next enums.OrderStatus, extra map[string]any) (bool, error)
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// ListFilters narrow order listings. A nil UserID lists every user's orders.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}
