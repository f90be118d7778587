package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
)

// Base is embedded by domain repositories so they can be rebound to a
// transaction without repeating the plumbing.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// NotFound converts gorm's record-not-found into a typed NOT_FOUND error and
// wraps everything else as INTERNAL_ERROR.
func NotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+what)
}
