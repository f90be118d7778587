package address

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
)

// Service manages a user's shipping addresses. At most one address per user
// carries the default flag.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateAddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tx   txRunner
	repo *Repository
}

func NewService(tx txRunner, repository *Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{tx: tx, repo: repository}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	m := input.toModel(userID)
	if err := validateModel(m); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		count, err := r.CountByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count addresses")
		}
		// the first address becomes the default
		if count == 0 {
			m.IsDefault = true
		}
		if m.IsDefault {
			if err := r.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
			}
		}
		if err := r.Create(ctx, m); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(m), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error) {
	m, err := s.repo.FindOwned(ctx, userID, id)
	if err != nil {
		return nil, repo.NotFound(err, "address")
	}
	return FromModel(m), nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateAddressInput) (*AddressDTO, error) {
	var updated *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		m, err := r.FindOwned(ctx, userID, id)
		if err != nil {
			return repo.NotFound(err, "address")
		}
		input.apply(m)
		if err := validateModel(m); err != nil {
			return err
		}
		if err := r.Save(ctx, m); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// Delete removes the address. When it was the default, the most recent
// remaining address inherits the flag.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		m, err := r.FindOwned(ctx, userID, id)
		if err != nil {
			return repo.NotFound(err, "address")
		}
		if _, err := r.Delete(ctx, userID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
		}
		if !m.IsDefault {
			return nil
		}
		remaining, err := r.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
		}
		if len(remaining) == 0 {
			return nil
		}
		if err := r.MarkDefault(ctx, remaining[0].ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote default address")
		}
		return nil
	})
}

// SetDefault clears the flag on siblings and sets it on id in one transaction.
func (s *service) SetDefault(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error) {
	var target *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		m, err := r.FindOwned(ctx, userID, id)
		if err != nil {
			return repo.NotFound(err, "address")
		}
		if m.IsDefault {
			target = m
			return nil
		}
		if err := r.ClearDefault(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
		}
		if err := r.MarkDefault(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default address")
		}
		m.IsDefault = true
		target = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(target), nil
}

func validateModel(m *models.Address) error {
	missing := map[string]string{}
	check := func(field, value string) {
		if value == "" {
			missing[field] = "required"
		}
	}
	check("full_name", m.FullName)
	check("line1", m.Line1)
	check("city", m.City)
	check("province", m.Province)
	check("postal_code", m.PostalCode)
	check("country", m.Country)
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid address").WithDetails(missing)
	}
	return nil
}
