package catalog

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"taskplane/pkg/db/option"
	"taskplane/pkg/errutil"
	"taskplane/pkg/repository"
)

// ErrNoEligibleProducts signals an empty task-eligible pool.
var ErrNoEligibleProducts = errutil.NotFound("no eligible products available", nil)

type Service struct {
	products repository.Repository[Product]
}

type Params struct {
	fx.In
	DB *gorm.DB
}

func NewService(p Params) *Service {
	return &Service{
		products: repository.ProvideStore[Product](p.DB),
	}
}

// TaskPool returns the task-eligible active products sorted by price
// ascending, the order the banded selector expects.
func (s *Service) TaskPool(ctx context.Context) ([]*Product, error) {
	products, err := s.products.Find(ctx, &Product{Active: true, IsTask: true},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "price",
			OrderBy: "asc",
			Allow: map[string]bool{
				"price": true,
			},
		}),
	)
	if err != nil {
		return nil, err
	}

	if len(products) == 0 {
		return nil, ErrNoEligibleProducts
	}

	return products, nil
}

// Get resolves a single product; the override path uses it to re-snapshot
// the price of a replacement product.
func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	if productID == "" {
		return nil, errutil.NotFound("product not found", nil)
	}

	product, err := s.products.FindOne(ctx, &Product{ID: productID})
	if err != nil {
		return nil, err
	}

	if product == nil {
		return nil, errutil.NotFound("product not found", nil)
	}

	return product, nil
}
