package ports

import (
	"context"

	"github.com/target/catalog-admin/internal/domain/model"
)

// ProductCatalog reads the product catalog.
type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}
