package service

import (
	"context"
	"log/slog"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/domain/model"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
)

// CatalogServiceOptions groups dependencies for CatalogService.
type CatalogServiceOptions struct {
	Repo         ports.ProductCatalog
	Logger       *slog.Logger
	QueryTimeout time.Duration
}

// CatalogService serves the product catalog with role-based field visibility.
type CatalogService struct {
	repo    ports.ProductCatalog
	logger  *slog.Logger
	timeout time.Duration
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(opts CatalogServiceOptions) *CatalogService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		repo:    opts.Repo,
		logger:  logger.With("component", "catalog_service"),
		timeout: opts.QueryTimeout,
	}
}

// List returns all products ordered by name. Cost prices are only kept for admins.
func (s *CatalogService) List(ctx context.Context, role domainauth.Role) ([]model.Product, error) {
	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.repo.ListProducts(callCtx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list products failed", "error", err)
		if apperrors.IsQuery(err) {
			return nil, err
		}
		return nil, apperrors.QueryError(apperrors.FromContext(err), "list products")
	}
	if products == nil {
		products = []model.Product{}
	}
	if role.IsAdmin() {
		return products, nil
	}

	out := make([]model.Product, len(products))
	for i, p := range products {
		out[i] = p.WithoutCosts()
	}
	return out, nil
}
