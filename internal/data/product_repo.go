package data

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/target/catalog-admin/internal/data/pgxutil"
	"github.com/target/catalog-admin/internal/domain/model"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
)

type productRow struct {
	ID               string   `db:"id"`
	Name             string   `db:"name"`
	Description      *string  `db:"description"`
	DefaultMarginPct *float64 `db:"default_margin_pct"`
	SubCategory      *string  `db:"sub_category"`
	MainCategory     *string  `db:"main_category"`
}

type variantRow struct {
	ID         string   `db:"id"`
	ProductID  string   `db:"product_id"`
	Name       string   `db:"name"`
	SKU        *string  `db:"sku"`
	CostPrice  float64  `db:"cost_price"`
	SalePrice  float64  `db:"sale_price"`
	Dimensions *string  `db:"dimensions"`
	Color      *string  `db:"color"`
	Style      *string  `db:"style"`
	WoodType   *string  `db:"wood_type"`
	ImageURLs  []string `db:"image_urls"`
}

func (v variantRow) toModel() model.ProductVariant {
	cost := v.CostPrice
	out := model.ProductVariant{
		ID:        v.ID,
		Name:      v.Name,
		SKU:       v.SKU,
		CostPrice: &cost,
		SalePrice: v.SalePrice,
		Color:     v.Color,
		Style:     v.Style,
		WoodType:  v.WoodType,
		ImageURLs: v.ImageURLs,
	}
	if v.Dimensions != nil {
		out.Dimensions = json.RawMessage(*v.Dimensions)
	}
	if out.ImageURLs == nil {
		out.ImageURLs = []string{}
	}
	return out
}

const listProductsQuery = `
	SELECT p.id::text AS id, p.name, p.description,
	       p.default_margin_pct::float8 AS default_margin_pct,
	       sc.name AS sub_category, mc.name AS main_category
	FROM products p
	LEFT JOIN sub_categories sc ON sc.id = p.sub_category_id
	LEFT JOIN main_categories mc ON mc.id = sc.main_category_id
	ORDER BY p.name, p.id`

const listVariantsQuery = `
	SELECT v.id::text AS id, v.product_id::text AS product_id, v.name, v.sku,
	       v.cost_price::float8 AS cost_price, v.sale_price::float8 AS sale_price,
	       v.dimensions::text AS dimensions, v.color, v.style,
	       wt.name AS wood_type, v.image_urls
	FROM variants v
	LEFT JOIN wood_types wt ON wt.id = v.wood_type_id
	ORDER BY v.product_id, v.name, v.id`

var _ ports.ProductCatalog = (*ProductRepo)(nil)

// ProductRepo reads the product catalog.
type ProductRepo struct {
	DB *sql.DB
}

// NewProductRepo creates a new ProductRepo.
func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{DB: db}
}

// ListProducts returns every product ordered by name with its category names and variants.
// Both reads run in one repeatable-read snapshot.
func (r *ProductRepo) ListProducts(ctx context.Context) ([]model.Product, error) {
	var (
		products []productRow
		variants []variantRow
	)
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, listProductsQuery)
			if err != nil {
				return err
			}
			if products, err = pgx.CollectRows(rows, pgx.RowToStructByName[productRow]); err != nil {
				return err
			}
			rows, err = tx.Query(ctx, listVariantsQuery)
			if err != nil {
				return err
			}
			variants, err = pgx.CollectRows(rows, pgx.RowToStructByName[variantRow])
			return err
		},
	})
	if err != nil {
		return nil, apperrors.QueryError(apperrors.MapDBError(err), "list products")
	}
	return assembleProducts(products, variants), nil
}

func assembleProducts(products []productRow, variants []variantRow) []model.Product {
	byProduct := make(map[string][]model.ProductVariant, len(products))
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v.toModel())
	}

	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		vs := byProduct[p.ID]
		if vs == nil {
			vs = []model.ProductVariant{}
		}
		out = append(out, model.Product{
			ID:               p.ID,
			Name:             p.Name,
			Description:      p.Description,
			DefaultMarginPct: p.DefaultMarginPct,
			SubCategory:      p.SubCategory,
			MainCategory:     p.MainCategory,
			Variants:         vs,
		})
	}
	return out
}
