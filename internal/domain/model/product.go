//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "encoding/json"

// Product is a catalog entry joined with its category names and variants.
type Product struct {
	ID               string           `json:"id"                 db:"id"`
	Name             string           `json:"name"               db:"name"`
	Description      *string          `json:"description"        db:"description"`
	DefaultMarginPct *float64         `json:"default_margin_pct" db:"default_margin_pct"`
	SubCategory      *string          `json:"sub_category"       db:"sub_category"`
	MainCategory     *string          `json:"main_category"      db:"main_category"`
	Variants         []ProductVariant `json:"variants"           db:"variants"`
}

// ProductVariant is a sellable configuration of a product.
// CostPrice is nil when the viewer is not allowed to see it.
type ProductVariant struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SKU        *string         `json:"sku"`
	CostPrice  *float64        `json:"cost_price,omitempty"`
	SalePrice  float64         `json:"sale_price"`
	Dimensions json.RawMessage `json:"dimensions,omitempty"`
	Color      *string         `json:"color"`
	Style      *string         `json:"style"`
	WoodType   *string         `json:"wood_type"`
	ImageURLs  []string        `json:"image_urls"`
}

// PrimaryImage returns the first image of the first variant that has one.
func (p Product) PrimaryImage() string {
	for _, v := range p.Variants {
		if len(v.ImageURLs) > 0 {
			return v.ImageURLs[0]
		}
	}
	return ""
}

// WithoutCosts returns a copy of p with every variant's cost price removed.
func (p Product) WithoutCosts() Product {
	out := p
	out.Variants = make([]ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		v.CostPrice = nil
		out.Variants[i] = v
	}
	return out
}
