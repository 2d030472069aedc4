package domain

import "github.com/shopspring/decimal"

type Category struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	IconURL  *string `json:"icon_url"`
	ParentID *int64  `json:"parent_id,omitempty"`
}

// IsRoot reports whether the category is top level. A null parent_id counts
// as top level.
func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

type CategoryNode struct {
	Category
	Subcategories []CategoryNode `json:"subcategories,omitempty"`
}

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Images       []ProductImage  `json:"images"`
	Category     *Category       `json:"category,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
}

// FirstImage returns the first non-empty image path.
func (p Product) FirstImage() string {
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

func (p Product) CategoryLabel() string {
	if p.Category != nil {
		return p.Category.Name
	}
	return p.CategoryName
}

// Card is a cart line joined with product display fields. DetailError is set
// when the product lookup failed and the display fields are placeholders.
type Card struct {
	LineID      int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Price       decimal.Decimal `json:"price"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"src"`
	DetailError string          `json:"detail_error,omitempty"`
}

// PlaceholderCard is the degraded card shown when product details are missing.
func PlaceholderCard(item CartItem, cause error) Card {
	c := Card{
		LineID:    item.ID,
		ProductID: item.Product.ID,
		Quantity:  item.Quantity,
		Subtotal:  item.Subtotal,
		Price:     item.Price(),
	}
	if cause != nil {
		c.DetailError = cause.Error()
	}
	return c
}
