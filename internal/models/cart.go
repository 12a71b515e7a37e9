package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ItemType tells which catalog table a cart or reservation line points at.
type ItemType string

const (
	ItemService   ItemType = "S"
	ItemCombo     ItemType = "C"
	ItemPromotion ItemType = "P"
)

// Cart is the per-customer shopping cart. One cart per customer; it is
// created on the first add and emptied atomically when the reservation is
// confirmed.
type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	CustomerID int64     `bun:"customer_id,notnull,unique" json:"customer_id"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Lines []CartLine `bun:"rel:has-many,join:id=cart_id" json:"lines,omitempty"`
}

// CartLine references exactly one of service, combo or promotion. The unit
// price is captured at add time so later catalog edits don't reprice carts.
type CartLine struct {
	bun.BaseModel `bun:"table:cart_lines"`

	ID          int64    `bun:"id,pk,autoincrement" json:"id"`
	CartID      int64    `bun:"cart_id,notnull" json:"cart_id"`
	ServiceID   int64    `bun:"service_id,nullzero" json:"service_id,omitempty"`
	ComboID     int64    `bun:"combo_id,nullzero" json:"combo_id,omitempty"`
	PromotionID int64    `bun:"promotion_id,nullzero" json:"promotion_id,omitempty"`
	ItemName    string   `bun:"item_name,notnull" json:"item_name"`
	Quantity    int      `bun:"quantity,notnull,default:1" json:"quantity"`
	UnitPrice   float64  `bun:"unit_price,notnull" json:"unit_price"`
}

func (l *CartLine) Type() ItemType {
	switch {
	case l.ServiceID != 0:
		return ItemService
	case l.ComboID != 0:
		return ItemCombo
	default:
		return ItemPromotion
	}
}

func (l *CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}
