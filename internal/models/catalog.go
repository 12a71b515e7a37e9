package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	Description string `bun:"description,nullzero" json:"description,omitempty"`
	Active      bool   `bun:"active,notnull,default:true" json:"active"`
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	CategoryID    int64     `bun:"category_id,nullzero" json:"category_id,omitempty"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description,nullzero" json:"description,omitempty"`
	BasePrice     float64   `bun:"base_price,notnull" json:"base_price"`
	DurationHours float64   `bun:"duration_hours,nullzero" json:"duration_hours,omitempty"`
	Capacity      int       `bun:"capacity,nullzero" json:"capacity,omitempty"`
	ImageURL      string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	Available     bool      `bun:"available,notnull,default:true" json:"available"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Combo struct {
	bun.BaseModel `bun:"table:combos"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Price       float64   `bun:"price,notnull" json:"price"`
	DiscountPct float64   `bun:"discount_pct,nullzero" json:"discount_pct,omitempty"`
	ImageURL    string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	Active      bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// ComboService links a combo to the services bundled inside it.
type ComboService struct {
	bun.BaseModel `bun:"table:combo_services"`

	ID        int64 `bun:"id,pk,autoincrement" json:"id"`
	ComboID   int64 `bun:"combo_id,notnull" json:"combo_id"`
	ServiceID int64 `bun:"service_id,notnull" json:"service_id"`
	Quantity  int   `bun:"quantity,notnull,default:1" json:"quantity"`
}

type Promotion struct {
	bun.BaseModel `bun:"table:promotions"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Price       float64   `bun:"price,notnull" json:"price"`
	StartsAt    time.Time `bun:"starts_at,notnull" json:"starts_at"`
	EndsAt      time.Time `bun:"ends_at,notnull" json:"ends_at"`
	Active      bool      `bun:"active,notnull,default:true" json:"active"`
}
