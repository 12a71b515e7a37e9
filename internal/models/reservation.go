package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Reservation states.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusVoided   = "VOIDED"
	StatusDeleted  = "DELETED"
)

// Payment methods.
const (
	PayTransfer = "transfer"
	PayCard     = "card"
	PayCash     = "cash"
)

// TimeSlot is an admin-defined bookable window. (date, start, end) is unique.
type TimeSlot struct {
	bun.BaseModel `bun:"table:time_slots"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	Date      string `bun:"date,notnull" json:"date"`
	StartTime string `bun:"start_time,notnull" json:"start_time"`
	EndTime   string `bun:"end_time,notnull" json:"end_time"`
	Capacity  int    `bun:"capacity,notnull,default:1" json:"capacity"`
	Available bool   `bun:"available,notnull,default:true" json:"available"`
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	CustomerID    int64      `bun:"customer_id,notnull" json:"customer_id"`
	SlotID        int64      `bun:"slot_id,notnull" json:"slot_id"`
	Code          string     `bun:"code,notnull,unique" json:"code"`
	EventDate     string     `bun:"event_date,notnull" json:"event_date"`
	StartTime     string     `bun:"start_time,nullzero" json:"start_time,omitempty"`
	Address       string     `bun:"address,notnull" json:"address"`
	Notes         string     `bun:"notes,nullzero" json:"notes,omitempty"`
	Subtotal      float64    `bun:"subtotal,notnull" json:"subtotal"`
	Discount      float64    `bun:"discount,notnull,default:0" json:"discount"`
	Tax           float64    `bun:"tax,notnull,default:0" json:"tax"`
	Total         float64    `bun:"total,notnull" json:"total"`
	Status        string     `bun:"status,notnull,default:'PENDING'" json:"status"`
	PaymentMethod string     `bun:"payment_method,nullzero" json:"payment_method,omitempty"`
	ProofURL      string     `bun:"proof_url,nullzero" json:"proof_url,omitempty"`
	TransactionID string     `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	ConfirmedAt   *time.Time `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`

	Lines []ReservationLine `bun:"rel:has-many,join:id=reservation_id" json:"lines,omitempty"`
}

// ReservationLine is the immutable snapshot of a cart line taken at
// confirmation time.
type ReservationLine struct {
	bun.BaseModel `bun:"table:reservation_lines"`

	ID            int64    `bun:"id,pk,autoincrement" json:"id"`
	ReservationID int64    `bun:"reservation_id,notnull" json:"reservation_id"`
	Type          ItemType `bun:"type,notnull" json:"type"`
	ServiceID     int64    `bun:"service_id,nullzero" json:"service_id,omitempty"`
	ComboID       int64    `bun:"combo_id,nullzero" json:"combo_id,omitempty"`
	PromotionID   int64    `bun:"promotion_id,nullzero" json:"promotion_id,omitempty"`
	ItemName      string   `bun:"item_name,notnull" json:"item_name"`
	Quantity      int      `bun:"quantity,notnull,default:1" json:"quantity"`
	UnitPrice     float64  `bun:"unit_price,notnull" json:"unit_price"`
	Subtotal      float64  `bun:"subtotal,notnull" json:"subtotal"`
}

// BankAccount holds the transfer destinations shown to customers paying by
// bank transfer.
type BankAccount struct {
	bun.BaseModel `bun:"table:bank_accounts"`

	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	BankName      string `bun:"bank_name,notnull" json:"bank_name"`
	AccountNumber string `bun:"account_number,notnull" json:"account_number"`
	AccountHolder string `bun:"account_holder,notnull" json:"account_holder"`
	Active        bool   `bun:"active,notnull,default:true" json:"active"`
}
