package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Customer anchors carts and reservations to a verified login. Identity
// lives with the OIDC provider; rows are provisioned from its claims on the
// first authenticated request, so only the email is guaranteed.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	FirstName    string    `bun:"first_name,notnull" json:"first_name"`
	LastName     string    `bun:"last_name" json:"last_name"`
	Phone        string    `bun:"phone" json:"phone"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	Active       bool      `bun:"active,notnull,default:true" json:"active"`
	RegisteredAt time.Time `bun:"registered_at,notnull,default:current_timestamp" json:"registered_at"`
}

func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
