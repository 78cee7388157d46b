package domain

import "time"

// Shop is a point of sale belonging to a tenant. The stock service only
// needs shops to scope products, inventories and transfers; shop
// management itself lives upstream.
type Shop struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
