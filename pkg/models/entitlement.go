package models

import "time"

// Entitlement records that a project has satisfied its one-time payment gate.
// Written when a create_project job completes successfully; read by the free
// setup endpoints. There is no expiry or revocation path.
type Entitlement struct {
	ResourceKey string    `db:"resource_key" json:"resource_key"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
