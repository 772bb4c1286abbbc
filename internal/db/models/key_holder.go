// Package models defines the database model types for the log center.
// Each type corresponds to a database table. Models are pure data types —
// query logic belongs in the repositories layer.
package models

import "time"

// KeyHolder represents an approved identity that may own API keys.
// The same shape backs both the operational registry (key_holders) and the
// admin registry (admin_key_holders); the two tables are disjoint namespaces.
type KeyHolder struct {
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Active        bool       `json:"active"`
	ApprovedAt    time.Time  `json:"approved_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"` // Nil while the holder is active
}
