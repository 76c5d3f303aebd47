package models

import "time"

// AuditFields holds the timestamp columns shared by stored rows.
type AuditFields struct {
	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"updated_at"`
}
