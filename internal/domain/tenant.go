package domain

import "time"

// Tenant is an isolated customer organisation. All aggregation is
// tenant-partitioned.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
