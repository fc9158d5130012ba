package domain

import "time"

// Staff roles. Administrators manage the tenant; line staff do casework.
const (
	RoleAdmin         = "admin"
	RoleManager       = "manager"
	RoleSupportWorker = "support_worker"
	RoleCaseWorker    = "case_worker"
)

// User represents a staff account within a tenant.
type User struct {
	ID        string
	TenantID  string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}
