package users

import "time"

// Role names an organisational role in the sales workflow.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleWarehouse  Role = "warehouse"
	RoleSuperAdmin Role = "superadmin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleAdmin, RoleManager, RoleWarehouse, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// User represents a user account in the directory.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	EmpCode   *string   `json:"emp_code,omitempty" db:"emp_code"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Zone      *string   `json:"zone,omitempty" db:"zone"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
