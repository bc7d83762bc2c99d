package enums

import "fmt"

// UserRole represents the marketplace role carried in access tokens.
type UserRole string

const (
	UserRoleVendor   UserRole = "vendor"
	UserRoleCustomer UserRole = "customer"
	UserRoleHelper   UserRole = "helper"
	UserRoleGuest    UserRole = "guest"
	UserRoleOps      UserRole = "ops"
)

var validUserRoles = []UserRole{
	UserRoleVendor,
	UserRoleCustomer,
	UserRoleHelper,
	UserRoleGuest,
	UserRoleOps,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
