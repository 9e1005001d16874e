package domain

import "errors"

// User is the caller identity carried by API tokens.
type User struct {
	ID   string
	Name string
	Role Role
}

// Role represents a user's access level
type Role string

const (
	// RoleAdmin can edit the shareholder registry and close periods
	RoleAdmin Role = "admin"

	// RoleOperator can record periods and close them
	RoleOperator Role = "operator"

	// RoleViewer can only read registry, periods and settlements
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanClosePeriods checks if the role can record and close periods
func (r Role) CanClosePeriods() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanManageShareholders checks if the role can replace the registry
func (r Role) CanManageShareholders() bool {
	return r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
