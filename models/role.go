// role.go - Defines the Role model and the fixed role names

package models // Declares the package name

import "fmt"

// RoleName is the enum stored in roles.name.
type RoleName string

const (
	RoleAdmin RoleName = "Admin" // Full access: users, devices, logs, lock
	RoleUser  RoleName = "User"  // Dashboard access: read + control devices
)

// RoleNames lists every valid role in seeding order.
var RoleNames = []RoleName{RoleAdmin, RoleUser}

type Role struct { // Role struct represents a row in the roles table
	ID   uint     `gorm:"primaryKey" json:"id"`                     // Unique role ID (primary key)
	Name RoleName `gorm:"uniqueIndex;size:16;not null" json:"name"` // Admin or User
}

// ParseRoleName validates a role name coming from a request.
func ParseRoleName(s string) (RoleName, error) {
	for _, n := range RoleNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("invalid role name %q", s)
}

// Valid reports whether n is one of the known roles.
func (n RoleName) Valid() bool {
	_, err := ParseRoleName(string(n))
	return err == nil
}
