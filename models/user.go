// user.go - Defines the User model for the database

package models // Declares the package name

import "time"

type User struct { // User struct represents a user in the database
	ID           uint      `gorm:"primaryKey" json:"id"`                                                 // Unique user ID (primary key)
	Username     string    `gorm:"uniqueIndex;size:64;not null" json:"username"`                         // Login name (must be unique)
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`                           // User's email (must be unique, cannot be null)
	Name         string    `gorm:"size:128" json:"name"`                                                 // Display name
	PasswordHash string    `gorm:"not null" json:"-"`                                                    // Hashed password (never serialized)
	Salt         string    `gorm:"not null" json:"-"`                                                    // Per-user salt mixed into the hash
	RoleID       uint      `gorm:"not null;index" json:"role_id"`                                        // Foreign key to roles table
	Role         Role      `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"role"` // Foreign key constraint
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user's loaded role is Admin.
func (u *User) IsAdmin() bool {
	return u.Role.Name == RoleAdmin
}
