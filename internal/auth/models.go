package auth

import (
	"gorm.io/gorm"
)

// User is a registered account holder. The password hash never leaves
// this package; everything downstream works with the UserID alone.
type User struct {
	gorm.Model   `json:"-"`
	UserID       string `gorm:"uniqueIndex" json:"user_id"`
	Username     string `gorm:"uniqueIndex" json:"username"`
	PasswordHash string `json:"-"`
}
