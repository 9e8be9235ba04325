package models

import "github.com/golang-jwt/jwt/v5"

const (
	RoleUser       = "user"
	RoleEmployee   = "employee"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

type UserClaims struct {
	jwt.RegisteredClaims
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

// RoleFor picks the highest role a user holds.
func RoleFor(u *User) string {
	switch {
	case u.IsAdmin.Bool():
		return RoleAdmin
	case u.IsEmployee.Bool():
		return RoleEmployee
	case u.IsContractor.Bool():
		return RoleContractor
	default:
		return RoleUser
	}
}
