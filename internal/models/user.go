// Package models contains data models for the ground station.
package models

import "time"

// User represents an operator principal. Signup and credential management
// live in the auth service; the core only reads identity and role.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	IsAdmin   bool      `json:"isAdmin" db:"is_admin"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
