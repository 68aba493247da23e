package models

import (
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // "user", "admin"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
