package model

import "time"

// User is an operator account for the authenticated admin API.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for operator authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after successful operator login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
