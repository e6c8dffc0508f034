package api

import "time"

// TokenRequest is the body for client token issuance
type TokenRequest struct {
	ClientName string `json:"client_name"`
}

// TokenResponse carries an issued client token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// ErrorResponse is the shared error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
