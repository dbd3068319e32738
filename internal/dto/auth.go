package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// Session roles
const (
	RoleUser  = "user"
	RoleOwner = "owner"
)

// AuthRequest wallet login: message signed with personal_sign
type AuthRequest struct {
	Address   string `json:"address" binding:"required"`   // wallet address
	Message   string `json:"message" binding:"required"`   // message returned by the nonce endpoint
	Signature string `json:"signature" binding:"required"` // 65-byte hex signature
}

// OwnerAuthRequest wallet login plus TOTP second factor
type OwnerAuthRequest struct {
	AuthRequest
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AuthResponse Authentication response structure
type AuthResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Message   string `json:"message"`
}

// JWTClaims JWT Claims structure
type JWTClaims struct {
	Address string `json:"address"` // checksummed wallet address
	Role    string `json:"role"`
	jwt.RegisteredClaims
}
