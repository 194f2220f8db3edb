package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BridgeClaims is the payload of the token the UI presents to the loopback bridge.
type BridgeClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// BridgeToken is a minted bridge credential.
type BridgeToken struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
