package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for the admin API.
// Tokens are minted offline for operators (cmd/admintoken); there is no
// login endpoint.
type Claims struct {
	jwt.RegisteredClaims

	Operator  string    `json:"operator"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
