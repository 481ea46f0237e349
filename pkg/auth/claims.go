package auth

import (
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	SellerID *uuid.UUID
	Role     enums.ActorRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients. SellerID is
// only present for seller actors.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	SellerID *uuid.UUID      `json:"seller_id,omitempty"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
