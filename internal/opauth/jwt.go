// Package opauth issues and validates operator access tokens. Repair, cancel
// and reconciliation endpoints are operator-facing; tokens carry the operator
// name and role.
package opauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "taxbridge/pkg/errors"
)

// Role gates what an operator token may do.
type Role string

const (
	// RoleOperator may trigger attempts and read records.
	RoleOperator Role = "operator"
	// RoleAdmin may additionally repair and cancel.
	RoleAdmin Role = "admin"
)

// Claims are the JWT claims carried by operator tokens.
type Claims struct {
	Operator string `json:"operator"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and validates operator tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateToken issues a signed operator token.
func (s *JWTService) GenerateToken(operator string, role Role, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Operator: operator,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token string.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "token has expired")
		}
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Role != RoleOperator && claims.Role != RoleAdmin {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "unknown role")
	}
	return claims, nil
}
