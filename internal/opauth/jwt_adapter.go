package opauth

import (
	authmw "taxbridge/pkg/platform/middleware/auth"
)

// JWTServiceAdapter bridges the JWT service to the middleware's validator
// interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		Operator: claims.Operator,
		Role:     string(claims.Role),
		JTI:      claims.ID,
	}, nil
}
