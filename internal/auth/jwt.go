package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	creatorTokenExpiry = 30 * 24 * time.Hour
	issuer             = "vcfgather"
)

// CreatorClaims identifies a session creator
type CreatorClaims struct {
	CreatorID uuid.UUID `json:"sub"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 tokens
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SignCreatorToken creates a bearer token for creatorID (30-day expiry)
func (s *JWTService) SignCreatorToken(creatorID uuid.UUID) (string, error) {
	if creatorID == uuid.Nil {
		return "", fmt.Errorf("creator id is required")
	}
	now := s.now()
	claims := &CreatorClaims{
		CreatorID: creatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(creatorTokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign creator token: %w", err)
	}

	return tokenString, nil
}

// VerifyCreatorToken verifies a bearer token and returns its creator id
func (s *JWTService) VerifyCreatorToken(tokenString string) (uuid.UUID, error) {
	claims := &CreatorClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return uuid.Nil, err
	}
	if claims.CreatorID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid token: missing subject")
	}
	return claims.CreatorID, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
