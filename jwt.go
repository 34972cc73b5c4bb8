package main

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	JWTAccessTokenExpirationTime = time.Hour
	JWTSecretEnv                 = "JWT_SECRET_KEY"
	JWTIssuer                    = "ticket_verifier"
)

type Token struct {
	Access string `json:"token"`
}

// TokenClaims is the payload of an issued session token. Anyone holding the
// signing secret can validate it without calling back into this service.
type TokenClaims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewJWTAccessToken(user User) (*Token, error) {
	now := time.Now()
	claims := jwt.NewWithClaims(jwt.SigningMethodHS512, TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    JWTIssuer,
			IssuedAt:  &jwt.NumericDate{Time: now},
			ExpiresAt: jwt.NewNumericDate(now.Add(JWTAccessTokenExpirationTime)),
		},
	})

	secret := []byte(os.Getenv(JWTSecretEnv))

	token, err := claims.SignedString(secret)
	if err != nil {
		return nil, err
	}

	return &Token{Access: token}, nil
}

func VerifyJWTToken(token string) (*TokenClaims, bool) {
	var (
		claims = &TokenClaims{}
		secret = []byte(os.Getenv(JWTSecretEnv))
	)

	tkn, err := jwt.ParseWithClaims(token, claims,
		func(token *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
	)
	if err != nil {
		return nil, false
	}

	return claims, tkn.Valid
}
