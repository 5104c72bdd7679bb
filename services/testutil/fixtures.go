package testutil

import (
	"time"

	"github.com/aminammar1/storefront/libs/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	DemoUserID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	DemoEmail   = "demo@test.local"
	DemoName    = "Demo Shopper"
	TestsSecret = []byte("test-secret")
)

func GenerateJWT(userID uuid.UUID, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := auth.Claims{
		Name:  DemoName,
		Email: DemoEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storefront-auth",
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
