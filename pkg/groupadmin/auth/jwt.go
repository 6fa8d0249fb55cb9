package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the JWT claims issued to admin console users
type Claims struct {
	Userid    string `json:"userid"`
	Authority string `json:"authority"`
	Admin     bool   `json:"admin"`
	jwt.RegisteredClaims
}

// tokenDuration is the token validity duration
const tokenDuration = 24 * time.Hour

// GenerateToken creates a new JWT token signed with secret
func GenerateToken(secret []byte, userid, authority string, admin bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		Userid:    userid,
		Authority: authority,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userid,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "groupadmin",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
