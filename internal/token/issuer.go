package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/linknest/linknest-api/internal/models"
)

const (
	accessTTL  = 24 * time.Hour
	refreshTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Pair is an access/refresh token pair minted for an active user.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer mints session tokens for activated users.
type Issuer interface {
	Issue(user models.User) (Pair, error)
}

// JWTIssuer signs HS256 token pairs with a shared secret.
type JWTIssuer struct {
	secret []byte
}

func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret)}
}

func (i *JWTIssuer) Issue(user models.User) (Pair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"exp":   now.Add(accessTTL).Unix(),
	})
	accessString, err := access.SignedString(i.secret)
	if err != nil {
		return Pair{}, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"typ": "refresh",
		"exp": now.Add(refreshTTL).Unix(),
	})
	refreshString, err := refresh.SignedString(i.secret)
	if err != nil {
		return Pair{}, err
	}

	return Pair{Access: accessString, Refresh: refreshString}, nil
}

// ParseRefresh validates a refresh token and returns the subject user id.
func (i *JWTIssuer) ParseRefresh(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
