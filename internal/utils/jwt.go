package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs a token whose subject is the numeric user id.
func IssueToken(secret string, userID int64, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ExtractUserIDFromToken pulls the user id out of a "Bearer <token>" header value.
func ExtractUserIDFromToken(secret, header string) (int64, error) {
	if header == "" {
		return 0, errors.New("missing authorization header")
	}
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return 0, errors.New("authorization header must be a bearer token")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid token claims")
	}
	return id, nil
}
