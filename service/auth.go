package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/store"
)

// CreateJWT mints an HS256 bearer token for a user. Token issuance belongs
// to the account system; this exists for tests and operational tooling.
func (s *Service) CreateJWT(userId string) (string, error) {
	claims := jwt.MapClaims{
		"userId": userId,
		"exp":    time.Now().Add(24 * time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func (s *Service) VerifyJWT(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", time.Time{}, ErrInvalidCredential
	}

	if !token.Valid {
		return "", time.Time{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, ErrInvalidCredential
	}

	userId, ok := claims["userId"].(string)
	if !ok {
		return "", time.Time{}, ErrInvalidCredential
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return "", time.Time{}, ErrInvalidCredential
	}
	expiry := time.Unix(int64(expFloat), 0)

	return userId, expiry, nil
}

// AuthenticateToken resolves a bearer credential to an identity. It runs
// once per connection attempt, before the connection is admitted to any
// room. ErrUnauthenticated: no token. ErrInvalidCredential: malformed,
// tampered or expired. ErrIdentityNotFound: token is fine but the user row
// is gone.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.User, error) {
	if len(token) == 0 {
		return models.User{}, ErrUnauthenticated
	}

	userId, _, err := s.VerifyJWT(token)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.Store.GetUser(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.User{}, ErrIdentityNotFound
		}
		return models.User{}, err
	}

	return user, nil
}
