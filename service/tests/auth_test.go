package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/service"
	"github.com/teamboard/teamboard/store"
)

func TestCreateAndVerifyJWT(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	id := "user123"

	// 1. Create
	token, err := svc.CreateJWT(id)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// 2. Verify
	gotId, expiry, err := svc.VerifyJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, id, gotId)
	assert.True(t, expiry.After(time.Now()))
}

func TestVerifyJWT_Invalid(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, _, err := svc.VerifyJWT("invalid.token.string")
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
}

func TestVerifyJWT_Empty(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, _, err := svc.VerifyJWT("")
	assert.Error(t, err)
}

func TestVerifyJWT_NoneAlgorithmRejected(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	// Hand-built token with alg "none" and an empty signature; must never
	// pass verification
	header := map[string]string{
		"alg": "none",
		"typ": "JWT",
	}
	payload := map[string]any{
		"userId": "attacker_user",
		"exp":    time.Now().Add(24 * time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}

	headerBytes, _ := json.Marshal(header)
	payloadBytes, _ := json.Marshal(payload)

	enc := base64.RawURLEncoding
	noneToken := enc.EncodeToString(headerBytes) + "." + enc.EncodeToString(payloadBytes) + "."

	_, _, err := svc.VerifyJWT(noneToken)
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
}

func TestAuthenticateToken_Success(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()

	user := models.User{
		Id:     "user1",
		Name:   "Ada",
		TeamId: "team1",
	}
	token, _ := svc.CreateJWT(user.Id)

	mockStore.On("GetUser", ctx, user.Id).Return(user, nil)

	gotUser, err := svc.AuthenticateToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, user.Id, gotUser.Id)
	assert.Equal(t, user.TeamId, gotUser.TeamId)
}

func TestAuthenticateToken_UserNotFound(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()

	token, _ := svc.CreateJWT("ghost")
	mockStore.On("GetUser", ctx, "ghost").Return(models.User{}, store.ErrItemNotFound)

	_, err := svc.AuthenticateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrIdentityNotFound)
}

func TestAuthenticateToken_EmptyToken(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, err := svc.AuthenticateToken(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestAuthenticateToken_ExpiredToken(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	// Token signed with the right secret but already expired
	expired := makeExpiredToken(t)

	_, err := svc.AuthenticateToken(context.Background(), expired)
	assert.ErrorIs(t, err, service.ErrInvalidCredential)
	mockStore.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

// Signs with the same secret setupService configures
func makeExpiredToken(t *testing.T) string {
	claims := jwt.MapClaims{
		"userId": "user1",
		"exp":    time.Now().Add(-time.Hour).Unix(),
		"iat":    time.Now().Add(-2 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("secret"))
	assert.NoError(t, err)
	return signed
}
