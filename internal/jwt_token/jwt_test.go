package jwttoken

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authserver/internal/oauth/models"
	dErrors "authserver/pkg/domain-errors"
)

const issuer = "https://auth.example.com"

func newService(t *testing.T, opts ...Option) *JWTService {
	t.Helper()
	svc, err := NewJWTService(issuer, []byte("test-signing-key"), opts...)
	require.NoError(t, err)
	return svc
}

func Test_SignAndVerify(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	svc := newService(t, WithRSAKey(rsaKey), WithECDSAKey(ecKey))

	for _, alg := range []string{AlgHS256, AlgRS256, AlgES256} {
		t.Run(alg, func(t *testing.T) {
			client := &models.Client{ClientID: "client-1", SigningAlgorithm: alg}
			token, err := svc.Sign(context.Background(), client, jwt.MapClaims{"sub": "alice", "iss": issuer})
			require.NoError(t, err)

			parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
			require.NoError(t, err)
			assert.Equal(t, alg, parsed.Method.Alg())

			claims, err := svc.ParseAndVerify(context.Background(), token)
			require.NoError(t, err)
			assert.Equal(t, "alice", claims["sub"])
		})
	}
}

func Test_Sign_MissingKey(t *testing.T) {
	svc := newService(t)
	_, err := svc.Sign(context.Background(), &models.Client{SigningAlgorithm: AlgRS256}, jwt.MapClaims{})
	assert.True(t, dErrors.Is(err, dErrors.CodeInternal))
}

func Test_Sign_CancelledContext(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Sign(ctx, nil, jwt.MapClaims{})
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_ParseAndVerify_InvalidToken(t *testing.T) {
	svc := newService(t)
	_, err := svc.ParseAndVerify(context.Background(), "invalid-token-string")
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidRequest))

	other, err := NewJWTService(issuer, []byte("another-key"))
	require.NoError(t, err)
	token, err := other.Sign(context.Background(), nil, jwt.MapClaims{"sub": "alice"})
	require.NoError(t, err)
	_, err = svc.ParseAndVerify(context.Background(), token)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidRequest))
}

func Test_ParseAndVerify_ExpiredHintAccepted(t *testing.T) {
	svc := newService(t)
	token, err := svc.Sign(context.Background(), nil, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	claims, err := svc.ParseAndVerify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
}

func Test_ParseClientObject(t *testing.T) {
	clientKey := []byte("client-1-secret")
	svc := newService(t, WithClientKey("client-1", clientKey))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"client_id": "client-1"}).SignedString(clientKey)
	require.NoError(t, err)

	claims, err := svc.ParseClientObject(context.Background(), "client-1", token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims["client_id"])

	_, err = svc.ParseClientObject(context.Background(), "client-2", token)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidRequest))
}
