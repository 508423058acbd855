package jwttoken

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authserver/internal/oauth/models"
	"authserver/internal/platform/metrics"
	dErrors "authserver/pkg/domain-errors"
)

// Supported JWS algorithms.
const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
	AlgES256 = "ES256"
)

// JWTService signs tokens issued by this server and verifies tokens presented
// back to it (ID token hints, request objects).
type JWTService struct {
	issuer     string
	defaultAlg string
	hmacKey    []byte
	rsaKey     *rsa.PrivateKey
	ecKey      *ecdsa.PrivateKey
	// clientKeys verify objects signed by a registered client.
	clientKeys map[string]any
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*JWTService)

func WithRSAKey(key *rsa.PrivateKey) Option {
	return func(s *JWTService) { s.rsaKey = key }
}

func WithECDSAKey(key *ecdsa.PrivateKey) Option {
	return func(s *JWTService) { s.ecKey = key }
}

// WithDefaultAlgorithm sets the algorithm used for clients that did not register one.
func WithDefaultAlgorithm(alg string) Option {
	return func(s *JWTService) { s.defaultAlg = alg }
}

// WithClientKey registers a verification key for objects signed by clientID.
// HMAC keys are []byte; asymmetric keys are *rsa.PublicKey or *ecdsa.PublicKey.
func WithClientKey(clientID string, key any) Option {
	return func(s *JWTService) { s.clientKeys[clientID] = key }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *JWTService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *JWTService) { s.metrics = m }
}

func NewJWTService(issuer string, hmacKey []byte, opts ...Option) (*JWTService, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if len(hmacKey) == 0 {
		return nil, errors.New("hmac signing key is required")
	}
	s := &JWTService{
		issuer:     issuer,
		defaultAlg: AlgHS256,
		hmacKey:    hmacKey,
		clientKeys: make(map[string]any),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.signingKey(s.defaultAlg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JWTService) Issuer() string {
	return s.issuer
}

// Sign serialises claims as a JWS using the client's registered algorithm.
func (s *JWTService) Sign(ctx context.Context, client *models.Client, claims jwt.MapClaims) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	alg := s.defaultAlg
	if client != nil && client.SigningAlgorithm != "" {
		alg = client.SigningAlgorithm
	}
	key, err := s.signingKey(alg)
	if err != nil {
		return "", err
	}
	start := time.Now()
	signed, err := jwt.NewWithClaims(jwt.GetSigningMethod(alg), claims).SignedString(key)
	s.metrics.ObserveSigningLatency(alg, time.Since(start))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ParseAndVerify checks the signature of a token issued by this server.
// Expiry is not enforced: ID token hints are routinely presented after expiry.
func (s *JWTService) ParseAndVerify(ctx context.Context, token string) (jwt.MapClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.parse(token, func(t *jwt.Token) (any, error) {
		return s.verificationKey(t.Method.Alg())
	})
}

// ParseClientObject checks the signature of an object signed by clientID, such as
// a request object. Keys registered for the client win over the server keys.
func (s *JWTService) ParseClientObject(ctx context.Context, clientID, token string) (jwt.MapClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.parse(token, func(t *jwt.Token) (any, error) {
		if key, ok := s.clientKeys[clientID]; ok {
			return key, nil
		}
		return s.verificationKey(t.Method.Alg())
	})
}

func (s *JWTService) parse(token string, keyFunc jwt.Keyfunc) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc,
		jwt.WithValidMethods([]string{AlgHS256, AlgRS256, AlgES256}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		s.logger.Debug("jwt verification failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid token")
	}
	return claims, nil
}

func (s *JWTService) signingKey(alg string) (any, error) {
	switch alg {
	case AlgHS256:
		return s.hmacKey, nil
	case AlgRS256:
		if s.rsaKey == nil {
			return nil, dErrors.New(dErrors.CodeInternal, "no RSA signing key configured")
		}
		return s.rsaKey, nil
	case AlgES256:
		if s.ecKey == nil {
			return nil, dErrors.New(dErrors.CodeInternal, "no ECDSA signing key configured")
		}
		return s.ecKey, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "unsupported signing algorithm "+alg)
}

func (s *JWTService) verificationKey(alg string) (any, error) {
	key, err := s.signingKey(alg)
	if err != nil {
		return nil, err
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	case *ecdsa.PrivateKey:
		return &k.PublicKey, nil
	}
	return key, nil
}
