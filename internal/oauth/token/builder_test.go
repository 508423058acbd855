package token

//go:generate mockgen -source=builder.go -destination=mocks/mocks.go -package=mocks Signer,GrantedTokenStore

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	jwttoken "authserver/internal/jwt_token"
	"authserver/internal/oauth/models"
	grantedtoken "authserver/internal/oauth/store/granted-token"
	"authserver/internal/oauth/token/mocks"
	"authserver/internal/platform/metrics"
	"authserver/pkg/requestcontext"
)

// =============================================================================
// Token Builder Test Suite
// =============================================================================
// Builders sign, register and emit tokens. Tests pin the payload, the mTLS
// confirmation claim, store registration and failure propagation.

const testIssuer = "https://auth.example.com"

type BuilderSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockSigner *mocks.MockSigner
	mockStore  *mocks.MockGrantedTokenStore
	jwt        *jwttoken.JWTService
	store      *grantedtoken.InMemoryGrantedTokenStore
	opts       []Option
	now        time.Time
	ctx        context.Context
	cert       *x509.Certificate
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockSigner = mocks.NewMockSigner(s.ctrl)
	s.mockStore = mocks.NewMockGrantedTokenStore(s.ctrl)
	svc, err := jwttoken.NewJWTService(testIssuer, []byte("test-signing-key"))
	s.Require().NoError(err)
	s.jwt = svc
	s.store = grantedtoken.NewInMemory()
	s.opts = []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	}
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.cert = selfSignedCertificate(s.T())
}

func (s *BuilderSuite) TearDownTest() {
	s.ctrl.Finish()
}

func selfSignedCertificate(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "client-1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func (s *BuilderSuite) client(method models.TokenEndpointAuthMethod) *models.Client {
	return &models.Client{
		ClientID:                "client-1",
		AllowedScopes:           []string{"openid", "profile", "accounts"},
		TokenEndpointAuthMethod: method,
		AccessTokenLifetime:     30 * time.Minute,
	}
}

func (s *BuilderSuite) tokenContext(client *models.Client, code string) *models.HandlerContext {
	snapshot := &models.AuthorizationRequest{ClientID: client.ClientID, Scopes: []string{"openid", "accounts"}, Nonce: "n-1"}
	user := &models.User{
		Subject:            "alice",
		AuthenticationTime: s.now.Add(-5 * time.Minute),
		ACR:                "urn:acr:mfa",
		Claims: []models.UserClaim{
			{Type: models.ClaimEmail, Value: "alice@example.com"},
			{Type: models.ClaimName, Value: "Alice"},
		},
	}
	return models.NewTokenContext(testIssuer, client, &models.TokenRequest{GrantType: models.GrantAuthorizationCode, Code: code}, snapshot, user)
}

func (s *BuilderSuite) parse(token string) jwt.MapClaims {
	claims, err := s.jwt.ParseAndVerify(context.Background(), token)
	s.Require().NoError(err)
	return claims
}

// =============================================================================
// Access token
// =============================================================================

func (s *BuilderSuite) TestAccessTokenPayload() {
	builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")

	s.Require().NoError(builder.Build(s.ctx, []string{"openid", "accounts"}, hctx))

	value, ok := hctx.Response.GetString(models.ResponseKeyAccessToken)
	s.Require().True(ok)
	claims := s.parse(value)
	s.Equal([]any{"client-1"}, claims["aud"])
	s.Equal("openid accounts", claims["scope"])
	s.Equal(testIssuer, claims["iss"])
	s.Equal("client-1", claims["client_id"])
	s.Equal("alice", claims["sub"])
	s.Equal(float64(s.now.Unix()), claims["iat"])
	s.Equal(float64(s.now.Add(30*time.Minute).Unix()), claims["exp"])
	s.NotEmpty(claims["jti"])
	s.NotContains(claims, "cnf")

	tokenType, _ := hctx.Response.GetString(models.ResponseKeyTokenType)
	s.Equal("Bearer", tokenType)
	expiresIn, _ := hctx.Response.Get(models.ResponseKeyExpiresIn)
	s.Equal(int64(1800), expiresIn)
}

func (s *BuilderSuite) TestAccessTokenWithoutUserHasNoSubject() {
	builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")
	hctx.User = nil

	s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
	value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
	s.NotContains(s.parse(value), "sub")
}

func (s *BuilderSuite) TestCertificateBinding() {
	expected := func(raw []byte) string {
		sum := sha256.Sum256(raw)
		return base64.RawURLEncoding.EncodeToString(sum[:])
	}

	for _, method := range []models.TokenEndpointAuthMethod{models.AuthMethodTLSClientAuth, models.AuthMethodSelfSignedTLSClientAuth} {
		s.Run(string(method)+" embeds x5t#S256", func() {
			builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
			hctx := s.tokenContext(s.client(method), "code-1")
			hctx.Certificate = s.cert

			s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
			value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
			cnf, ok := s.parse(value)["cnf"].(map[string]any)
			s.Require().True(ok)
			s.Equal(expected(s.cert.Raw), cnf["x5t#S256"])
		})
	}

	for _, method := range []models.TokenEndpointAuthMethod{models.AuthMethodClientSecretBasic, models.AuthMethodClientSecretPost, models.AuthMethodNone} {
		s.Run(string(method)+" never embeds cnf", func() {
			builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
			hctx := s.tokenContext(s.client(method), "code-1")
			hctx.Certificate = s.cert

			s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
			value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
			s.NotContains(s.parse(value), "cnf")
		})
	}

	s.Run("mtls client without certificate fails before signing", func() {
		builder := NewAccessTokenBuilder(s.mockSigner, s.mockStore, nil, s.opts...)
		hctx := s.tokenContext(s.client(models.AuthMethodTLSClientAuth), "code-1")

		err := builder.Build(s.ctx, []string{"accounts"}, hctx)
		s.Error(err)
		s.Equal(0, hctx.Response.Len())
	})
}

func (s *BuilderSuite) TestThumbprint() {
	s.Equal("47DEQpj8HBSa-_TImW-5JCeuQeRkm5NMpJWZG3hSuFU", Thumbprint(nil))
	s.Len(Thumbprint(s.cert.Raw), 43)
}

type staticBinder struct{ claim, value string }

func (b staticBinder) Bind(_ context.Context, _ *models.HandlerContext, claims jwt.MapClaims) error {
	claims[b.claim] = b.value
	return nil
}

func (s *BuilderSuite) TestExtraBinders() {
	builder := NewAccessTokenBuilder(s.jwt, s.store, []Binder{staticBinder{"openbanking_intent_id", "urn-1"}}, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")

	s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
	value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
	s.Equal("urn-1", s.parse(value)["openbanking_intent_id"])
}

// =============================================================================
// Store registration
// =============================================================================

func (s *BuilderSuite) TestStoreRoundTrip() {
	s.Run("token request code is recorded", func() {
		builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
		hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-from-request")

		s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
		value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
		stored, err := s.store.Get(s.ctx, value)
		s.Require().NoError(err)
		s.Equal("client-1", stored.ClientID)
		s.Equal("code-from-request", stored.AuthorizationCode)
		s.Equal(models.TokenTypeAccess, stored.Type)
		s.Equal(s.now.Add(30*time.Minute), stored.ExpiresAt)
	})

	s.Run("in-flight code wins over the token request code", func() {
		builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
		hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-from-request")
		hctx.Response.Set(models.ResponseKeyCode, "code-in-flight")

		s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
		value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
		stored, err := s.store.Get(s.ctx, value)
		s.Require().NoError(err)
		s.Equal("code-in-flight", stored.AuthorizationCode)
	})
}

func (s *BuilderSuite) TestBuildTwiceIssuesTwoTokens() {
	builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-twice")

	s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
	first, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
	s.Require().NoError(builder.Build(s.ctx, []string{"accounts"}, hctx))
	second, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)

	s.NotEqual(first, second)
	tokens, err := s.store.FindByAuthorizationCode(s.ctx, "code-twice")
	s.Require().NoError(err)
	s.Len(tokens, 2)
}

// =============================================================================
// Failure propagation
// =============================================================================

func (s *BuilderSuite) TestFailures() {
	s.Run("signing failure propagates and nothing is stored", func() {
		boom := errors.New("hsm unavailable")
		builder := NewAccessTokenBuilder(s.mockSigner, s.mockStore, nil, s.opts...)
		hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")
		s.mockSigner.EXPECT().Sign(gomock.Any(), hctx.Client, gomock.Any()).Return("", boom)

		err := builder.Build(s.ctx, []string{"accounts"}, hctx)
		s.ErrorIs(err, boom)
		s.Equal(0, hctx.Response.Len())
	})

	s.Run("store failure propagates and nothing is emitted", func() {
		boom := errors.New("redis down")
		builder := NewAccessTokenBuilder(s.mockSigner, s.mockStore, nil, s.opts...)
		hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")
		s.mockSigner.EXPECT().Sign(gomock.Any(), hctx.Client, gomock.Any()).Return("signed", nil)
		s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any()).Return(boom)

		err := builder.Build(s.ctx, []string{"accounts"}, hctx)
		s.ErrorIs(err, boom)
		_, ok := hctx.Response.GetString(models.ResponseKeyAccessToken)
		s.False(ok)
	})

	s.Run("cancellation during signing skips the store write", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		builder := NewAccessTokenBuilder(s.mockSigner, s.mockStore, nil, s.opts...)
		hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")
		s.mockSigner.EXPECT().Sign(gomock.Any(), hctx.Client, gomock.Any()).
			DoAndReturn(func(context.Context, *models.Client, jwt.MapClaims) (string, error) {
				cancel()
				return "signed", nil
			})

		err := builder.Build(ctx, []string{"accounts"}, hctx)
		s.ErrorIs(err, context.Canceled)
		s.Equal(0, hctx.Response.Len())
	})
}

// =============================================================================
// ID and refresh tokens
// =============================================================================

func (s *BuilderSuite) TestIDToken() {
	access := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
	id := NewIDTokenBuilder(s.jwt, s.store, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")
	hctx.Request.Claims = []models.RequestedClaim{{Name: models.ClaimName, Target: models.ClaimTargetIDToken}}

	s.Require().NoError(access.Build(s.ctx, []string{"openid", "email"}, hctx))
	s.Require().NoError(id.Build(s.ctx, []string{"openid", "email"}, hctx))

	at, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
	value, ok := hctx.Response.GetString(models.ResponseKeyIDToken)
	s.Require().True(ok)
	claims := s.parse(value)
	s.Equal("alice", claims["sub"])
	s.Equal([]any{"client-1", testIssuer}, claims["aud"])
	s.Equal("client-1", claims["azp"])
	s.Equal("n-1", claims["nonce"])
	s.Equal("urn:acr:mfa", claims["acr"])
	s.Equal(float64(s.now.Add(-5*time.Minute).Unix()), claims["auth_time"])
	s.Equal(leftHalfHash(at), claims["at_hash"])
	s.Equal("alice@example.com", claims["email"])
	s.Equal("Alice", claims["name"])
	s.NotContains(claims, "c_hash")
}

func (s *BuilderSuite) TestIDTokenRequiresUser() {
	id := NewIDTokenBuilder(s.mockSigner, s.mockStore, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")
	hctx.User = nil
	s.Error(id.Build(s.ctx, []string{"openid"}, hctx))
}

func (s *BuilderSuite) TestRefreshToken() {
	refresh := NewRefreshTokenBuilder(s.jwt, s.store, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "code-1")

	s.Require().NoError(refresh.Build(s.ctx, []string{"openid", "accounts"}, hctx))
	value, ok := hctx.Response.GetString(models.ResponseKeyRefreshToken)
	s.Require().True(ok)

	stored, err := s.store.Get(s.ctx, value)
	s.Require().NoError(err)
	s.Equal(models.TokenTypeRefresh, stored.Type)
	s.Equal([]string{"openid", "accounts"}, stored.Request.Scopes)
	s.NoError(stored.ValidateForRefresh("client-1", s.now))

	s.Run("refresh keeps the original snapshot", func() {
		next := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "")
		next.Request = nil
		s.Require().NoError(refresh.Refresh(s.ctx, stored.Request, next))
		rotated, _ := next.Response.GetString(models.ResponseKeyRefreshToken)
		again, err := s.store.Get(s.ctx, rotated)
		s.Require().NoError(err)
		s.Equal([]string{"openid", "accounts"}, again.Scopes)
		s.Equal([]string{"openid", "accounts"}, again.Request.Scopes)
	})
}

func (s *BuilderSuite) TestAccessTokenRefreshUsesPreviousScopes() {
	builder := NewAccessTokenBuilder(s.jwt, s.store, nil, s.opts...)
	hctx := s.tokenContext(s.client(models.AuthMethodClientSecretBasic), "")

	s.Require().NoError(builder.Refresh(s.ctx, &models.AuthorizationRequest{Scopes: []string{"accounts"}}, hctx))
	value, _ := hctx.Response.GetString(models.ResponseKeyAccessToken)
	s.Equal("accounts", s.parse(value)["scope"])
}

// =============================================================================
// Registry
// =============================================================================

func (s *BuilderSuite) TestRegistry() {
	access := NewAccessTokenBuilder(s.jwt, s.store, nil)
	refresh := NewRefreshTokenBuilder(s.jwt, s.store)
	id := NewIDTokenBuilder(s.jwt, s.store)

	registry, err := NewRegistry(access, id, refresh)
	s.Require().NoError(err)
	s.Equal([]models.TokenType{models.TokenTypeAccess, models.TokenTypeID, models.TokenTypeRefresh}, registry.Types())

	got, ok := registry.Get(models.TokenTypeID)
	s.True(ok)
	s.Same(id, got)

	_, ok = registry.Get("unknown")
	s.False(ok)

	s.Error(registry.Register(NewAccessTokenBuilder(s.jwt, s.store, nil)))
	s.Error(registry.Register(nil))
}
