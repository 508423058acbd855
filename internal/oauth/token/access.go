package token

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authserver/internal/oauth/models"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/requestcontext"
)

// Confirmation claim names (RFC 7800, RFC 8705).
const (
	ClaimConfirmation = "cnf"
	ClaimX5TS256      = "x5t#S256"
	ClaimClientID     = "client_id"
	ClaimScope        = "scope"
	TokenTypeBearer   = "Bearer"
)

// Binder adds binding claims to an access token payload before it is signed.
type Binder interface {
	Bind(ctx context.Context, hctx *models.HandlerContext, claims jwt.MapClaims) error
}

// MutualTLSBinder binds tokens of mutual-TLS clients to the presented client
// certificate through cnf.x5t#S256. Other clients are left untouched.
type MutualTLSBinder struct{}

func (MutualTLSBinder) Bind(_ context.Context, hctx *models.HandlerContext, claims jwt.MapClaims) error {
	if !hctx.Client.UsesMutualTLS() {
		return nil
	}
	if hctx.Certificate == nil {
		return dErrors.New(dErrors.CodeInvalidClient, "client certificate is required for a certificate-bound token")
	}
	claims[ClaimConfirmation] = map[string]any{
		ClaimX5TS256: Thumbprint(hctx.Certificate.Raw),
	}
	return nil
}

// AccessTokenBuilder issues JWT access tokens.
type AccessTokenBuilder struct {
	issuer
	binders []Binder
}

// NewAccessTokenBuilder returns a builder with MutualTLSBinder installed first.
// Extra binders run after it in the given order.
func NewAccessTokenBuilder(signer Signer, store GrantedTokenStore, binders []Binder, opts ...Option) *AccessTokenBuilder {
	return &AccessTokenBuilder{
		issuer:  newIssuer(signer, store, opts),
		binders: append([]Binder{MutualTLSBinder{}}, binders...),
	}
}

func (b *AccessTokenBuilder) Name() models.TokenType {
	return models.TokenTypeAccess
}

func (b *AccessTokenBuilder) Build(ctx context.Context, scopes []string, hctx *models.HandlerContext) error {
	return b.build(ctx, scopes, hctx, flowBuild)
}

// Refresh reissues an access token for the scopes granted originally.
func (b *AccessTokenBuilder) Refresh(ctx context.Context, previous *models.AuthorizationRequest, hctx *models.HandlerContext) error {
	return b.build(ctx, previousScopes(previous), hctx, flowRefresh)
}

func (b *AccessTokenBuilder) build(ctx context.Context, scopes []string, hctx *models.HandlerContext, flow string) error {
	ctx, span := b.start(ctx, models.TokenTypeAccess, flow, hctx)
	defer span.End()

	now := requestcontext.Now(ctx)
	ttl := hctx.Client.AccessTokenTTL()
	claims := jwt.MapClaims{
		"aud":         []string{hctx.Client.ClientID},
		ClaimScope:    strings.Join(scopes, " "),
		"iss":         hctx.IssuerName,
		"exp":         now.Add(ttl).Unix(),
		"iat":         now.Unix(),
		"jti":         uuid.NewString(),
		ClaimClientID: hctx.Client.ClientID,
	}
	if sub := hctx.Subject(); sub != "" {
		claims["sub"] = sub
	}
	for _, binder := range b.binders {
		if err := binder.Bind(ctx, hctx, claims); err != nil {
			span.RecordError(err)
			return err
		}
	}

	value, err := b.issue(ctx, span, hctx, grant{
		tokenType: models.TokenTypeAccess,
		flow:      flow,
		scopes:    scopes,
		claims:    claims,
		issuedAt:  now,
		expiresAt: now.Add(ttl),
		snapshot:  hctx.Request,
	})
	if err != nil {
		return err
	}
	hctx.Response.Set(models.ResponseKeyAccessToken, value)
	hctx.Response.Set(models.ResponseKeyTokenType, TokenTypeBearer)
	hctx.Response.Set(models.ResponseKeyExpiresIn, int64(ttl.Seconds()))
	return nil
}
