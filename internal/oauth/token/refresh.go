package token

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authserver/internal/oauth/models"
	"authserver/pkg/requestcontext"
)

// RefreshTokenBuilder issues refresh tokens. Each token stores the request
// snapshot it was issued for, so a later refresh grant keeps the original scopes.
type RefreshTokenBuilder struct {
	issuer
}

func NewRefreshTokenBuilder(signer Signer, store GrantedTokenStore, opts ...Option) *RefreshTokenBuilder {
	return &RefreshTokenBuilder{issuer: newIssuer(signer, store, opts)}
}

func (b *RefreshTokenBuilder) Name() models.TokenType {
	return models.TokenTypeRefresh
}

func (b *RefreshTokenBuilder) Build(ctx context.Context, scopes []string, hctx *models.HandlerContext) error {
	return b.build(ctx, scopes, hctx.Request, hctx, flowBuild)
}

func (b *RefreshTokenBuilder) Refresh(ctx context.Context, previous *models.AuthorizationRequest, hctx *models.HandlerContext) error {
	return b.build(ctx, previousScopes(previous), previous, hctx, flowRefresh)
}

func (b *RefreshTokenBuilder) build(ctx context.Context, scopes []string, snapshot *models.AuthorizationRequest, hctx *models.HandlerContext, flow string) error {
	ctx, span := b.start(ctx, models.TokenTypeRefresh, flow, hctx)
	defer span.End()

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(hctx.Client.RefreshTokenTTL())
	claims := jwt.MapClaims{
		"iss":         hctx.IssuerName,
		"aud":         []string{hctx.IssuerName},
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
		"jti":         uuid.NewString(),
		ClaimClientID: hctx.Client.ClientID,
	}
	if sub := hctx.Subject(); sub != "" {
		claims["sub"] = sub
	}

	value, err := b.issue(ctx, span, hctx, grant{
		tokenType: models.TokenTypeRefresh,
		flow:      flow,
		scopes:    scopes,
		claims:    claims,
		issuedAt:  now,
		expiresAt: expiresAt,
		snapshot:  snapshot,
	})
	if err != nil {
		return err
	}
	hctx.Response.Set(models.ResponseKeyRefreshToken, value)
	return nil
}
