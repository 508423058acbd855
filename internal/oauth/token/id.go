package token

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authserver/internal/oauth/models"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/requestcontext"
)

// IDTokenBuilder issues OpenID Connect ID tokens. It must run after the access
// token builder so at_hash can be computed.
type IDTokenBuilder struct {
	issuer
}

func NewIDTokenBuilder(signer Signer, store GrantedTokenStore, opts ...Option) *IDTokenBuilder {
	return &IDTokenBuilder{issuer: newIssuer(signer, store, opts)}
}

func (b *IDTokenBuilder) Name() models.TokenType {
	return models.TokenTypeID
}

func (b *IDTokenBuilder) Build(ctx context.Context, scopes []string, hctx *models.HandlerContext) error {
	return b.build(ctx, scopes, hctx, flowBuild)
}

func (b *IDTokenBuilder) Refresh(ctx context.Context, previous *models.AuthorizationRequest, hctx *models.HandlerContext) error {
	return b.build(ctx, previousScopes(previous), hctx, flowRefresh)
}

func (b *IDTokenBuilder) build(ctx context.Context, scopes []string, hctx *models.HandlerContext, flow string) error {
	ctx, span := b.start(ctx, models.TokenTypeID, flow, hctx)
	defer span.End()

	if hctx.User == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "an id_token requires an authenticated user")
	}
	now := requestcontext.Now(ctx)
	ttl := hctx.Client.AccessTokenTTL()
	claims := b.payload(scopes, hctx)
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	claims["jti"] = uuid.NewString()

	value, err := b.issue(ctx, span, hctx, grant{
		tokenType: models.TokenTypeID,
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
	hctx.Response.Set(models.ResponseKeyIDToken, value)
	return nil
}

// payload builds the identity claims. The issuer is included in the audience so
// the token can later be presented back as an id_token_hint.
func (b *IDTokenBuilder) payload(scopes []string, hctx *models.HandlerContext) jwt.MapClaims {
	user := hctx.User
	claims := jwt.MapClaims{
		"iss":       hctx.IssuerName,
		"sub":       user.Subject,
		"aud":       []string{hctx.Client.ClientID, hctx.IssuerName},
		"azp":       hctx.Client.ClientID,
		"auth_time": user.AuthenticationTime.Unix(),
	}
	if req := hctx.Request; req != nil && req.Nonce != "" {
		claims["nonce"] = req.Nonce
	}
	if user.ACR != "" {
		claims[models.ClaimACR] = user.ACR
	}
	if len(user.AMR) > 0 {
		claims["amr"] = append([]string(nil), user.AMR...)
	}
	if at, ok := hctx.Response.GetString(models.ResponseKeyAccessToken); ok {
		claims["at_hash"] = leftHalfHash(at)
	}
	if code, ok := hctx.Response.GetString(models.ResponseKeyCode); ok {
		claims["c_hash"] = leftHalfHash(code)
	}

	for _, name := range models.ClaimsForScopes(scopes) {
		if v, ok := user.ClaimValue(name); ok {
			claims[name] = v
		}
	}
	if hctx.Request != nil {
		for _, requested := range hctx.Request.ClaimsFor(models.ClaimTargetIDToken) {
			if requested.Name == models.ClaimSubject || !models.IsUserClaim(requested.Name) {
				continue
			}
			if v, ok := user.ClaimValue(requested.Name); ok {
				claims[requested.Name] = v
			}
		}
	}
	return claims
}
