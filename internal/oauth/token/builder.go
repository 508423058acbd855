// Package token issues the signed artifacts of a grant: access tokens, ID
// tokens and refresh tokens.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"authserver/internal/oauth/models"
	"authserver/internal/platform/metrics"
	"authserver/pkg/requestcontext"
)

// Signer produces a compact JWS for a client.
type Signer interface {
	Sign(ctx context.Context, client *models.Client, claims jwt.MapClaims) (string, error)
}

// GrantedTokenStore records issued tokens so later requests can look them up.
type GrantedTokenStore interface {
	Put(ctx context.Context, token *models.GrantedToken) error
	Get(ctx context.Context, value string) (*models.GrantedToken, error)
}

// Builder issues one token type into the response accumulator.
//
// Build and Refresh are not idempotent: every call signs and stores a new token,
// so callers invoke them at most once per grant.
type Builder interface {
	Name() models.TokenType
	Build(ctx context.Context, scopes []string, hctx *models.HandlerContext) error
	// Refresh issues a token from the request snapshot of an earlier grant.
	Refresh(ctx context.Context, previous *models.AuthorizationRequest, hctx *models.HandlerContext) error
}

// Flows label what triggered issuance.
const (
	flowBuild   = "build"
	flowRefresh = "refresh"
)

// issuer holds what every builder needs to sign and register a token.
type issuer struct {
	signer  Signer
	store   GrantedTokenStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *issuer) { i.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *issuer) { i.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(i *issuer) { i.tracer = t }
}

func newIssuer(signer Signer, store GrantedTokenStore, opts []Option) issuer {
	i := issuer{
		signer: signer,
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("authserver/oauth/token"),
	}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

func (i *issuer) start(ctx context.Context, tokenType models.TokenType, flow string, hctx *models.HandlerContext) (context.Context, trace.Span) {
	ctx, span := i.tracer.Start(ctx, "token."+string(tokenType))
	span.SetAttributes(
		attribute.String("oauth.client_id", hctx.Client.ClientID),
		attribute.String("oauth.token.flow", flow),
	)
	return ctx, span
}

// grant describes one token about to be issued.
type grant struct {
	tokenType models.TokenType
	flow      string
	scopes    []string
	claims    jwt.MapClaims
	issuedAt  time.Time
	expiresAt time.Time
	// snapshot is stored with the token; refresh grants re-derive scopes from it.
	snapshot *models.AuthorizationRequest
}

// issue signs the claims and registers the token. The store write is skipped
// when ctx was cancelled while signing, so a cancelled request never leaves a
// half-issued token behind.
func (i *issuer) issue(ctx context.Context, span trace.Span, hctx *models.HandlerContext, g grant) (string, error) {
	value, err := i.signer.Sign(ctx, hctx.Client, g.claims)
	if err != nil {
		return "", i.fail(ctx, span, hctx, g, "sign", err)
	}
	if err := ctx.Err(); err != nil {
		return "", i.fail(ctx, span, hctx, g, "sign", err)
	}
	record := &models.GrantedToken{
		Value:             value,
		Type:              g.tokenType,
		ClientID:          hctx.Client.ClientID,
		AuthorizationCode: hctx.AuthorizationCode(),
		Subject:           hctx.Subject(),
		Scopes:            append([]string(nil), g.scopes...),
		IssuedAt:          g.issuedAt,
		ExpiresAt:         g.expiresAt,
		Request:           g.snapshot.Clone(),
	}
	if err := i.store.Put(ctx, record); err != nil {
		return "", i.fail(ctx, span, hctx, g, "store", err)
	}
	i.metrics.IncrementTokensIssued(string(g.tokenType), g.flow)
	i.logger.DebugContext(ctx, "token issued",
		"type", g.tokenType,
		"flow", g.flow,
		"client_id", hctx.Client.ClientID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return value, nil
}

func (i *issuer) fail(ctx context.Context, span trace.Span, hctx *models.HandlerContext, g grant, stage string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	i.logger.ErrorContext(ctx, "token issuance failed",
		"type", g.tokenType,
		"stage", stage,
		"client_id", hctx.Client.ClientID,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return fmt.Errorf("%s %s: %w", stage, g.tokenType, err)
}

func previousScopes(previous *models.AuthorizationRequest) []string {
	if previous == nil {
		return nil
	}
	return previous.Scopes
}
