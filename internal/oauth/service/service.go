// Package service runs the authorization and token endpoints on top of the
// validator pipeline and the token builder chain. Transport concerns stay in
// internal/transport/http.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"authserver/internal/audit"
	"authserver/internal/oauth/models"
	"authserver/internal/oauth/token"
	"authserver/internal/oauth/validator"
	dErrors "authserver/pkg/domain-errors"
)

type ClientResolver interface {
	Resolve(ctx context.Context, clientID string) (*models.Client, error)
}

type UserStore interface {
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
}

type AuthorizationCodeStore interface {
	Create(ctx context.Context, record *models.AuthorizationCodeRecord) error
	ConsumeAuthCode(ctx context.Context, code, clientID, redirectURI string, now time.Time) (*models.AuthorizationCodeRecord, error)
}

type GrantedTokenReader interface {
	Get(ctx context.Context, value string) (*models.GrantedToken, error)
}

type RequestValidator interface {
	Validate(ctx context.Context, hctx *models.HandlerContext) (*validator.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Dependencies groups the collaborators of the Service. All fields except
// Audit are required.
type Dependencies struct {
	Clients       ClientResolver
	Users         UserStore
	Codes         AuthorizationCodeStore
	GrantedTokens GrantedTokenReader
	Validator     RequestValidator
	Builders      *token.Registry
	Audit         AuditPublisher
}

type Service struct {
	issuer        string
	clients       ClientResolver
	users         UserStore
	codes         AuthorizationCodeStore
	grantedTokens GrantedTokenReader
	validator     RequestValidator
	builders      *token.Registry
	audit         AuditPublisher
	codeTTL       time.Duration
	logger        *slog.Logger
	tracer        trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithAuthorizationCodeTTL overrides models.AuthorizationCodeTTL.
func WithAuthorizationCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

func New(issuer string, deps Dependencies, opts ...Option) (*Service, error) {
	if issuer == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer is required")
	}
	if deps.Clients == nil || deps.Users == nil || deps.Codes == nil ||
		deps.GrantedTokens == nil || deps.Validator == nil || deps.Builders == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "service dependencies are incomplete")
	}
	s := &Service{
		issuer:        issuer,
		clients:       deps.Clients,
		users:         deps.Users,
		codes:         deps.Codes,
		grantedTokens: deps.GrantedTokens,
		validator:     deps.Validator,
		builders:      deps.Builders,
		audit:         deps.Audit,
		codeTTL:       models.AuthorizationCodeTTL,
		logger:        slog.Default(),
		tracer:        otel.Tracer("authserver/oauth/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issuer returns the issuer name stamped on every token.
func (s *Service) Issuer() string {
	return s.issuer
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	// Emit logs its own failures; issuance has already happened.
	_ = s.audit.Emit(ctx, event)
}

// buildTokens runs the builders for types in order. Missing builders are a
// wiring fault.
func (s *Service) buildTokens(ctx context.Context, types []models.TokenType, run func(token.Builder) error) error {
	for _, t := range types {
		b, ok := s.builders.Get(t)
		if !ok {
			return dErrors.New(dErrors.CodeInternal, "no builder registered for "+string(t))
		}
		if err := run(b); err != nil {
			return err
		}
	}
	return nil
}

func tokenTypeNames(types []models.TokenType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
