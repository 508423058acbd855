package service

import (
	"context"
	"crypto/x509"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"authserver/internal/audit"
	"authserver/internal/oauth/models"
	"authserver/internal/oauth/token"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/platform/sentinel"
	pkgstrings "authserver/pkg/platform/strings"
	"authserver/pkg/requestcontext"
)

const (
	msgInvalidCode         = "authorization code is invalid"
	msgInvalidRefreshToken = "refresh token is invalid"
)

// TokenInput is a token request from an already authenticated client.
type TokenInput struct {
	Client      *models.Client
	Request     *models.TokenRequest
	Certificate *x509.Certificate
}

// Token redeems a grant and returns the token response parameters.
func (s *Service) Token(ctx context.Context, in TokenInput) (*models.Response, error) {
	if in.Request == nil || in.Client == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	ctx, span := s.tracer.Start(ctx, "service.Token")
	defer span.End()

	req := in.Request
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("oauth.client_id", in.Client.ClientID),
		attribute.String("oauth.grant_type", string(req.GrantType)),
	)
	if req.ClientID != "" && req.ClientID != in.Client.ClientID {
		return nil, dErrors.New(dErrors.CodeInvalidClient, "client_id does not match the authenticated client")
	}
	if !in.Client.AllowsGrant(req.GrantType) {
		return nil, dErrors.New(dErrors.CodeUnauthorizedClient, "client may not use grant_type "+string(req.GrantType))
	}

	var (
		resp *models.Response
		err  error
	)
	switch req.GrantType {
	case models.GrantAuthorizationCode:
		resp, err = s.exchangeAuthorizationCode(ctx, in)
	case models.GrantRefreshToken:
		resp, err = s.refreshWithRefreshToken(ctx, in)
	default:
		return nil, dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported grant_type")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(req.GrantType))
		return nil, err
	}
	return resp, nil
}

func (s *Service) exchangeAuthorizationCode(ctx context.Context, in TokenInput) (*models.Response, error) {
	req := in.Request
	now := requestcontext.Now(ctx)

	record, err := s.codes.ConsumeAuthCode(ctx, req.Code, in.Client.ClientID, req.RedirectURI, now)
	if err != nil {
		if isGrantFact(err) {
			s.logger.InfoContext(ctx, "authorization code rejected",
				"client_id", in.Client.ClientID,
				"reason", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, dErrors.New(dErrors.CodeInvalidGrant, msgInvalidCode)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume authorization code")
	}

	user, err := s.resolveUser(ctx, subjectOf(record.User))
	if err != nil {
		return nil, err
	}
	hctx := models.NewTokenContext(s.issuer, in.Client, req, record.Request, user)
	hctx.Certificate = in.Certificate

	scopes := record.Request.Scopes
	types := s.grantTypesFor(in.Client, scopes, user)
	if err := s.buildTokens(ctx, types, func(b token.Builder) error {
		return b.Build(ctx, scopes, hctx)
	}); err != nil {
		return nil, err
	}
	setScope(hctx.Response, scopes)

	s.emit(ctx, audit.Event{
		Action:     audit.ActionTokenIssued,
		ClientID:   in.Client.ClientID,
		Subject:    hctx.Subject(),
		TokenTypes: tokenTypeNames(types),
		Scopes:     scopes,
	})
	return hctx.Response, nil
}

func (s *Service) refreshWithRefreshToken(ctx context.Context, in TokenInput) (*models.Response, error) {
	req := in.Request
	now := requestcontext.Now(ctx)

	previous, err := s.grantedTokens.Get(ctx, req.RefreshToken)
	if err != nil {
		if isGrantFact(err) {
			return nil, dErrors.New(dErrors.CodeInvalidGrant, msgInvalidRefreshToken)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load refresh token")
	}
	if err := previous.ValidateForRefresh(in.Client.ClientID, now); err != nil {
		s.logger.InfoContext(ctx, "refresh token rejected",
			"client_id", in.Client.ClientID,
			"reason", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeInvalidGrant, msgInvalidRefreshToken)
	}

	user, err := s.resolveUser(ctx, previous.Subject)
	if err != nil {
		return nil, err
	}
	hctx := models.NewTokenContext(s.issuer, in.Client, req, previous.Request, user)
	hctx.Certificate = in.Certificate

	scopes := previous.Scopes
	if previous.Request != nil {
		scopes = previous.Request.Scopes
	}
	types := s.grantTypesFor(in.Client, scopes, user)
	if err := s.buildTokens(ctx, types, func(b token.Builder) error {
		return b.Refresh(ctx, previous.Request, hctx)
	}); err != nil {
		return nil, err
	}
	setScope(hctx.Response, scopes)

	s.emit(ctx, audit.Event{
		Action:     audit.ActionTokenRefreshed,
		ClientID:   in.Client.ClientID,
		Subject:    hctx.Subject(),
		TokenTypes: tokenTypeNames(types),
		Scopes:     scopes,
	})
	return hctx.Response, nil
}

// grantTypesFor returns the token types issued at the token endpoint: an access
// token, a refresh token when the client may refresh, and an ID token when
// openid was granted to a user.
func (s *Service) grantTypesFor(client *models.Client, scopes []string, user *models.User) []models.TokenType {
	types := []models.TokenType{models.TokenTypeAccess}
	if client.AllowsGrant(models.GrantRefreshToken) {
		types = append(types, models.TokenTypeRefresh)
	}
	if user != nil && pkgstrings.Contains(scopes, models.ScopeOpenID) {
		types = append(types, models.TokenTypeID)
	}
	return types
}

// resolveUser reloads the user so tokens carry current claims. An empty subject
// means a client-only grant.
func (s *Service) resolveUser(ctx context.Context, subject string) (*models.User, error) {
	if subject == "" {
		return nil, nil
	}
	user, err := s.users.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidGrant, "the user of this grant no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func isGrantFact(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) ||
		errors.Is(err, sentinel.ErrExpired) ||
		errors.Is(err, sentinel.ErrAlreadyUsed) ||
		errors.Is(err, sentinel.ErrMismatch) ||
		errors.Is(err, sentinel.ErrInvalidState)
}

func subjectOf(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Subject
}

func setScope(resp *models.Response, scopes []string) {
	if len(scopes) > 0 {
		resp.Set(models.ResponseKeyScope, strings.Join(scopes, " "))
	}
}
