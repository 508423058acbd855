package service

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"authserver/internal/audit"
	"authserver/internal/oauth/models"
	"authserver/internal/oauth/token"
	"authserver/internal/oauth/validator"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/platform/sentinel"
	"authserver/pkg/requestcontext"
)

// AuthorizeInput is a parsed authorization request plus what the transport
// knows about the caller.
type AuthorizeInput struct {
	Request *models.AuthorizationRequest
	// User is nil when no session is authenticated.
	User        *models.User
	Certificate *x509.Certificate
}

// AuthorizeOutput carries the validation result. On success Response holds
// the parameters to return to the client at RedirectURI.
type AuthorizeOutput struct {
	Result      *validator.Result
	Client      *models.Client
	Request     *models.AuthorizationRequest
	RedirectURI string
	Response    *models.Response
}

// Authorize validates the request and, when nothing is left to ask the user,
// issues the artifacts named by response_type.
func (s *Service) Authorize(ctx context.Context, in AuthorizeInput) (*AuthorizeOutput, error) {
	if in.Request == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	ctx, span := s.tracer.Start(ctx, "service.Authorize")
	defer span.End()

	req := in.Request
	req.Normalize()
	if req.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "missing parameter client_id")
	}
	span.SetAttributes(attribute.String("oauth.client_id", req.ClientID))

	client, err := s.clients.Resolve(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidRequest, fmt.Sprintf("unknown client %s", req.ClientID))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve client")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve client")
	}

	hctx := models.NewAuthorizationContext(s.issuer, client, req, in.User)
	hctx.Certificate = in.Certificate

	result, err := s.validator.Validate(ctx, hctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validate")
		return nil, err
	}
	out := &AuthorizeOutput{
		Result:      result,
		Client:      client,
		Request:     hctx.Request,
		RedirectURI: hctx.Request.RedirectURI,
		Response:    hctx.Response,
	}
	if result.Kind != validator.KindSuccess {
		return out, nil
	}

	// The request object may have replaced redirect_uri, so registration is
	// checked against the effective request.
	if !client.AllowsRedirectURI(hctx.Request.RedirectURI) {
		out.Result = validator.Failed(dErrors.CodeInvalidRequest,
			fmt.Sprintf("redirect_uri %s is not registered", hctx.Request.RedirectURI))
		return out, nil
	}
	if failed := checkResponseTypes(hctx.Request); failed != nil {
		out.Result = failed
		return out, nil
	}

	if err := s.issueAuthorization(ctx, hctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue")
		return nil, err
	}
	return out, nil
}

func checkResponseTypes(req *models.AuthorizationRequest) *validator.Result {
	if len(req.ResponseTypes) == 0 {
		return validator.Failed(dErrors.CodeInvalidRequest, "missing parameter response_type")
	}
	for _, rt := range req.ResponseTypes {
		switch rt {
		case models.ResponseTypeCode, models.ResponseTypeToken, models.ResponseTypeIDToken:
		default:
			return validator.Failed(dErrors.CodeUnsupportedResponse, fmt.Sprintf("response_type %s is not supported", rt))
		}
	}
	return nil
}

// issueAuthorization writes code, access_token and id_token in that order so
// the ID token can carry c_hash and at_hash.
func (s *Service) issueAuthorization(ctx context.Context, hctx *models.HandlerContext) error {
	req := hctx.Request
	now := requestcontext.Now(ctx)

	if req.HasResponseType(models.ResponseTypeCode) {
		record := &models.AuthorizationCodeRecord{
			Code:        uuid.NewString(),
			ClientID:    hctx.Client.ClientID,
			RedirectURI: req.RedirectURI,
			User:        hctx.User,
			Request:     req.Clone(),
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.codeTTL),
		}
		if err := s.codes.Create(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store authorization code")
		}
		hctx.Response.Set(models.ResponseKeyCode, record.Code)
	}

	var types []models.TokenType
	if req.HasResponseType(models.ResponseTypeToken) {
		types = append(types, models.TokenTypeAccess)
	}
	if req.HasResponseType(models.ResponseTypeIDToken) {
		types = append(types, models.TokenTypeID)
	}
	if err := s.buildTokens(ctx, types, func(b token.Builder) error {
		return b.Build(ctx, req.Scopes, hctx)
	}); err != nil {
		return err
	}
	if req.State != "" {
		hctx.Response.Set(models.ResponseKeyState, req.State)
	}

	s.logger.InfoContext(ctx, "authorization granted",
		"client_id", hctx.Client.ClientID,
		"response_type", req.ResponseTypes,
		"request_id", requestcontext.RequestID(ctx),
	)
	if req.HasResponseType(models.ResponseTypeCode) {
		s.emit(ctx, audit.Event{
			Action:   audit.ActionAuthorizationCodeIssued,
			ClientID: hctx.Client.ClientID,
			Subject:  hctx.Subject(),
			Scopes:   req.Scopes,
		})
	}
	if len(types) > 0 {
		s.emit(ctx, audit.Event{
			Action:     audit.ActionTokenIssued,
			ClientID:   hctx.Client.ClientID,
			Subject:    hctx.Subject(),
			TokenTypes: tokenTypeNames(types),
			Scopes:     req.Scopes,
		})
	}
	return nil
}
