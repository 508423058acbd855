package httptransport

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks AuthorizationService,ClientAuthenticator,SessionProvider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"authserver/internal/oauth/clientauth"
	"authserver/internal/oauth/models"
	"authserver/internal/oauth/service"
	userstore "authserver/internal/oauth/store/user"
	"authserver/internal/oauth/validator"
	"authserver/internal/transport/http/mocks"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/requestcontext"
)

// =============================================================================
// Authorization Endpoint Handler Test Suite
// =============================================================================
// Handlers parse OAuth parameters, call the service and translate results into
// redirects or OAuth error bodies.

type HandlerSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockService  *mocks.MockAuthorizationService
	mockClients  *mocks.MockClientAuthenticator
	mockSessions *mocks.MockSessionProvider
	router       chi.Router
	client       *models.Client
	user         *models.User
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockAuthorizationService(s.ctrl)
	s.mockClients = mocks.NewMockClientAuthenticator(s.ctrl)
	s.mockSessions = mocks.NewMockSessionProvider(s.ctrl)

	h := NewHandler(s.mockService, s.mockClients, s.mockSessions,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.router = chi.NewRouter()
	h.Register(s.router)

	s.client = &models.Client{ClientID: "web", RedirectURIs: []string{"https://app/cb"}}
	s.user = &models.User{Subject: "alice"}
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) authorize(query string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, "/authorize?"+query, nil))
}

func (s *HandlerSuite) output(result *validator.Result, types ...models.ResponseType) *service.AuthorizeOutput {
	return &service.AuthorizeOutput{
		Result:      result,
		Client:      s.client,
		Request:     &models.AuthorizationRequest{ClientID: "web", ResponseTypes: types, RedirectURI: "https://app/cb"},
		RedirectURI: "https://app/cb",
		Response:    models.NewResponse(),
	}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const validQuery = "client_id=web&response_type=code&scope=openid+profile&redirect_uri=https%3A%2F%2Fapp%2Fcb&state=xyz"

func (s *HandlerSuite) TestAuthorizeParsesParameters() {
	s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
	var got service.AuthorizeInput
	s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in service.AuthorizeInput) (*service.AuthorizeOutput, error) {
			got = in
			return s.output(validator.NeedsLogin("pwd")), nil
		})

	claims := url.QueryEscape(`{"id_token":{"acr":{"essential":true,"values":["urn:ob:ca"]}}}`)
	s.authorize(validQuery + "&prompt=login&max_age=300&nonce=n1&acr_values=a+b&claims=" + claims)

	req := got.Request
	s.Require().NotNil(req)
	s.Equal("web", req.ClientID)
	s.Equal([]string{"openid", "profile"}, req.Scopes)
	s.Equal([]models.ResponseType{models.ResponseTypeCode}, req.ResponseTypes)
	s.Equal(models.PromptLogin, req.Prompt)
	s.Require().NotNil(req.MaxAge)
	s.Equal(300*time.Second, *req.MaxAge)
	s.Equal([]string{"a", "b"}, req.ACRValues)
	s.Require().Len(req.Claims, 1)
	s.Equal("acr", req.Claims[0].Name)
	s.True(req.Claims[0].Essential)
	s.Equal(s.user, got.User)
}

func (s *HandlerSuite) TestAuthorizeRejectsMalformedParameters() {
	cases := map[string]string{
		"unknown prompt":   validQuery + "&prompt=sometimes",
		"negative max_age": validQuery + "&max_age=-1",
		"textual max_age":  validQuery + "&max_age=soon",
		"invalid claims":   validQuery + "&claims=%7Bnot-json",
	}
	for name, query := range cases {
		s.Run(name, func() {
			rec := s.authorize(query)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal("invalid_request", errorBody(s.T(), rec)["error"])
		})
	}
}

func (s *HandlerSuite) TestAuthorizeResultMapping() {
	s.Run("success redirects with code and state in the query", func() {
		out := s.output(validator.Success(), models.ResponseTypeCode)
		out.Response.Set(models.ResponseKeyCode, "c-1")
		out.Response.Set(models.ResponseKeyState, "xyz")
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(out, nil)

		rec := s.authorize(validQuery)
		s.Equal(http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		s.Require().NoError(err)
		s.Equal("app", loc.Host)
		s.Equal("c-1", loc.Query().Get("code"))
		s.Equal("xyz", loc.Query().Get("state"))
	})

	s.Run("hybrid success uses the fragment", func() {
		out := s.output(validator.Success(), models.ResponseTypeCode, models.ResponseTypeIDToken)
		out.Response.Set(models.ResponseKeyCode, "c-1")
		out.Response.Set(models.ResponseKeyIDToken, "id.jwt")
		out.Response.Set(models.ResponseKeyExpiresIn, int64(3600))
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(out, nil)

		rec := s.authorize(validQuery)
		loc, err := url.Parse(rec.Header().Get("Location"))
		s.Require().NoError(err)
		s.Empty(loc.RawQuery)
		fragment, err := url.ParseQuery(loc.Fragment)
		s.Require().NoError(err)
		s.Equal("id.jwt", fragment.Get("id_token"))
		s.Equal("3600", fragment.Get("expires_in"))
	})

	s.Run("login required", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(nil, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(s.output(validator.NeedsLogin("otp")), nil)

		rec := s.authorize(validQuery)
		s.Equal(http.StatusFound, rec.Code)
		loc, _ := url.Parse(rec.Header().Get("Location"))
		s.Equal("/login", loc.Path)
		s.Equal("otp", loc.Query().Get("amr"))
		s.True(strings.HasPrefix(loc.Query().Get("return_to"), "/authorize?"))
	})

	s.Run("generic consent", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(s.output(validator.NeedsConsent()), nil)

		loc, _ := url.Parse(s.authorize(validQuery).Header().Get("Location"))
		s.Equal("/consent", loc.Path)
		s.Equal("web", loc.Query().Get("client_id"))
	})

	s.Run("user redirect consent", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).
			Return(s.output(validator.NeedsUserConsent("OpenBankingApiAccountConsent", "Index")), nil)

		loc, _ := url.Parse(s.authorize(validQuery).Header().Get("Location"))
		s.Equal("/OpenBankingApiAccountConsent/Index", loc.Path)
	})

	s.Run("account selection", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(s.output(validator.NeedsAccountSelection()), nil)

		loc, _ := url.Parse(s.authorize(validQuery).Header().Get("Location"))
		s.Equal("/select-account", loc.Path)
	})

	s.Run("failed result is an OAuth error body", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).
			Return(s.output(validator.Failed(dErrors.CodeInvalidRequest, "account access consent has already been revoked")), nil)

		rec := s.authorize(validQuery)
		s.Equal(http.StatusBadRequest, rec.Code)
		body := errorBody(s.T(), rec)
		s.Equal("invalid_request", body["error"])
		s.Equal("account access consent has already been revoked", body["error_description"])
	})

	s.Run("POST form is accepted", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(s.user, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(s.output(validator.NeedsConsent()), nil)

		req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(validQuery))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		s.Equal(http.StatusFound, s.do(req).Code)
	})
}

func (s *HandlerSuite) TestAuthorizeErrors() {
	s.Run("service error keeps its code", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(nil, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidRequest, "unknown client ghost"))

		rec := s.authorize(validQuery)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("unknown client ghost", errorBody(s.T(), rec)["error_description"])
	})

	s.Run("fatal error is a 500 without description", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(nil, nil)
		s.mockService.EXPECT().Authorize(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))

		rec := s.authorize(validQuery)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "redis")
	})

	s.Run("session failure", func() {
		s.mockSessions.EXPECT().CurrentUser(gomock.Any()).Return(nil, errors.New("session store down"))
		rec := s.authorize(validQuery)
		s.Equal(http.StatusInternalServerError, rec.Code)
	})
}

// =============================================================================
// Token endpoint
// =============================================================================

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (s *HandlerSuite) TestToken() {
	form := url.Values{"grant_type": {"authorization_code"}, "code": {"c-1"}, "redirect_uri": {"https://app/cb"}}

	s.Run("basic credentials and ordered JSON response", func() {
		s.mockClients.EXPECT().Authenticate(gomock.Any(), clientauth.Credentials{
			ClientID: "web", ClientSecret: "s3cret", BasicAuth: true,
		}).Return(s.client, nil)
		resp := models.NewResponse()
		resp.Set(models.ResponseKeyAccessToken, "at")
		resp.Set(models.ResponseKeyTokenType, "Bearer")
		resp.Set(models.ResponseKeyExpiresIn, int64(3600))
		s.mockService.EXPECT().Token(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in service.TokenInput) (*models.Response, error) {
				s.Equal(models.GrantAuthorizationCode, in.Request.GrantType)
				s.Equal("c-1", in.Request.Code)
				s.Same(s.client, in.Client)
				return resp, nil
			})

		req := tokenRequest(form)
		req.SetBasicAuth("web", "s3cret")
		rec := s.do(req)

		s.Equal(http.StatusOK, rec.Code)
		s.Equal(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`, strings.TrimSpace(rec.Body.String()))
		s.Equal("no-store", rec.Header().Get("Cache-Control"))
	})

	s.Run("form credentials", func() {
		f := url.Values{"client_id": {"web"}, "client_secret": {"s3cret"}}
		for k, v := range form {
			f[k] = v
		}
		s.mockClients.EXPECT().Authenticate(gomock.Any(), clientauth.Credentials{ClientID: "web", ClientSecret: "s3cret"}).
			Return(s.client, nil)
		s.mockService.EXPECT().Token(gomock.Any(), gomock.Any()).Return(models.NewResponse(), nil)

		s.Equal(http.StatusOK, s.do(tokenRequest(f)).Code)
	})

	s.Run("failed client authentication", func() {
		s.mockClients.EXPECT().Authenticate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidClient, "client authentication failed"))

		req := tokenRequest(form)
		req.SetBasicAuth("web", "wrong")
		rec := s.do(req)
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.NotEmpty(rec.Header().Get("WWW-Authenticate"))
		s.Equal("invalid_client", errorBody(s.T(), rec)["error"])
	})

	s.Run("invalid grant", func() {
		s.mockClients.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(s.client, nil)
		s.mockService.EXPECT().Token(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code is invalid"))

		req := tokenRequest(form)
		req.SetBasicAuth("web", "s3cret")
		rec := s.do(req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("invalid_grant", errorBody(s.T(), rec)["error"])
		s.Empty(rec.Header().Get("WWW-Authenticate"))
	})

	s.Run("GET is not routed", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/token", nil))
		s.Equal(http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestTrustedHeaderSessions(t *testing.T) {
	authenticatedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	users := userstore.NewInMemory(
		&models.User{Subject: "alice"},
		&models.User{Subject: "bob", AuthenticationTime: authenticatedAt},
	)
	sessions := TrustedHeaderSessions{
		Header:         "X-Authenticated-Subject",
		AuthTimeHeader: "X-Authenticated-At",
		Users:          users,
	}
	requestTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newRequest := func(headers map[string]string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
		req = req.WithContext(requestcontext.WithTime(req.Context(), requestTime))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req
	}

	t.Run("no subject is anonymous", func(t *testing.T) {
		user, err := sessions.CurrentUser(newRequest(nil))
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("unknown subject is anonymous", func(t *testing.T) {
		user, err := sessions.CurrentUser(newRequest(map[string]string{"X-Authenticated-Subject": "mallory"}))
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("auth time header wins", func(t *testing.T) {
		user, err := sessions.CurrentUser(newRequest(map[string]string{
			"X-Authenticated-Subject": "bob",
			"X-Authenticated-At":      "1767225600",
		}))
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), user.AuthenticationTime)
	})

	t.Run("recorded auth time is kept", func(t *testing.T) {
		user, err := sessions.CurrentUser(newRequest(map[string]string{"X-Authenticated-Subject": "bob"}))
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, authenticatedAt, user.AuthenticationTime)
	})

	t.Run("no recorded auth time means authenticated now", func(t *testing.T) {
		user, err := sessions.CurrentUser(newRequest(map[string]string{"X-Authenticated-Subject": "alice"}))
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, requestTime, user.AuthenticationTime)

		again, err := users.FindBySubject(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, again.AuthenticationTime.IsZero(), "the stored user is not modified")
	})

	t.Run("malformed auth time", func(t *testing.T) {
		_, err := sessions.CurrentUser(newRequest(map[string]string{
			"X-Authenticated-Subject": "alice",
			"X-Authenticated-At":      "yesterday",
		}))
		assert.Error(t, err)
	})
}
