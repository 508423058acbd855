// Package redirector implements the Open Banking consent redirection: an
// authorization request that carries an account access consent id is routed
// by the state of that consent instead of the generic consent screen.
package redirector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	oauthmodels "authserver/internal/oauth/models"
	"authserver/internal/oauth/validator"
	"authserver/internal/openbanking/models"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/platform/sentinel"
	"authserver/pkg/requestcontext"
)

const (
	DefaultConsentClaimName = "openbanking_intent_id"
	DefaultAccountsScope    = "accounts"

	// ConsentView and ConsentAction name the account consent screen.
	ConsentView   = "OpenBankingApiAccountConsent"
	ConsentAction = "Index"
)

const (
	msgUnknownConsent        = "account access consent '%s' does not exist"
	msgConsentRejected       = "account access consent has already been rejected"
	msgConsentRevoked        = "account access consent has already been revoked"
	msgConsentClaimEmpty     = "claim %s has no value"
	msgConsentScreenNotShown = "consent screen cannot be displayed for the scopes '%s'"
)

// ConsentRepository loads account access consents.
type ConsentRepository interface {
	Get(ctx context.Context, id string) (*models.AccountAccessConsent, error)
}

// MissingClaimAction says what to do when the request has no consent claim.
type MissingClaimAction string

const (
	// MissingClaimFallback defers to the generic consent redirector.
	MissingClaimFallback MissingClaimAction = "fallback"
	// MissingClaimIgnore continues validation without redirecting.
	MissingClaimIgnore MissingClaimAction = "ignore"
)

// MissingClaimPolicy maps each checkpoint to the action taken when the consent
// claim is absent. Checkpoints not listed are ignored.
type MissingClaimPolicy map[validator.Checkpoint]MissingClaimAction

// DefaultMissingClaimPolicy falls back to generic consent wherever consent is
// outstanding and stays silent once every check passed.
func DefaultMissingClaimPolicy() MissingClaimPolicy {
	return MissingClaimPolicy{
		validator.CheckpointPrompt:         MissingClaimFallback,
		validator.CheckpointMissingConsent: MissingClaimFallback,
		validator.CheckpointSatisfied:      MissingClaimIgnore,
	}
}

// RegulatedConsentRedirector is the Open Banking ConsentRedirector.
type RegulatedConsentRedirector struct {
	repo          ConsentRepository
	fallback      validator.ConsentRedirector
	policy        MissingClaimPolicy
	claimName     string
	accountsScope string
	logger        *slog.Logger
}

type Option func(*RegulatedConsentRedirector)

func WithConsentClaimName(name string) Option {
	return func(r *RegulatedConsentRedirector) {
		if name != "" {
			r.claimName = name
		}
	}
}

func WithAccountsScope(scope string) Option {
	return func(r *RegulatedConsentRedirector) {
		if scope != "" {
			r.accountsScope = scope
		}
	}
}

func WithMissingClaimPolicy(p MissingClaimPolicy) Option {
	return func(r *RegulatedConsentRedirector) { r.policy = p }
}

func WithFallback(f validator.ConsentRedirector) Option {
	return func(r *RegulatedConsentRedirector) { r.fallback = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *RegulatedConsentRedirector) { r.logger = logger }
}

func New(repo ConsentRepository, opts ...Option) (*RegulatedConsentRedirector, error) {
	if repo == nil {
		return nil, errors.New("consent repository is required")
	}
	r := &RegulatedConsentRedirector{
		repo:          repo,
		fallback:      validator.DefaultConsentRedirector{},
		policy:        DefaultMissingClaimPolicy(),
		claimName:     DefaultConsentClaimName,
		accountsScope: DefaultAccountsScope,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ClaimName returns the request claim carrying the consent id.
func (r *RegulatedConsentRedirector) ClaimName() string {
	return r.claimName
}

func (r *RegulatedConsentRedirector) Redirect(ctx context.Context, hctx *oauthmodels.HandlerContext, checkpoint validator.Checkpoint) (*validator.Result, error) {
	req := hctx.Request
	claim, ok := req.FindClaim(r.claimName)
	if !ok {
		if r.policy[checkpoint] == MissingClaimFallback {
			return r.fallback.Redirect(ctx, hctx, checkpoint)
		}
		return nil, nil
	}

	if !req.HasScope(r.accountsScope) {
		scopes := strings.Join(req.Scopes, ",")
		r.logger.ErrorContext(ctx, "consent screen cannot be displayed",
			"scopes", scopes,
			"client_id", hctx.Client.ClientID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return validator.Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgConsentScreenNotShown, scopes)), nil
	}
	if len(claim.Values) == 0 || claim.Values[0] == "" {
		return validator.Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgConsentClaimEmpty, r.claimName)), nil
	}

	consentID := claim.Values[0]
	consent, err := r.repo.Get(ctx, consentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		r.logger.ErrorContext(ctx, "account access consent does not exist", "consent_id", consentID)
		return validator.Failed(dErrors.CodeInvalidRequest, fmt.Sprintf(msgUnknownConsent, consentID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account access consent: %w", err)
	}

	switch consent.Status {
	case models.StatusAwaitingAuthorisation:
		return validator.NeedsUserConsent(ConsentView, ConsentAction), nil
	case models.StatusRejected:
		r.logger.ErrorContext(ctx, "account access consent already rejected", "consent_id", consentID)
		return validator.Failed(dErrors.CodeInvalidRequest, msgConsentRejected), nil
	case models.StatusRevoked:
		r.logger.ErrorContext(ctx, "account access consent already revoked", "consent_id", consentID)
		return validator.Failed(dErrors.CodeInvalidRequest, msgConsentRevoked), nil
	}
	return nil, nil
}
