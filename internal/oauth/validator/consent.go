package validator

import (
	"context"

	"authserver/internal/oauth/models"
)

// Checkpoint identifies where in the pipeline consent redirection is evaluated.
type Checkpoint string

const (
	// CheckpointPrompt is reached when the request carries prompt=consent.
	CheckpointPrompt Checkpoint = "prompt"
	// CheckpointMissingConsent is reached when the user has not consented to the
	// requested scopes and claims.
	CheckpointMissingConsent Checkpoint = "missing_consent"
	// CheckpointSatisfied is reached after every other check passed.
	CheckpointSatisfied Checkpoint = "satisfied"
)

// ConsentRedirector decides whether the request must be sent to a consent view.
// A nil result means no redirection and validation continues.
type ConsentRedirector interface {
	Redirect(ctx context.Context, hctx *models.HandlerContext, checkpoint Checkpoint) (*Result, error)
}

// DefaultConsentRedirector asks for the generic consent screen whenever consent
// is outstanding. Once every check passed there is nothing left to ask for.
type DefaultConsentRedirector struct{}

func (DefaultConsentRedirector) Redirect(_ context.Context, _ *models.HandlerContext, checkpoint Checkpoint) (*Result, error) {
	if checkpoint == CheckpointSatisfied {
		return nil, nil
	}
	return NeedsConsent(), nil
}
