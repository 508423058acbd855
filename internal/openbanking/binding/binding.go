// Package binding ties access tokens to an Open Banking account access consent.
package binding

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	oauthmodels "authserver/internal/oauth/models"
	"authserver/internal/openbanking/redirector"
)

// IntentBinder copies the consent id requested through the consent claim into
// the access token so resource servers can resolve the consent from the token.
type IntentBinder struct {
	claimName string
}

// NewIntentBinder binds the value of claimName. An empty name falls back to
// redirector.DefaultConsentClaimName.
func NewIntentBinder(claimName string) *IntentBinder {
	if claimName == "" {
		claimName = redirector.DefaultConsentClaimName
	}
	return &IntentBinder{claimName: claimName}
}

func (b *IntentBinder) Bind(_ context.Context, hctx *oauthmodels.HandlerContext, claims jwt.MapClaims) error {
	if hctx.Request == nil {
		return nil
	}
	for _, c := range hctx.Request.Claims {
		if c.Name == b.claimName && len(c.Values) > 0 && c.Values[0] != "" {
			claims[b.claimName] = c.Values[0]
			return nil
		}
	}
	return nil
}
