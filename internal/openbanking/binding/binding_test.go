package binding

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	oauthmodels "authserver/internal/oauth/models"
	"authserver/internal/oauth/token"
)

var _ token.Binder = (*IntentBinder)(nil)

func TestIntentBinder(t *testing.T) {
	hctxWith := func(claims ...oauthmodels.RequestedClaim) *oauthmodels.HandlerContext {
		return &oauthmodels.HandlerContext{
			Client:  &oauthmodels.Client{ClientID: "tpp-1"},
			Request: &oauthmodels.AuthorizationRequest{ClientID: "tpp-1", Claims: claims},
		}
	}

	t.Run("adds the consent id", func(t *testing.T) {
		claims := jwt.MapClaims{}
		err := NewIntentBinder("").Bind(context.Background(), hctxWith(oauthmodels.RequestedClaim{
			Name: "openbanking_intent_id", Target: oauthmodels.ClaimTargetIDToken, Values: []string{"urn-1"},
		}), claims)
		assert.NoError(t, err)
		assert.Equal(t, "urn-1", claims["openbanking_intent_id"])
	})

	t.Run("custom claim name", func(t *testing.T) {
		claims := jwt.MapClaims{}
		err := NewIntentBinder("intent").Bind(context.Background(), hctxWith(oauthmodels.RequestedClaim{
			Name: "intent", Values: []string{"urn-2"},
		}), claims)
		assert.NoError(t, err)
		assert.Equal(t, "urn-2", claims["intent"])
	})

	t.Run("no claim leaves the payload untouched", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "alice"}
		err := NewIntentBinder("").Bind(context.Background(), hctxWith(), claims)
		assert.NoError(t, err)
		assert.Len(t, claims, 1)
	})

	t.Run("claim without value is skipped", func(t *testing.T) {
		claims := jwt.MapClaims{}
		err := NewIntentBinder("").Bind(context.Background(), hctxWith(oauthmodels.RequestedClaim{Name: "openbanking_intent_id"}), claims)
		assert.NoError(t, err)
		assert.NotContains(t, claims, "openbanking_intent_id")
	})
}
