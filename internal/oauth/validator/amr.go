package validator

import (
	"authserver/internal/oauth/models"
)

// DefaultAMR is returned when nothing in the request or client selects a method.
const DefaultAMR = "pwd"

// AMRSelector picks the authentication method a login redirect should ask for.
type AMRSelector interface {
	Select(acrValues []string, claims []models.RequestedClaim, client *models.Client) string
}

// DefaultAMRSelector maps ACR values to authentication methods.
//
// Candidates are tried in order: acr_values from the request, the values of an
// essential acr claim, then the client's default ACR values. The first candidate
// with a mapping wins; otherwise Fallback (or DefaultAMR) is used.
type DefaultAMRSelector struct {
	// ACRToAMR maps an authentication context class to its first method.
	ACRToAMR map[string]string
	Fallback string
}

func NewDefaultAMRSelector(acrToAMR map[string]string) *DefaultAMRSelector {
	return &DefaultAMRSelector{ACRToAMR: acrToAMR, Fallback: DefaultAMR}
}

func (s *DefaultAMRSelector) Select(acrValues []string, claims []models.RequestedClaim, client *models.Client) string {
	candidates := append([]string(nil), acrValues...)
	for _, c := range claims {
		if c.Name == models.ClaimACR && c.Essential {
			candidates = append(candidates, c.Values...)
		}
	}
	if client != nil {
		candidates = append(candidates, client.DefaultACRValues...)
	}
	for _, acr := range candidates {
		if amr, ok := s.ACRToAMR[acr]; ok && amr != "" {
			return amr
		}
	}
	if s.Fallback != "" {
		return s.Fallback
	}
	return DefaultAMR
}
