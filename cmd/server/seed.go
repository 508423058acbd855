package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authserver/internal/oauth/clientauth"
	"authserver/internal/oauth/models"
	obmodels "authserver/internal/openbanking/models"
	"authserver/internal/openbanking/redirector"
	"authserver/internal/platform/config"
)

// consentStore is the consent repository as the binary uses it: read by the
// redirector, written by seeding.
type consentStore interface {
	redirector.ConsentRepository
	Save(ctx context.Context, c *obmodels.AccountAccessConsent) error
}

func seedClient(c config.Client) (*models.Client, error) {
	client, err := models.NewClient(c.ID, c.RedirectURIs, c.Scopes, models.TokenEndpointAuthMethod(c.AuthMethod))
	if err != nil {
		return nil, err
	}
	client.TLSClientAuthSubjectDN = c.TLSClientAuthSubjectDN
	client.CertificateThumbprints = c.CertificateThumbprints
	client.SigningAlgorithm = c.SigningAlgorithm
	if client.IsPublic() || client.UsesMutualTLS() {
		return client, nil
	}
	if c.Secret == "" {
		return nil, errors.New("client secret is required for " + string(client.TokenEndpointAuthMethod))
	}
	if client.SecretHash, err = clientauth.HashSecret(c.Secret); err != nil {
		return nil, err
	}
	return client, nil
}

// seedUsers leaves AuthenticationTime unset; the session provider supplies it
// per request.
func seedUsers(seeds []config.User) []*models.User {
	users := make([]*models.User, 0, len(seeds))
	for _, s := range seeds {
		u := &models.User{Subject: s.Subject, AMR: []string{"pwd"}}
		for typ, value := range s.Claims {
			u.Claims = append(u.Claims, models.UserClaim{Type: typ, Value: value})
		}
		users = append(users, u)
	}
	return users
}

// seedConsents saves the configured consents with their configured status.
// Saving is an upsert, so restarts against Postgres are harmless.
func seedConsents(ctx context.Context, repo consentStore, seeds []config.Consent) error {
	now := time.Now().UTC()
	for _, s := range seeds {
		c, err := obmodels.NewAccountAccessConsent(s.ID, s.ClientID, s.Permissions, now)
		if err != nil {
			return fmt.Errorf("seed consent %q: %w", s.ID, err)
		}
		c.Subject = s.Subject
		if s.Status != "" {
			status := obmodels.ConsentStatus(s.Status)
			if !status.IsValid() {
				return fmt.Errorf("seed consent %q: unknown status %q", s.ID, s.Status)
			}
			c.Status = status
		}
		if err := repo.Save(ctx, c); err != nil {
			return fmt.Errorf("seed consent %q: %w", s.ID, err)
		}
	}
	return nil
}
