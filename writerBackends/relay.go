package writerbackends

import (
	"fmt"
	"strings"
	"time"

	"mediaforge/models"
	"mediaforge/utils"
)

const relayIssuer = "mediaforge"

// Relay mints and checks short-lived URLs under /api/objects/{token} for
// backends without native URL signing. The HTTP layer streams the object
// through the owning ObjectStore once the token verifies.
type Relay struct {
	BaseURL string
	Secret  []byte
	Now     func() time.Time
}

// NewRelay returns a relay rooted at baseURL.
func NewRelay(baseURL string, secret []byte) *Relay {
	return &Relay{BaseURL: strings.TrimRight(baseURL, "/"), Secret: secret, Now: time.Now}
}

func (r *Relay) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// URL returns a URL that authorizes method on object until expiry elapses.
func (r *Relay) URL(object, method, contentType string, expiry time.Duration) (string, error) {
	now := r.now()
	token, err := utils.SignRelayToken(&models.RelayClaims{
		Issuer:      relayIssuer,
		Subject:     object,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(expiry).Unix(),
		Method:      method,
		ContentType: contentType,
	}, r.Secret)
	if err != nil {
		return "", fmt.Errorf("sign relay token for %s: %w", object, err)
	}
	return r.BaseURL + "/api/objects/" + token, nil
}

// Verify validates token for method and returns its claims.
func (r *Relay) Verify(token, method string) (*models.RelayClaims, error) {
	return utils.VerifyRelayToken(token, utils.VerifyConfig{
		SecretKey:      r.Secret,
		ExpectedIssuer: relayIssuer,
		ExpectedMethod: method,
		ClockSkew:      5 * time.Second,
		Now:            r.now,
	})
}
