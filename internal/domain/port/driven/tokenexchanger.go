package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// ErrUpstreamAuth is returned when the OAuth provider rejects a code or
// refresh token exchange.
var ErrUpstreamAuth = errors.New("upstream oauth exchange rejected")

// TokenExchanger defines the driven port for the OAuth provider's token endpoint.
// Returned bundles always carry absolute expiry instants.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code string) (model.UpstreamToken, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (model.UpstreamToken, error)
	// AuthCodeURL returns the provider authorization URL that redirects back to callbackURL.
	AuthCodeURL(callbackURL string) string
}
