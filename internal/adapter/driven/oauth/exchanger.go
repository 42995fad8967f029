// Package oauth implements the TokenExchanger port against GitHub's OAuth
// token endpoint using golang.org/x/oauth2.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// tokenHTTPClient is the HTTP client used for token endpoint calls.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var tokenHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Compile-time interface satisfaction check.
var _ driven.TokenExchanger = (*Exchanger)(nil)

// Exchanger trades authorization codes and refresh tokens for upstream token bundles.
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewExchanger creates an Exchanger for GitHub's OAuth endpoints.
func NewExchanger(clientID, clientSecret string) *Exchanger {
	return NewExchangerWithEndpoint(tokenHTTPClient, github.Endpoint, clientID, clientSecret, time.Now)
}

// NewExchangerWithEndpoint creates an Exchanger with a custom endpoint, HTTP
// client and clock. This constructor is intended for testing, allowing
// injection of an httptest server.
func NewExchangerWithEndpoint(httpClient *http.Client, endpoint oauth2.Endpoint, clientID, clientSecret string, now func() time.Time) *Exchanger {
	// GitHub accepts client credentials in the form body; pinning the style avoids
	// the library's probe-and-retry autodetection.
	if endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	return &Exchanger{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"repo"},
		},
		httpClient: httpClient,
		now:        now,
	}
}

// AuthCodeURL returns the GitHub authorization URL that redirects back to callbackURL.
func (e *Exchanger) AuthCodeURL(callbackURL string) string {
	// TODO: pass a per-login state value and check it on callback.
	return e.config.AuthCodeURL("", oauth2.SetAuthURLParam("redirect_uri", callbackURL))
}

// ExchangeCode trades an authorization code for a token bundle.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (model.UpstreamToken, error) {
	tok, err := e.config.Exchange(e.clientContext(ctx), code)
	if err != nil {
		return model.UpstreamToken{}, fmt.Errorf("%w: exchange code: %w", driven.ErrUpstreamAuth, err)
	}

	slog.Debug("oauth code exchanged", "token_type", tok.TokenType)
	return e.normalize(tok), nil
}

// ExchangeRefreshToken trades a refresh token for a new token bundle.
func (e *Exchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string) (model.UpstreamToken, error) {
	// A token with only a refresh token is never Valid(), so the source
	// always performs a refresh_token grant.
	src := e.config.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return model.UpstreamToken{}, fmt.Errorf("%w: refresh token: %w", driven.ErrUpstreamAuth, err)
	}

	slog.Debug("oauth token refreshed", "token_type", tok.TokenType)
	return e.normalize(tok), nil
}

func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// normalize converts the provider's relative expiry durations into absolute
// instants measured at the moment of receipt.
func (e *Exchanger) normalize(tok *oauth2.Token) model.UpstreamToken {
	receivedAt := e.now()

	result := model.UpstreamToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}

	if secs, ok := seconds(tok.Extra("expires_in")); ok {
		result.AccessTokenExpiresAt = receivedAt.Add(time.Duration(secs) * time.Second)
	} else if !tok.Expiry.IsZero() {
		result.AccessTokenExpiresAt = tok.Expiry
	}

	if secs, ok := seconds(tok.Extra("refresh_token_expires_in")); ok {
		result.RefreshTokenExpiresAt = receivedAt.Add(time.Duration(secs) * time.Second)
	}

	return result
}

// seconds interprets a raw token response field as a whole number of seconds.
// JSON bodies decode numbers as float64; form bodies yield int64 or string.
func seconds(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
