package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/runpanel/internal/application"
	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// credentialCookie is the name of the cookie carrying the signed session credential.
const credentialCookie = "id_token"

// loginFailedRedirect is where a failed code exchange sends the browser.
const loginFailedRedirect = "/login?error=login_failed"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sessions   *application.SessionService
	aggregator *application.AggregationService
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	sessions *application.SessionService,
	aggregator *application.AggregationService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions:   sessions,
		aggregator: aggregator,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/login", allowMethod(http.MethodGet, h.Login))
	mux.Handle("/api/login/status", allowMethod(http.MethodGet, h.LoginStatus))
	mux.Handle("/api/logout", allowMethod(http.MethodPost, h.Logout))
	mux.Handle("/api/workflows", allowMethod(http.MethodGet, h.Workflows))
	mux.Handle("/api/pullrequests", allowMethod(http.MethodGet, h.PullRequests))
	mux.Handle("/api/health", allowMethod(http.MethodGet, h.Health))
	mux.Handle("/metrics", allowMethod(http.MethodGet, promhttp.Handler().ServeHTTP))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Login drives the OAuth flow. It forwards provider errors to the frontend,
// completes a login when GitHub redirects back with a code, renews the cookie
// of an existing session, and otherwise sends the browser to GitHub.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warn("oauth provider returned error", "error", providerErr)
		http.Redirect(w, r, "/login?error="+url.QueryEscape(providerErr), http.StatusTemporaryRedirect)
		return
	}

	if code := query.Get("code"); code != "" {
		session, err := h.sessions.Login(r.Context(), code)
		if err != nil {
			if !isLoginFailure(err) {
				h.internalError(w, "login failed", err)
				return
			}
			h.logger.Warn("login rejected", "error", err)
			http.Redirect(w, r, loginFailedRedirect, http.StatusTemporaryRedirect)
			return
		}
		h.startSession(w, r, session)
		return
	}

	if credential := credentialFrom(r); credential != "" {
		session, err := h.sessions.Resume(r.Context(), credential)
		switch {
		case err == nil:
			h.startSession(w, r, session)
			return
		case !isCredentialFailure(err):
			h.internalError(w, "resume session failed", err)
			return
		}
		h.logger.Debug("stale session credential, restarting login", "error", err)
	}

	http.Redirect(w, r, h.sessions.AuthorizeURL(callbackURL(r)), http.StatusTemporaryRedirect)
}

// LoginStatus returns the identity of the current session.
func (h *Handler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{User: session.Identity})
}

// Workflows returns the aggregated recent run history of the current user.
func (h *Handler) Workflows(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	summaries, err := h.aggregator.Aggregate(r.Context(), session.Token)
	if err != nil {
		h.internalError(w, "failed to aggregate workflows", err, "user", session.Identity)
		return
	}

	resp := make([]WorkflowResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toWorkflowResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// PullRequests is a placeholder endpoint.
func (h *Handler) PullRequests(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello World"))
}

// Logout deletes the stored session, if any, and clears the credential cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if credential := credentialFrom(r); credential != "" {
		err := h.sessions.Logout(r.Context(), credential)
		if err != nil && !isCredentialFailure(err) {
			h.internalError(w, "logout failed", err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// requireSession resolves the session from the credential cookie. On failure
// it writes 401 for credential problems or 500 otherwise, and returns false.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	credential := credentialFrom(r)
	if credential == "" {
		writeStatus(w, http.StatusUnauthorized)
		return nil, false
	}

	session, err := h.sessions.Resume(r.Context(), credential)
	if err != nil {
		if isCredentialFailure(err) {
			h.logger.Debug("session rejected", "path", r.URL.Path, "error", err)
			writeStatus(w, http.StatusUnauthorized)
			return nil, false
		}
		h.internalError(w, "resume session failed", err)
		return nil, false
	}

	return session, true
}

// startSession issues a fresh credential for session, sets it as a cookie
// expiring with the upstream access token, and redirects to the frontend root.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, session *model.Session) {
	credential, err := h.sessions.IssueCredential(session.Identity)
	if err != nil {
		h.internalError(w, "issue credential failed", err, "user", session.Identity)
		return
	}

	cookie := &http.Cookie{
		Name:     credentialCookie,
		Value:    credential,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	// A non-expiring upstream token yields a browser-session cookie.
	if expiresAt := session.Token.AccessTokenExpiresAt; !expiresAt.IsZero() {
		cookie.Expires = expiresAt
	}
	http.SetCookie(w, cookie)

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error, args ...any) {
	h.logger.Error(msg, append([]any{"error", err}, args...)...)
	writeStatus(w, http.StatusInternalServerError)
}

func credentialFrom(r *http.Request) string {
	cookie, err := r.Cookie(credentialCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// callbackURL rebuilds the public URL of the current request from the
// forwarded headers set by the fronting proxy, falling back to the request
// itself when they are absent.
func callbackURL(r *http.Request) string {
	proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}

	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}

	return proto + "://" + host + r.URL.Path
}

// firstHeaderValue returns the first entry of a comma-separated header added
// to by a proxy chain.
func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// isCredentialFailure reports whether err means "no usable session" rather
// than a server fault.
func isCredentialFailure(err error) bool {
	return errors.Is(err, driven.ErrInvalidCredential) ||
		errors.Is(err, application.ErrSessionNotFound) ||
		errors.Is(err, driven.ErrUpstreamAuth)
}

// isLoginFailure reports whether a code login failed because of the provider
// rather than a server fault.
func isLoginFailure(err error) bool {
	return errors.Is(err, driven.ErrUpstreamAuth) ||
		errors.Is(err, application.ErrInvalidOAuthGrant) ||
		errors.Is(err, driven.ErrUpstreamAPI)
}
