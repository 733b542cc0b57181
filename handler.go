package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mock-oauth/chaos"
	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/security"
	"github.com/giantswarm/mock-oauth/server"
)

const (
	defaultCORSMaxAge = 3600 // 1 hour default for preflight cache
	tokenTypeBearer   = "Bearer"

	maxTokenRequestBytes = 64 << 10
)

// Endpoint names used in metrics, spans and audit records.
const (
	endpointAuthorization = "authorization"
	endpointToken         = "token"
	endpointRefresh       = "refresh"
	endpointUserInfo      = "userinfo"
	endpointPreflight     = "preflight"
)

// Handler is a thin HTTP adapter for the OAuth Server.
// It handles HTTP requests and delegates to the Server for business logic.
type Handler struct {
	server      *server.Server
	faults      chaos.FaultInjector
	rateLimiter *security.RateLimiter
	logger      *slog.Logger
	tracer      trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// tokenRequestBody is the JSON form of a token request. Only string fields
// are accepted.
type tokenRequestBody struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
	RefreshToken string `json:"refresh_token"`
}

// NewHandler creates a new HTTP handler. A nil faults injector uses
// chaos.NewRandom(chaos.DefaultProbability).
func NewHandler(srv *server.Server, faults chaos.FaultInjector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if faults == nil {
		faults = chaos.NewRandom(chaos.DefaultProbability)
	}

	h := &Handler{
		server: srv,
		faults: faults,
		logger: logger,
	}

	// Initialize tracer if instrumentation is enabled
	if inst := srv.Instrumentation(); inst != nil {
		h.tracer = inst.Tracer("http")
	}

	return h
}

// SetRateLimiter enables per-IP rate limiting on the OAuth endpoints.
func (h *Handler) SetRateLimiter(rl *security.RateLimiter) {
	h.rateLimiter = rl
}

// Register mounts the OAuth endpoints and the health check on r.
func (h *Handler) Register(r chi.Router) {
	preflight := h.instrumented(endpointPreflight, h.ServePreflightRequest)

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", h.instrumented(endpointAuthorization, h.ServeAuthorization))
		r.Post("/token", h.instrumented(endpointToken, h.ServeToken))
		r.Post("/refresh", h.instrumented(endpointRefresh, h.ServeRefresh))
		r.Get("/userinfo", h.instrumented(endpointUserInfo, h.ServeUserInfo))

		for _, path := range []string{"/authorize", "/token", "/refresh", "/userinfo"} {
			r.Options(path, preflight)
		}
	})
	r.Get("/health", h.ServeHealth)
}

// ServeAuthorization handles GET /oauth/authorize. Valid requests and
// error=true are answered with a 302; everything else with a JSON error.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Set CORS headers for browser-based clients
	h.setCORSHeaders(w, r)

	clientIP := h.clientIP(r)
	if !h.checkRateLimit(w, r, endpointAuthorization, clientIP) {
		return
	}

	q := r.URL.Query()
	req := &server.AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		ScopeGiven:          q.Has("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Deny:                q.Get("error") == "true",
		ClientIP:            clientIP,
	}

	instrumentation.SetSpanAttributes(trace.SpanFromContext(ctx),
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrPKCEMethod, req.CodeChallengeMethod),
	)

	redirectURL, err := h.server.Authorize(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// ServeToken handles POST /oauth/token for the authorization_code and
// refresh_token grants.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	h.serveToken(w, r, endpointToken, "")
}

// ServeRefresh handles POST /oauth/refresh. It behaves like ServeToken with
// grant_type forced to refresh_token.
func (h *Handler) ServeRefresh(w http.ResponseWriter, r *http.Request) {
	h.serveToken(w, r, endpointRefresh, server.GrantTypeRefreshToken)
}

func (h *Handler) serveToken(w http.ResponseWriter, r *http.Request, endpoint, forceGrantType string) {
	ctx := r.Context()

	// Set CORS headers for browser-based clients
	h.setCORSHeaders(w, r)

	clientIP := h.clientIP(r)
	if !h.checkRateLimit(w, r, endpoint, clientIP) {
		return
	}

	// Drawn before the body is read: every request fails independently.
	if h.injectFault(ctx, w, endpoint, clientIP) {
		return
	}

	req, err := parseTokenRequest(w, r)
	if err != nil {
		h.logger.Debug("Failed to parse token request", "error", err, "ip", clientIP)
		h.writeError(w, errMalformedRequest())
		return
	}
	req.ClientIP = clientIP
	if forceGrantType != "" {
		req.GrantType = forceGrantType
	}

	instrumentation.AddOAuthAttributes(trace.SpanFromContext(ctx), req.ClientID, req.GrantType, "")

	token, scope, err := h.server.Token(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeTokenResponse(w, token, scope)
}

// ServeUserInfo handles GET /oauth/userinfo.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Set CORS headers for browser-based clients
	h.setCORSHeaders(w, r)

	clientIP := h.clientIP(r)
	if !h.checkRateLimit(w, r, endpointUserInfo, clientIP) {
		return
	}

	if h.injectFault(ctx, w, endpointUserInfo, clientIP) {
		return
	}

	accessToken, ok := bearerToken(r)
	if !ok {
		h.writeError(w, NewOAuthError(ErrorCodeInvalidRequest,
			"Missing or invalid Authorization header", http.StatusUnauthorized))
		return
	}

	profile, err := h.server.UserInfo(ctx, accessToken)
	if err != nil {
		h.writeError(w, err)
		return
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	h.writeJSON(w, http.StatusOK, profile)
}

// ServePreflightRequest handles CORS preflight (OPTIONS) requests.
// Required for non-simple requests (POST with JSON, custom headers, etc.).
func (h *Handler) ServePreflightRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodOptions {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.setCORSHeaders(w, r)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusNoContent)
}

// ServeHealth reports that the process is up.
func (h *Handler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// injectFault draws from the fault injector and, when it fires, writes a
// 500 server_error. It reports whether the request was answered.
func (h *Handler) injectFault(ctx context.Context, w http.ResponseWriter, endpoint, clientIP string) bool {
	if !h.faults.ShouldFail() {
		return false
	}

	h.logger.Warn("Injected fault", "endpoint", endpoint, "ip", clientIP)
	instrumentation.SetSpanAttributes(trace.SpanFromContext(ctx), attribute.Bool(instrumentation.AttrFault, true))
	h.server.Auditor.LogEvent(ctx, security.Event{
		Type:      security.EventFaultInjected,
		IPAddress: clientIP,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
	if inst := h.server.Instrumentation(); inst != nil {
		inst.Metrics().RecordFaultInjected(ctx, endpoint)
	}

	h.writeError(w, ErrServerError())
	return true
}

// checkRateLimit reports whether the request may proceed. Rejected
// requests are answered with 429.
func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, endpoint, clientIP string) bool {
	if h.rateLimiter == nil || h.rateLimiter.Allow(clientIP) {
		return true
	}

	h.logger.Warn("Rate limit exceeded", "endpoint", endpoint, "ip", clientIP)
	h.server.Auditor.LogRateLimitExceeded(r.Context(), clientIP, endpoint)
	if inst := h.server.Instrumentation(); inst != nil {
		inst.Metrics().RecordRateLimitExceeded(r.Context(), endpoint)
	}

	w.Header().Set("Retry-After", "1")
	h.writeError(w, ErrRateLimitExceeded())
	return false
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.TrustProxy, h.server.Config.TrustedProxyCount)
}

// parseTokenRequest reads a form or JSON token request. HTTP Basic
// credentials take precedence over client_id and client_secret in the body.
func parseTokenRequest(w http.ResponseWriter, r *http.Request) (*server.TokenRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("invalid content type: %w", err)
		}
	}

	var req *server.TokenRequest
	if mediaType == "application/json" {
		var body tokenRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		req = &server.TokenRequest{
			GrantType:    body.GrantType,
			ClientID:     body.ClientID,
			ClientSecret: body.ClientSecret,
			Code:         body.Code,
			RedirectURI:  body.RedirectURI,
			CodeVerifier: body.CodeVerifier,
			RefreshToken: body.RefreshToken,
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		req = &server.TokenRequest{
			GrantType:    r.PostFormValue("grant_type"),
			ClientID:     r.PostFormValue("client_id"),
			ClientSecret: r.PostFormValue("client_secret"),
			Code:         r.PostFormValue("code"),
			RedirectURI:  r.PostFormValue("redirect_uri"),
			CodeVerifier: r.PostFormValue("code_verifier"),
			RefreshToken: r.PostFormValue("refresh_token"),
		}
	}

	if id, secret, ok := parseBasicAuth(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	return req, nil
}

// parseBasicAuth returns form-decoded client credentials (RFC 6749 2.3.1).
func parseBasicAuth(r *http.Request) (clientID, secret string, ok bool) {
	user, pass, ok := r.BasicAuth()
	if !ok || user == "" {
		return "", "", false
	}
	if u, err := url.QueryUnescape(user); err == nil {
		user = u
	}
	if p, err := url.QueryUnescape(pass); err == nil {
		pass = p
	}
	return user, pass, true
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, tokenTypeBearer+" ") {
		return "", false
	}
	return strings.TrimPrefix(header, tokenTypeBearer+" "), true
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, token *oauth2.Token, scope string) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64(time.Until(token.Expiry).Seconds())
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = tokenTypeBearer
	}

	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: token.RefreshToken,
		Scope:        scope,
	})
}

// writeError renders err as an OAuth error body. Anything that is not an
// *OAuthError becomes a generic server_error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		h.logger.Error("Unexpected handler error", "error", err)
		oauthErr = ErrServerError()
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	if oauthErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", tokenTypeBearer)
	}

	h.writeJSON(w, oauthErr.Status, ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	cors := h.server.Config.CORS

	// Skip if not a browser CORS request (no Origin header)
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	if !cors.IsOriginAllowed(origin) {
		h.logger.Debug("CORS request from disallowed origin", "origin", origin)
		return
	}

	// Echo back the specific origin rather than using "*"
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")

	if cors.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	maxAge := cors.MaxAge
	if maxAge == 0 {
		maxAge = defaultCORSMaxAge
	}

	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", maxAge))
}

// instrumented wraps next with an oauth.http.<endpoint> span and records
// the request metrics.
func (h *Handler) instrumented(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		var span trace.Span
		ctx := r.Context()
		if h.tracer != nil {
			ctx, span = h.tracer.Start(ctx, "oauth.http."+endpoint)
			defer span.End()
			r = r.WithContext(ctx)

			instrumentation.AddRequestAttributes(span, security.GetRequestID(ctx), h.clientIP(r),
				h.server.Instrumentation().ShouldLogClientIPs())
			instrumentation.SetSpanAttributes(span,
				attribute.String(instrumentation.AttrEndpoint, endpoint),
				attribute.String(instrumentation.AttrHTTPMethod, r.Method),
			)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		instrumentation.SetSpanAttributes(span, attribute.Int(instrumentation.AttrHTTPStatusCode, status))
		if status >= http.StatusInternalServerError {
			instrumentation.SetSpanError(span, http.StatusText(status))
		}
		h.recordHTTPMetrics(ctx, endpoint, r.Method, status, startTime)
	}
}

// recordHTTPMetrics records HTTP request metrics (total count and duration)
func (h *Handler) recordHTTPMetrics(ctx context.Context, endpoint, method string, status int, startTime time.Time) {
	inst := h.server.Instrumentation()
	if inst == nil {
		return
	}
	inst.Metrics().RecordHTTPRequest(ctx, method, endpoint, status, time.Since(startTime))
}
