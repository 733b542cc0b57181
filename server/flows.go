package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/internal/util"
	"github.com/giantswarm/mock-oauth/security"
	"github.com/giantswarm/mock-oauth/storage"
)

// Grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// ResponseTypeCode is the only supported response_type.
const ResponseTypeCode = "code"

// AuthorizationRequest holds the parameters of GET /oauth/authorize.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// ScopeGiven reports that the scope parameter was present. Only an
	// absent scope falls back to the configured default; "scope=" grants "".
	ScopeGiven bool

	// Deny simulates the user refusing consent (error=true).
	Deny bool

	ClientIP string
}

// TokenRequest holds the parameters of POST /oauth/token.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string

	ClientIP string
}

// Authorize validates an authorization request and returns the URL to
// redirect the user agent to. A returned *Error must be rendered as JSON and
// never as a redirect.
func (s *Server) Authorize(ctx context.Context, req *AuthorizationRequest) (string, error) {
	ctx, span := s.startSpan(ctx, "authorize")
	defer span.End()
	instrumentation.AddOAuthAttributes(span, req.ClientID, "", req.Scope)

	if req.Deny {
		return s.denyAuthorization(ctx, span, req)
	}

	if req.ClientID == "" || req.RedirectURI == "" || req.ResponseType == "" {
		return "", s.spanError(span, ErrInvalidRequest("Missing required parameters"))
	}

	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return "", s.spanError(span, NewError(ErrorCodeInvalidClient, "Unknown client", http.StatusBadRequest))
		}
		return "", s.internalError(ctx, span, "Failed to look up client", err)
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		s.Logger.Warn("Rejected unregistered redirect_uri",
			"client_id", req.ClientID,
			"redirect_uri", util.SafeTruncate(req.RedirectURI, 256))
		s.Auditor.LogRejected(ctx, security.EventInvalidRedirect, req.ClientID, req.ClientIP, "redirect_uri_not_registered")
		return "", s.spanError(span, ErrInvalidRequest("Invalid redirect URI"))
	}

	if req.ResponseType != ResponseTypeCode {
		return "", s.spanError(span, ErrUnsupportedResponseType("Only authorization code flow is supported"))
	}

	scope := req.Scope
	if scope == "" && !req.ScopeGiven {
		scope = s.Config.DefaultScope
	}

	now := s.now()
	code := &storage.AuthorizationCode{
		Code:        security.GenerateToken(""),
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       scope,
		UserID:      s.Config.DefaultUserID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
	}
	// The challenge is stored as given; its shape is checked at exchange.
	if req.CodeChallenge != "" {
		code.CodeChallenge = req.CodeChallenge
		code.CodeChallengeMethod = req.CodeChallengeMethod
		if code.CodeChallengeMethod == "" {
			code.CodeChallengeMethod = PKCEMethodPlain
		}
	}

	if err := s.codeStore.SaveAuthorizationCode(ctx, code); err != nil {
		return "", s.internalError(ctx, span, "Failed to save authorization code", err)
	}

	redirect, err := buildRedirect(req.RedirectURI, url.Values{"code": {code.Code}}, req.State)
	if err != nil {
		return "", s.internalError(ctx, span, "Failed to build redirect", err)
	}

	s.Logger.Info("Issued authorization code",
		"client_id", req.ClientID,
		"code_prefix", util.LogPrefix(code.Code),
		"pkce_method", code.CodeChallengeMethod)
	s.Auditor.LogAuthorizationCodeIssued(ctx, req.ClientID, req.ClientIP, scope, code.CodeChallenge != "")
	s.metrics.RecordAuthorizationCodeIssued(ctx, req.ClientID, code.CodeChallengeMethod)
	instrumentation.SetSpanSuccess(span)

	return redirect, nil
}

// denyAuthorization builds the access_denied redirect. It skips client and
// redirect URI validation.
func (s *Server) denyAuthorization(ctx context.Context, span trace.Span, req *AuthorizationRequest) (string, error) {
	if req.RedirectURI == "" {
		return "", s.spanError(span, ErrInvalidRequest("Missing required parameters"))
	}

	redirect, err := buildRedirect(req.RedirectURI, url.Values{
		"error":             {ErrorCodeAccessDenied},
		"error_description": {"User denied access"},
	}, req.State)
	if err != nil {
		return "", s.spanError(span, ErrInvalidRequest("Invalid redirect URI"))
	}

	s.Logger.Info("Authorization denied", "client_id", req.ClientID)
	s.Auditor.LogRejected(ctx, security.EventAuthorizationDenied, req.ClientID, req.ClientIP, "user_denied")
	s.metrics.RecordAuthorizationDenied(ctx, req.ClientID)
	instrumentation.SetSpanSuccess(span)
	return redirect, nil
}

// buildRedirect appends params and the optional state to redirectURI,
// keeping any query it already has.
func buildRedirect(redirectURI string, params url.Values, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Token runs the token endpoint: required fields, client authentication and
// the grant. It returns the minted token and its scope.
func (s *Server) Token(ctx context.Context, req *TokenRequest) (*oauth2.Token, string, error) {
	ctx, span := s.startSpan(ctx, "token")
	defer span.End()
	instrumentation.AddOAuthAttributes(span, req.ClientID, req.GrantType, "")

	token, scope, err := s.token(ctx, req)
	if err != nil {
		var oauthErr *Error
		if errors.As(err, &oauthErr) {
			s.metrics.RecordGrantRejected(ctx, req.GrantType, oauthErr.Code)
			instrumentation.AddOAuthErrorAttributes(span, oauthErr.Code)
		}
		return nil, "", err
	}
	instrumentation.SetSpanSuccess(span)
	return token, scope, nil
}

func (s *Server) token(ctx context.Context, req *TokenRequest) (*oauth2.Token, string, error) {
	if req.GrantType == "" || req.ClientID == "" {
		return nil, "", ErrInvalidRequest("Missing required parameters")
	}

	client, err := s.AuthenticateClient(ctx, req.ClientID, req.ClientSecret, req.ClientIP)
	if err != nil {
		return nil, "", err
	}

	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		if req.Code == "" || req.RedirectURI == "" {
			return nil, "", ErrInvalidRequest("Missing code or redirect_uri")
		}
		return s.ExchangeAuthorizationCode(ctx, client, req.Code, req.RedirectURI, req.CodeVerifier, req.ClientIP)
	case GrantTypeRefreshToken:
		if req.RefreshToken == "" {
			return nil, "", ErrInvalidRequest("Missing refresh_token")
		}
		return s.RefreshAccessToken(ctx, client, req.RefreshToken, req.ClientIP)
	default:
		return nil, "", ErrUnsupportedGrantType("Only authorization_code and refresh_token grants are supported")
	}
}

// AuthenticateClient resolves clientID and, for confidential clients,
// checks secret. Public clients are never asked for a secret.
func (s *Server) AuthenticateClient(ctx context.Context, clientID, secret, clientIP string) (*storage.Client, error) {
	client, err := s.clientStore.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			s.Auditor.LogAuthFailure(ctx, clientID, clientIP, "unknown_client")
			return nil, ErrInvalidClient("Unknown client")
		}
		return nil, s.internalError(ctx, trace.SpanFromContext(ctx), "Failed to look up client", err)
	}

	if client.IsPublic() {
		return client, nil
	}

	if err := s.clientStore.ValidateClientSecret(ctx, clientID, secret); err != nil {
		s.Logger.Debug("Client authentication failed", "client_id", clientID, "error", err)
		s.Auditor.LogAuthFailure(ctx, clientID, clientIP, "invalid_client_secret")
		return nil, ErrInvalidClient("Invalid client credentials")
	}
	return client, nil
}

// ExchangeAuthorizationCode redeems code for a token pair. The code is
// removed from the store before any check runs, so it is gone whether the
// exchange succeeds or not.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, client *storage.Client, code, redirectURI, codeVerifier, clientIP string) (*oauth2.Token, string, error) {
	authCode, err := s.codeStore.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrAuthorizationCodeNotFound) {
			s.rejectCode(ctx, client.ClientID, clientIP, "not_found", code)
			return nil, "", ErrInvalidGrant("Invalid authorization code")
		}
		return nil, "", s.internalError(ctx, trace.SpanFromContext(ctx), "Failed to consume authorization code", err)
	}

	if security.IsExpired(s.now(), authCode.ExpiresAt) {
		s.rejectCode(ctx, client.ClientID, clientIP, "expired", code)
		return nil, "", ErrInvalidGrant("Authorization code expired")
	}

	if authCode.ClientID != client.ClientID || authCode.RedirectURI != redirectURI {
		s.rejectCode(ctx, client.ClientID, clientIP, "parameter_mismatch", code)
		return nil, "", ErrInvalidGrant("Invalid code parameters")
	}

	if authCode.CodeChallenge == "" {
		if client.IsPublic() {
			s.Auditor.LogRejected(ctx, security.EventPKCERequiredForPublicClient, client.ClientID, clientIP, "no_code_challenge")
			return nil, "", ErrInvalidRequest("PKCE is required for public clients")
		}
	} else {
		if codeVerifier == "" {
			s.Auditor.LogRejected(ctx, security.EventPKCEValidationFailed, client.ClientID, clientIP, "missing_code_verifier")
			return nil, "", ErrInvalidRequest("PKCE code_verifier required")
		}
		if !verifyPKCE(authCode.CodeChallenge, authCode.CodeChallengeMethod, codeVerifier) {
			s.Logger.Debug("PKCE verification failed",
				"client_id", client.ClientID,
				"method", authCode.CodeChallengeMethod)
			s.Auditor.LogRejected(ctx, security.EventPKCEValidationFailed, client.ClientID, clientIP, "verifier_mismatch")
			s.metrics.RecordPKCEValidationFailed(ctx, authCode.CodeChallengeMethod)
			return nil, "", ErrInvalidGrant("Invalid PKCE code_verifier")
		}
	}

	access, refresh := s.newTokenPair(client.ClientID, authCode.Scope, authCode.UserID)
	if err := s.tokenStore.SaveTokenPair(ctx, access, refresh); err != nil {
		return nil, "", s.internalError(ctx, trace.SpanFromContext(ctx), "Failed to save tokens", err)
	}

	s.Logger.Info("Exchanged authorization code",
		"client_id", client.ClientID,
		"access_token_prefix", util.TokenLogPrefix(access.Token, s.Config.AccessTokenPrefix))
	s.Auditor.LogTokenIssued(ctx, authCode.UserID, client.ClientID, clientIP, authCode.Scope)
	s.metrics.RecordCodeExchange(ctx, client.ClientID, authCode.CodeChallengeMethod)

	return s.toOAuth2Token(access, refresh), authCode.Scope, nil
}

func (s *Server) rejectCode(ctx context.Context, clientID, clientIP, reason, code string) {
	s.Logger.Debug("Authorization code rejected",
		"reason", reason,
		"client_id", clientID,
		"code_prefix", util.LogPrefix(code))
	s.Auditor.LogRejected(ctx, security.EventAuthorizationCodeRejected, clientID, clientIP, reason)
}

// RefreshAccessToken rotates refreshToken into a new pair carrying the same
// scope and subject. The old refresh token stops working; access tokens
// issued earlier stay valid until they expire.
func (s *Server) RefreshAccessToken(ctx context.Context, client *storage.Client, refreshToken, clientIP string) (*oauth2.Token, string, error) {
	access, refresh, err := s.tokenStore.RotateRefreshToken(ctx, refreshToken, client.ClientID,
		func(prev *storage.RefreshToken) (*storage.AccessToken, *storage.RefreshToken) {
			return s.newTokenPair(prev.ClientID, prev.Scope, prev.UserID)
		})
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) || errors.Is(err, storage.ErrClientMismatch) {
			s.Logger.Debug("Refresh token rejected",
				"client_id", client.ClientID,
				"token_prefix", util.TokenLogPrefix(refreshToken, s.Config.RefreshTokenPrefix),
				"error", err)
			s.Auditor.LogRejected(ctx, security.EventRefreshTokenRejected, client.ClientID, clientIP, err.Error())
			return nil, "", ErrInvalidGrant("Invalid refresh token")
		}
		return nil, "", s.internalError(ctx, trace.SpanFromContext(ctx), "Failed to rotate refresh token", err)
	}

	s.Logger.Info("Rotated refresh token", "client_id", client.ClientID)
	s.Auditor.LogTokenRefreshed(ctx, refresh.UserID, client.ClientID, clientIP)
	s.metrics.RecordTokenRefresh(ctx, client.ClientID)

	return s.toOAuth2Token(access, refresh), refresh.Scope, nil
}

// UserInfo returns the profile for a valid access token. Expired tokens are
// deleted on sight.
func (s *Server) UserInfo(ctx context.Context, accessToken string) (*UserProfile, error) {
	ctx, span := s.startSpan(ctx, "userinfo")
	defer span.End()

	record, err := s.tokenStore.GetAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			s.Auditor.LogRejected(ctx, security.EventAccessTokenRejected, "", "", "not_found")
			return nil, s.spanError(span, ErrInvalidToken("Invalid access token"))
		}
		return nil, s.internalError(ctx, span, "Failed to look up access token", err)
	}

	if security.IsExpired(s.now(), record.ExpiresAt) {
		if err := s.tokenStore.DeleteAccessToken(ctx, accessToken); err != nil {
			s.Logger.Warn("Failed to delete expired access token", "error", err)
		}
		s.Auditor.LogRejected(ctx, security.EventAccessTokenRejected, record.ClientID, "", "expired")
		return nil, s.spanError(span, ErrInvalidToken("Access token expired"))
	}

	instrumentation.AddOAuthAttributes(span, record.ClientID, "", record.Scope)
	instrumentation.SetSpanSuccess(span)
	s.metrics.RecordUserInfoServed(ctx)

	profile := *s.Config.Profile
	return &profile, nil
}

func (s *Server) newTokenPair(clientID, scope, userID string) (*storage.AccessToken, *storage.RefreshToken) {
	now := s.now()
	access := &storage.AccessToken{
		Token:     security.GenerateToken(s.Config.AccessTokenPrefix),
		ClientID:  clientID,
		Scope:     scope,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.Config.AccessTokenTTL) * time.Second),
	}
	refresh := &storage.RefreshToken{
		Token:     security.GenerateToken(s.Config.RefreshTokenPrefix),
		ClientID:  clientID,
		Scope:     scope,
		UserID:    userID,
		CreatedAt: now,
	}
	return access, refresh
}

func (s *Server) toOAuth2Token(access *storage.AccessToken, refresh *storage.RefreshToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access.Token,
		TokenType:    "Bearer",
		RefreshToken: refresh.Token,
		Expiry:       access.ExpiresAt,
		ExpiresIn:    s.Config.AccessTokenTTL,
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

func (s *Server) startSpan(ctx context.Context, flow string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	ctx, span := s.tracer.Start(ctx, "oauth.server."+flow)
	instrumentation.AddRequestAttributes(span, security.GetRequestID(ctx), "", false)
	return ctx, span
}

func (s *Server) spanError(span trace.Span, err *Error) *Error {
	instrumentation.AddOAuthErrorAttributes(span, err.Code)
	return err
}

// internalError logs err and returns the generic server_error.
func (s *Server) internalError(ctx context.Context, span trace.Span, msg string, err error) *Error {
	s.Logger.ErrorContext(ctx, msg, "error", err)
	instrumentation.RecordError(span, err)
	return ErrServerError()
}
