package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/internal/util"
	"github.com/giantswarm/mock-oauth/security"
	"github.com/giantswarm/mock-oauth/storage"
)

// DefaultCleanupInterval is how often expired records are swept.
const DefaultCleanupInterval = time.Minute

// Store is an in-memory implementation of AuthorizationCodeStore and
// TokenStore.
type Store struct {
	mu sync.RWMutex

	codes         map[string]*storage.AuthorizationCode
	accessTokens  map[string]*storage.AccessToken
	refreshTokens map[string]*storage.RefreshToken

	now func() time.Time

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Sizes for the gauge callbacks, read without the lock.
	codesCount         atomic.Int64
	accessTokensCount  atomic.Int64
	refreshTokensCount atomic.Int64

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

var (
	_ storage.AuthorizationCodeStore = (*Store)(nil)
	_ storage.TokenStore             = (*Store)(nil)
)

// New creates a store that sweeps expired records every minute.
func New() *Store {
	return NewWithInterval(DefaultCleanupInterval)
}

// NewWithInterval creates a store with a custom sweep interval. A zero or
// negative interval uses DefaultCleanupInterval.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	s := &Store{
		codes:           make(map[string]*storage.AuthorizationCode),
		accessTokens:    make(map[string]*storage.AccessToken),
		refreshTokens:   make(map[string]*storage.RefreshToken),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetClock replaces the time source used by the sweeper.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetInstrumentation enables spans and metrics for store operations and
// registers the size gauges.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.updateCountsLocked()
	s.mu.Unlock()

	if inst == nil {
		return
	}
	err := inst.RegisterStorageSizeCallbacks(
		s.codesCount.Load,
		s.accessTokensCount.Load,
		s.refreshTokensCount.Load,
	)
	if err != nil {
		s.logger.Warn("Failed to register storage size callbacks", "error", err)
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// ============================================================
// AuthorizationCodeStore Implementation
// ============================================================

// SaveAuthorizationCode stores a copy of code.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()
	start := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "save_authorization_code", err, start) }()

	if code == nil || code.Code == "" {
		return fmt.Errorf("%w: authorization code", storage.ErrInvalidRecord)
	}

	c := *code

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.Code] = &c
	s.codesCount.Store(int64(len(s.codes)))

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.LogPrefix(c.Code),
		"client_id", c.ClientID)
	return nil
}

// ConsumeAuthorizationCode removes and returns the code in one critical
// section, so only one caller can ever obtain a given code.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (_ *storage.AuthorizationCode, err error) {
	ctx, span := s.startStorageSpan(ctx, "consume_authorization_code")
	defer span.End()
	start := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "consume_authorization_code", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	if !ok {
		return nil, storage.ErrAuthorizationCodeNotFound
	}
	delete(s.codes, code)
	s.codesCount.Store(int64(len(s.codes)))

	s.logger.Debug("Consumed authorization code",
		"code_prefix", util.LogPrefix(code))
	return c, nil
}

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveTokenPair stores copies of both tokens.
func (s *Store) SaveTokenPair(ctx context.Context, access *storage.AccessToken, refresh *storage.RefreshToken) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_token_pair")
	defer span.End()
	start := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "save_token_pair", err, start) }()

	if err := validatePair(access, refresh); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.storePairLocked(access, refresh)
	return nil
}

// GetAccessToken returns a copy of the access token record.
func (s *Store) GetAccessToken(ctx context.Context, token string) (_ *storage.AccessToken, err error) {
	ctx, span := s.startStorageSpan(ctx, "get_access_token")
	defer span.End()
	start := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "get_access_token", err, start) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.accessTokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

// DeleteAccessToken removes an access token.
func (s *Store) DeleteAccessToken(ctx context.Context, token string) (err error) {
	ctx, span := s.startStorageSpan(ctx, "delete_access_token")
	defer span.End()
	start := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "delete_access_token", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
	s.accessTokensCount.Store(int64(len(s.accessTokens)))
	return nil
}

// RotateRefreshToken validates old against clientID, then removes it and
// stores the pair built by issue, all under the write lock.
func (s *Store) RotateRefreshToken(ctx context.Context, old, clientID string, issue storage.IssueFunc) (_ *storage.AccessToken, _ *storage.RefreshToken, err error) {
	ctx, span := s.startStorageSpan(ctx, "rotate_refresh_token")
	defer span.End()
	start := time.Now()
	defer func() { s.recordStorageOperation(ctx, span, "rotate_refresh_token", err, start) }()

	if issue == nil {
		return nil, nil, fmt.Errorf("%w: nil issue func", storage.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.refreshTokens[old]
	if !ok {
		return nil, nil, storage.ErrTokenNotFound
	}
	if prev.ClientID != clientID {
		return nil, nil, storage.ErrClientMismatch
	}

	prevCopy := *prev
	access, refresh := issue(&prevCopy)
	if err := validatePair(access, refresh); err != nil {
		return nil, nil, err
	}

	delete(s.refreshTokens, old)
	s.storePairLocked(access, refresh)

	s.logger.Debug("Rotated refresh token", "client_id", clientID)

	a, r := *access, *refresh
	return &a, &r, nil
}

// Len returns the number of codes, access tokens and refresh tokens held.
func (s *Store) Len() (codes, accessTokens, refreshTokens int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes), len(s.accessTokens), len(s.refreshTokens)
}

func validatePair(access *storage.AccessToken, refresh *storage.RefreshToken) error {
	if access == nil || access.Token == "" {
		return fmt.Errorf("%w: access token", storage.ErrInvalidRecord)
	}
	if refresh == nil || refresh.Token == "" {
		return fmt.Errorf("%w: refresh token", storage.ErrInvalidRecord)
	}
	return nil
}

// storePairLocked must be called with s.mu held for writing.
func (s *Store) storePairLocked(access *storage.AccessToken, refresh *storage.RefreshToken) {
	a, r := *access, *refresh
	s.accessTokens[a.Token] = &a
	s.refreshTokens[r.Token] = &r
	s.accessTokensCount.Store(int64(len(s.accessTokens)))
	s.refreshTokensCount.Store(int64(len(s.refreshTokens)))
}

func (s *Store) updateCountsLocked() {
	s.codesCount.Store(int64(len(s.codes)))
	s.accessTokensCount.Store(int64(len(s.accessTokens)))
	s.refreshTokensCount.Store(int64(len(s.refreshTokens)))
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Cleanup removes expired authorization codes and access tokens and returns
// how many records were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cleaned := 0

	for k, c := range s.codes {
		if security.IsExpired(now, c.ExpiresAt) {
			delete(s.codes, k)
			cleaned++
		}
	}
	for k, t := range s.accessTokens {
		if security.IsExpired(now, t.ExpiresAt) {
			delete(s.accessTokens, k)
			cleaned++
		}
	}
	s.updateCountsLocked()

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired records", "count", cleaned)
	}
	return cleaned
}

// ============================================================
// Instrumentation Helpers
// ============================================================

func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		// non-recording span; never end the caller's span
		return ctx, trace.SpanFromContext(context.Background())
	}
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(attribute.String(instrumentation.AttrOperation, operation)))
}

func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
		instrumentation.RecordError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, time.Since(startTime))
}
