// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/giantswarm/mock-oauth/storage"
)

// MockClientStore is a mock implementation of ClientStore for testing
type MockClientStore struct {
	mu                       sync.Mutex
	clients                  map[string]*storage.Client
	GetClientFunc            func(ctx context.Context, clientID string) (*storage.Client, error)
	ValidateClientSecretFunc func(ctx context.Context, clientID, secret string) error
	CallCounts               map[string]int
}

// NewMockClientStore creates a client store holding clients. Secrets are
// rejected unless ValidateClientSecretFunc is replaced.
func NewMockClientStore(clients ...*storage.Client) *MockClientStore {
	m := &MockClientStore{
		clients:    make(map[string]*storage.Client),
		CallCounts: make(map[string]int),
	}
	for _, c := range clients {
		m.clients[c.ClientID] = c
	}

	m.GetClientFunc = func(_ context.Context, clientID string) (*storage.Client, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.clients[clientID]
		if !ok {
			return nil, storage.ErrClientNotFound
		}
		return c, nil
	}
	m.ValidateClientSecretFunc = func(_ context.Context, clientID, _ string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.clients[clientID]; !ok {
			return storage.ErrClientNotFound
		}
		return storage.ErrInvalidClientSecret
	}
	return m
}

func (m *MockClientStore) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[name]++
}

// GetClient calls GetClientFunc.
func (m *MockClientStore) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	m.count("GetClient")
	return m.GetClientFunc(ctx, clientID)
}

// ValidateClientSecret calls ValidateClientSecretFunc.
func (m *MockClientStore) ValidateClientSecret(ctx context.Context, clientID, secret string) error {
	m.count("ValidateClientSecret")
	return m.ValidateClientSecretFunc(ctx, clientID, secret)
}

// MockFlowStore is a mock implementation of AuthorizationCodeStore and
// TokenStore. Its default funcs keep records in maps without expiry
// handling.
type MockFlowStore struct {
	mu            sync.Mutex
	codes         map[string]*storage.AuthorizationCode
	accessTokens  map[string]*storage.AccessToken
	refreshTokens map[string]*storage.RefreshToken

	SaveAuthorizationCodeFunc    func(ctx context.Context, code *storage.AuthorizationCode) error
	ConsumeAuthorizationCodeFunc func(ctx context.Context, code string) (*storage.AuthorizationCode, error)
	SaveTokenPairFunc            func(ctx context.Context, access *storage.AccessToken, refresh *storage.RefreshToken) error
	GetAccessTokenFunc           func(ctx context.Context, token string) (*storage.AccessToken, error)
	DeleteAccessTokenFunc        func(ctx context.Context, token string) error
	RotateRefreshTokenFunc       func(ctx context.Context, old, clientID string, issue storage.IssueFunc) (*storage.AccessToken, *storage.RefreshToken, error)
	CallCounts                   map[string]int
}

// NewMockFlowStore creates a new mock flow store
func NewMockFlowStore() *MockFlowStore {
	m := &MockFlowStore{
		codes:         make(map[string]*storage.AuthorizationCode),
		accessTokens:  make(map[string]*storage.AccessToken),
		refreshTokens: make(map[string]*storage.RefreshToken),
		CallCounts:    make(map[string]int),
	}

	m.SaveAuthorizationCodeFunc = func(_ context.Context, code *storage.AuthorizationCode) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.codes[code.Code] = code
		return nil
	}
	m.ConsumeAuthorizationCodeFunc = func(_ context.Context, code string) (*storage.AuthorizationCode, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.codes[code]
		if !ok {
			return nil, storage.ErrAuthorizationCodeNotFound
		}
		delete(m.codes, code)
		return c, nil
	}
	m.SaveTokenPairFunc = func(_ context.Context, access *storage.AccessToken, refresh *storage.RefreshToken) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.accessTokens[access.Token] = access
		m.refreshTokens[refresh.Token] = refresh
		return nil
	}
	m.GetAccessTokenFunc = func(_ context.Context, token string) (*storage.AccessToken, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		t, ok := m.accessTokens[token]
		if !ok {
			return nil, storage.ErrTokenNotFound
		}
		return t, nil
	}
	m.DeleteAccessTokenFunc = func(_ context.Context, token string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.accessTokens, token)
		return nil
	}
	m.RotateRefreshTokenFunc = func(_ context.Context, old, clientID string, issue storage.IssueFunc) (*storage.AccessToken, *storage.RefreshToken, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		prev, ok := m.refreshTokens[old]
		if !ok {
			return nil, nil, storage.ErrTokenNotFound
		}
		if prev.ClientID != clientID {
			return nil, nil, storage.ErrClientMismatch
		}
		access, refresh := issue(prev)
		delete(m.refreshTokens, old)
		m.accessTokens[access.Token] = access
		m.refreshTokens[refresh.Token] = refresh
		return access, refresh, nil
	}
	return m
}

func (m *MockFlowStore) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[name]++
}

// Calls returns how many times the named method was called.
func (m *MockFlowStore) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[name]
}

// SaveAuthorizationCode calls SaveAuthorizationCodeFunc.
func (m *MockFlowStore) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	m.count("SaveAuthorizationCode")
	return m.SaveAuthorizationCodeFunc(ctx, code)
}

// ConsumeAuthorizationCode calls ConsumeAuthorizationCodeFunc.
func (m *MockFlowStore) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	m.count("ConsumeAuthorizationCode")
	return m.ConsumeAuthorizationCodeFunc(ctx, code)
}

// SaveTokenPair calls SaveTokenPairFunc.
func (m *MockFlowStore) SaveTokenPair(ctx context.Context, access *storage.AccessToken, refresh *storage.RefreshToken) error {
	m.count("SaveTokenPair")
	return m.SaveTokenPairFunc(ctx, access, refresh)
}

// GetAccessToken calls GetAccessTokenFunc.
func (m *MockFlowStore) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	m.count("GetAccessToken")
	return m.GetAccessTokenFunc(ctx, token)
}

// DeleteAccessToken calls DeleteAccessTokenFunc.
func (m *MockFlowStore) DeleteAccessToken(ctx context.Context, token string) error {
	m.count("DeleteAccessToken")
	return m.DeleteAccessTokenFunc(ctx, token)
}

// RotateRefreshToken calls RotateRefreshTokenFunc.
func (m *MockFlowStore) RotateRefreshToken(ctx context.Context, old, clientID string, issue storage.IssueFunc) (*storage.AccessToken, *storage.RefreshToken, error) {
	m.count("RotateRefreshToken")
	return m.RotateRefreshTokenFunc(ctx, old, clientID, issue)
}

var (
	_ storage.ClientStore            = (*MockClientStore)(nil)
	_ storage.AuthorizationCodeStore = (*MockFlowStore)(nil)
	_ storage.TokenStore             = (*MockFlowStore)(nil)
)
