// Package registry holds the static set of OAuth clients the server accepts.
//
// The registry is built once at startup from DefaultClients or a YAML file
// and never changes afterwards. Confidential client secrets are kept only as
// bcrypt hashes.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/mock-oauth/storage"
)

// Default client registration.
const (
	DefaultClientID   = "mock-client-id"
	DefaultClientName = "Mock OAuth Client"
)

// DefaultRedirectURIs are the callbacks registered for DefaultClientID.
var DefaultRedirectURIs = []string{
	"http://localhost:5173/callback",
	"http://localhost:5173/auth/callback",
}

// dummyHash is compared against when the client is unknown so that unknown
// and known clients take about the same time to reject.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6Z5eQmTzqYTrTbsNSP2pPtK")

// ClientConfig is one client entry in configuration.
type ClientConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"` // "public" (default) or "confidential"
	Secret       string   `yaml:"secret,omitempty"`
	SecretHash   string   `yaml:"secret_hash,omitempty"`
	RedirectURIs []string `yaml:"redirect_uris"`
}

// Validate checks that the entry can be registered.
func (c ClientConfig) Validate() error {
	if c.ID == "" {
		return errors.New("client id is required")
	}
	if len(c.RedirectURIs) == 0 {
		return fmt.Errorf("client %q: at least one redirect_uri is required", c.ID)
	}
	for _, uri := range c.RedirectURIs {
		if strings.TrimSpace(uri) == "" {
			return fmt.Errorf("client %q: empty redirect_uri", c.ID)
		}
	}
	switch c.Type {
	case "", storage.ClientTypePublic:
		if c.Secret != "" || c.SecretHash != "" {
			return fmt.Errorf("client %q: public clients cannot have a secret", c.ID)
		}
	case storage.ClientTypeConfidential:
		if c.Secret == "" && c.SecretHash == "" {
			return fmt.Errorf("client %q: confidential clients require secret or secret_hash", c.ID)
		}
		if c.Secret != "" && c.SecretHash != "" {
			return fmt.Errorf("client %q: set only one of secret and secret_hash", c.ID)
		}
	default:
		return fmt.Errorf("client %q: unknown type %q", c.ID, c.Type)
	}
	return nil
}

// DefaultClients returns the single built-in public client.
func DefaultClients() []ClientConfig {
	return []ClientConfig{{
		ID:           DefaultClientID,
		Name:         DefaultClientName,
		Type:         storage.ClientTypePublic,
		RedirectURIs: append([]string(nil), DefaultRedirectURIs...),
	}}
}

// Registry is an immutable client registry. It implements
// storage.ClientStore.
type Registry struct {
	clients map[string]*storage.Client
	logger  *slog.Logger
}

var _ storage.ClientStore = (*Registry)(nil)

// New builds a registry from configs. Plaintext secrets are hashed with
// bcrypt.DefaultCost.
func New(configs []ClientConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		clients: make(map[string]*storage.Client, len(configs)),
		logger:  logger,
	}

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.clients[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate client id %q", cfg.ID)
		}

		client := &storage.Client{
			ClientID:     cfg.ID,
			ClientName:   cfg.Name,
			ClientType:   storage.ClientTypePublic,
			RedirectURIs: append([]string(nil), cfg.RedirectURIs...),
		}
		if cfg.Type == storage.ClientTypeConfidential {
			client.ClientType = storage.ClientTypeConfidential
			hash := cfg.SecretHash
			if cfg.Secret != "" {
				b, err := bcrypt.GenerateFromPassword([]byte(cfg.Secret), bcrypt.DefaultCost)
				if err != nil {
					return nil, fmt.Errorf("failed to hash secret for client %q: %w", cfg.ID, err)
				}
				hash = string(b)
			} else if _, err := bcrypt.Cost([]byte(hash)); err != nil {
				return nil, fmt.Errorf("client %q: invalid secret_hash: %w", cfg.ID, err)
			}
			client.ClientSecretHash = hash
		}
		r.clients[cfg.ID] = client
	}

	logger.Info("Client registry loaded", "clients", len(r.clients))
	return r, nil
}

// NewDefault returns a registry holding only DefaultClients.
func NewDefault(logger *slog.Logger) *Registry {
	r, err := New(DefaultClients(), logger)
	if err != nil {
		// DefaultClients is static and always valid.
		panic(err)
	}
	return r
}

type clientsFile struct {
	Clients []ClientConfig `yaml:"clients"`
}

// LoadFile reads a YAML file with a top-level "clients" list.
func LoadFile(path string, logger *slog.Logger) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read client registry: %w", err)
	}

	var f clientsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse client registry: %w", err)
	}
	return New(f.Clients, logger)
}

// Lookup returns the client registered as clientID.
func (r *Registry) Lookup(clientID string) (*storage.Client, bool) {
	c, ok := r.clients[clientID]
	if !ok {
		return nil, false
	}
	cp := *c
	cp.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	return &cp, true
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.clients)
}

// GetClient implements storage.ClientStore.
func (r *Registry) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	c, ok := r.Lookup(clientID)
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	return c, nil
}

// ValidateClientSecret implements storage.ClientStore. Public clients always
// fail; they have no secret to match.
func (r *Registry) ValidateClientSecret(_ context.Context, clientID, secret string) error {
	c, ok := r.clients[clientID]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return storage.ErrClientNotFound
	}
	if c.ClientSecretHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return storage.ErrInvalidClientSecret
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.ClientSecretHash), []byte(secret)); err != nil {
		return storage.ErrInvalidClientSecret
	}
	return nil
}
