package server

import (
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/security"
	"github.com/giantswarm/mock-oauth/storage"
)

// Server implements the authorization code, refresh and userinfo logic on
// top of the client, code and token stores. It has no HTTP knowledge.
type Server struct {
	clientStore storage.ClientStore
	codeStore   storage.AuthorizationCodeStore
	tokenStore  storage.TokenStore

	Auditor *security.Auditor
	Logger  *slog.Logger
	Config  *Config

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	metrics         *instrumentation.Metrics

	now func() time.Time
}

// New creates a new OAuth server
func New(
	clientStore storage.ClientStore,
	codeStore storage.AuthorizationCodeStore,
	tokenStore storage.TokenStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if clientStore == nil {
		return nil, errors.New("client store is required")
	}
	if codeStore == nil {
		return nil, errors.New("authorization code store is required")
	}
	if tokenStore == nil {
		return nil, errors.New("token store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applyDefaults(config, logger)

	return &Server{
		clientStore: clientStore,
		codeStore:   codeStore,
		tokenStore:  tokenStore,
		Config:      config,
		Logger:      logger,
		now:         time.Now,
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetInstrumentation enables spans and flow metrics
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
		s.metrics = inst.Metrics()
	}
}

// Instrumentation returns the instrumentation set with SetInstrumentation, or nil.
func (s *Server) Instrumentation() *instrumentation.Instrumentation {
	return s.instrumentation
}

// SetClock replaces the time source used for issuing and expiry checks.
func (s *Server) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}
