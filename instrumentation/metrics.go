package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Flows
	AuthorizationCodesIssued metric.Int64Counter
	AuthorizationDenied      metric.Int64Counter
	CodeExchanged            metric.Int64Counter
	TokenRefreshed           metric.Int64Counter
	UserInfoServed           metric.Int64Counter
	GrantRejected            metric.Int64Counter

	// Security and chaos
	PKCEValidationFailed metric.Int64Counter
	FaultsInjected       metric.Int64Counter
	RateLimitExceeded    metric.Int64Counter
	AuditEventsTotal     metric.Int64Counter

	// Storage
	StorageOperationTotal     metric.Int64Counter
	StorageOperationDuration  metric.Float64Histogram
	StorageCodesCount         metric.Int64ObservableGauge
	StorageAccessTokensCount  metric.Int64ObservableGauge
	StorageRefreshTokensCount metric.Int64ObservableGauge
}

func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	var err error

	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	storageMeter := inst.Meter("storage")
	securityMeter := inst.Meter("security")

	counters := []struct {
		dst   *metric.Int64Counter
		meter metric.Meter
		name  string
		desc  string
		unit  string
	}{
		{&m.HTTPRequestsTotal, httpMeter, "oauth.http.requests.total", "Total HTTP requests by endpoint and status", "{request}"},
		{&m.AuthorizationCodesIssued, serverMeter, "oauth.authorization.codes_issued", "Authorization codes issued", "{code}"},
		{&m.AuthorizationDenied, serverMeter, "oauth.authorization.denied", "Authorization requests the user denied", "{request}"},
		{&m.CodeExchanged, serverMeter, "oauth.code.exchanged", "Authorization codes exchanged for tokens", "{exchange}"},
		{&m.TokenRefreshed, serverMeter, "oauth.token.refreshed", "Refresh token rotations", "{refresh}"},
		{&m.UserInfoServed, serverMeter, "oauth.userinfo.served", "Userinfo responses served", "{response}"},
		{&m.GrantRejected, serverMeter, "oauth.grant.rejected", "Token requests rejected by grant type and error code", "{request}"},
		{&m.PKCEValidationFailed, securityMeter, "oauth.pkce.validation_failed", "PKCE verifier checks that failed", "{failure}"},
		{&m.FaultsInjected, securityMeter, "oauth.chaos.faults_injected", "Synthetic server errors returned", "{fault}"},
		{&m.RateLimitExceeded, securityMeter, "oauth.rate_limit.exceeded", "Requests rejected by the rate limiter", "{request}"},
		{&m.AuditEventsTotal, securityMeter, "oauth.audit.events", "Security audit events by type", "{event}"},
		{&m.StorageOperationTotal, storageMeter, "storage.operation.total", "Storage operations by result", "{operation}"},
	}
	for _, c := range counters {
		*c.dst, err = c.meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"oauth.http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage duration histogram: %w", err)
	}

	gauges := []struct {
		dst  *metric.Int64ObservableGauge
		name string
		desc string
	}{
		{&m.StorageCodesCount, "storage.codes.count", "Outstanding authorization codes"},
		{&m.StorageAccessTokensCount, "storage.access_tokens.count", "Stored access tokens"},
		{&m.StorageRefreshTokensCount, "storage.refresh_tokens.count", "Stored refresh tokens"},
	}
	for _, g := range gauges {
		*g.dst, err = storageMeter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit("{item}"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s gauge: %w", g.name, err)
		}
	}

	return m, nil
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHTTPRequest records one request and its duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	add(ctx, m.HTTPRequestsTotal,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, float64(duration.Milliseconds()),
			metric.WithAttributes(attribute.String(AttrEndpoint, endpoint)))
	}
}

// RecordAuthorizationCodeIssued records a successful authorize redirect.
// pkceMethod is empty when no challenge was supplied.
func (m *Metrics) RecordAuthorizationCodeIssued(ctx context.Context, clientID, pkceMethod string) {
	if m == nil {
		return
	}
	add(ctx, m.AuthorizationCodesIssued,
		attribute.String(AttrClientID, clientID),
		attribute.String(AttrPKCEMethod, pkceMethod),
	)
}

// RecordAuthorizationDenied records a simulated user denial.
func (m *Metrics) RecordAuthorizationDenied(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	add(ctx, m.AuthorizationDenied, attribute.String(AttrClientID, clientID))
}

// RecordCodeExchange records a successful authorization code exchange.
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID, pkceMethod string) {
	if m == nil {
		return
	}
	add(ctx, m.CodeExchanged,
		attribute.String(AttrClientID, clientID),
		attribute.String(AttrPKCEMethod, pkceMethod),
	)
}

// RecordTokenRefresh records a successful refresh token rotation.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	add(ctx, m.TokenRefreshed, attribute.String(AttrClientID, clientID))
}

// RecordUserInfoServed records a successful userinfo response.
func (m *Metrics) RecordUserInfoServed(ctx context.Context) {
	if m == nil {
		return
	}
	add(ctx, m.UserInfoServed)
}

// RecordGrantRejected records a token request that ended in an OAuth error.
func (m *Metrics) RecordGrantRejected(ctx context.Context, grantType, errorCode string) {
	if m == nil {
		return
	}
	add(ctx, m.GrantRejected,
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrErrorCode, errorCode),
	)
}

// RecordPKCEValidationFailed records a verifier that did not match.
func (m *Metrics) RecordPKCEValidationFailed(ctx context.Context, method string) {
	if m == nil {
		return
	}
	add(ctx, m.PKCEValidationFailed, attribute.String(AttrPKCEMethod, method))
}

// RecordFaultInjected records a synthetic server_error.
func (m *Metrics) RecordFaultInjected(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	add(ctx, m.FaultsInjected, attribute.String(AttrEndpoint, endpoint))
}

// RecordRateLimitExceeded records a request rejected with 429.
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	add(ctx, m.RateLimitExceeded, attribute.String(AttrEndpoint, endpoint))
}

// RecordAuditEvent counts one audit event. It satisfies
// security.AuditRecorder.
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	add(ctx, m.AuditEventsTotal, attribute.String(AttrEventType, eventType))
}

// RecordStorageOperation records one storage call. result is "success" or
// "error".
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	add(ctx, m.StorageOperationTotal,
		attribute.String(AttrOperation, operation),
		attribute.String(AttrResult, result),
	)
	if m.StorageOperationDuration != nil {
		m.StorageOperationDuration.Record(ctx, float64(duration.Microseconds())/1000,
			metric.WithAttributes(attribute.String(AttrOperation, operation)))
	}
}
