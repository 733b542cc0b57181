// Package instrumentation provides OpenTelemetry metrics and tracing for the
// mock authorization server.
//
// When disabled, no-op providers are used. When enabled, metrics can be
// exported in Prometheus format and traces written to stdout:
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		Enabled:         true,
//		ServiceName:     "mock-oauth",
//		MetricsExporter: instrumentation.ExporterPrometheus,
//	})
//	if err != nil {
//		return err
//	}
//	defer inst.Shutdown(ctx)
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Metrics
//
// HTTP:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{endpoint}
//
// Flows:
//   - oauth.authorization.codes_issued{client_id, pkce_method}
//   - oauth.authorization.denied{client_id}
//   - oauth.code.exchanged{client_id, pkce_method}
//   - oauth.token.refreshed{client_id}
//   - oauth.userinfo.served
//   - oauth.grant.rejected{grant_type, error}
//
// Security and chaos:
//   - oauth.pkce.validation_failed{method}
//   - oauth.chaos.faults_injected{endpoint}
//   - oauth.rate_limit.exceeded{endpoint}
//   - oauth.audit.events{event_type}
//
// Storage:
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation}
//   - storage.codes.count, storage.access_tokens.count, storage.refresh_tokens.count
//
// Never record codes, tokens, verifiers or secrets as attribute values.
package instrumentation
