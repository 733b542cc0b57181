// Package server implements the protocol logic of the mock authorization
// server: the authorization request, the authorization_code and
// refresh_token grants, and userinfo.
//
// The Server has no HTTP knowledge. It returns redirect URLs, tokens and
// profiles, or an *Error carrying the OAuth error code, description and
// HTTP status to render.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	srv, err := server.New(registry.NewDefault(logger), store, store, &server.Config{
//		Issuer: "http://localhost:3001",
//	}, logger)
//	if err != nil {
//		return err
//	}
//
//	redirect, err := srv.Authorize(ctx, &server.AuthorizationRequest{...})
package server
