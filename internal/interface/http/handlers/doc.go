// Package handlers contains HTTP health checks, authentication and reusable
// middleware for the Green Guardian API.
//
// # Health Checks
//
// Checks are registered by name and executed in parallel. Critical checks
// make the service unready; optional ones only mark it degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("storage", handlers.NewPingCheck(store))
//	checker.AddOptionalCheck("recommendations", handlers.NewRemoteServiceCheck(client))
//
//	status := checker.Check(ctx)
//
// # Authentication
//
// Admin API keys are configured as bcrypt hashes. Installation tokens are
// HS256 JWTs whose subject is the installation ID:
//
//	auth := handlers.NewAuthenticator(handlers.AuthConfig{
//	    APIKeyHashes: []string{hash},
//	    TokenSecret:  secret,
//	})
//	token, expiresAt, err := auth.IssueToken("inst-1")
//
//	r.With(auth.RequireInstallation(func(r *http.Request) string {
//	    return chi.URLParam(r, "installationID")
//	})).Get("/progress", h)
//
// When neither keys nor a secret are configured, every request passes.
package handlers
