package middleware

import (
	"log/slog"
	"net/http"

	"github.com/evotodo/evotodo/internal/auth"
	"github.com/evotodo/evotodo/internal/metrics"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier *auth.Verifier
	Metrics  metrics.Recorder
}

// Auth returns a middleware that authenticates API requests.
// It validates the bearer token from the Authorization header and
// injects the resulting identity into the request context.
//
// Identity comes exclusively from the verified token. The legacy
// X-User-Id header is never consulted: not as a fallback when the
// token is absent, and never as an override when one is present.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := cfg.Verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				// The precise failure is for logs only; clients get
				// one indistinguishable 401 for every failure kind.
				reason := auth.FailureReason(err)
				recorder.IncAuthFailure(reason)
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			recorder.IncAuthSuccess()
			cfg.Logger.Info("authentication successful",
				slog.String("subject", identity.SubjectID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 Unauthorized response.
// The same challenge and message cover every auth failure so callers
// cannot probe why a token was rejected.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credentials"}}`))
}
