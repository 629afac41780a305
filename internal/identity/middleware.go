package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/httputil"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// Verifier resolves a raw token.
type Verifier interface {
	Verify(tokenString string) (*Identity, error)
}

// RevocationChecker reports whether a token id was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type identityKey struct{}

// FromContext returns the verified session set by RequireAuth, or nil.
func FromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityKey{}).(*Identity)
	return ident
}

// bearerToken reads "Authorization: Bearer". Browsers cannot set headers on a
// websocket handshake, so the access_token query parameter is accepted too.
func bearerToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}

// RequireAuth rejects requests without a valid, unrevoked session token and
// puts the resolved identity on the request context. revocations may be nil.
func RequireAuth(verifier Verifier, revocations RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := bearerToken(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}
			ident, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(ctx, ident.TokenID)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"request_id", requestID,
						"error", err,
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to validate token"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"request_id", requestID,
						"token_id", ident.TokenID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked"))
					return
				}
			}

			ctx = requestcontext.WithIdentity(ctx, ident.UserID, ident.Role)
			ctx = context.WithValue(ctx, identityKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
