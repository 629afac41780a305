package identity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/httputil"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// Revoker adds a token id to the deny list.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// Handler serves session endpoints.
type Handler struct {
	revoker Revoker
	logger  *slog.Logger
}

func NewHandler(revoker Revoker, logger *slog.Logger) *Handler {
	return &Handler{revoker: revoker, logger: logger}
}

// Register mounts the session routes. RequireAuth must run first.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/logout", h.HandleLogout)
}

type meResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleMe handles GET /auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ident := FromContext(r.Context())
	if ident == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meResponse{
		UserID:    ident.UserID.String(),
		Role:      ident.Role.String(),
		ExpiresAt: ident.ExpiresAt,
	})
}

// HandleLogout handles POST /auth/logout by revoking the presented token
// until it would have expired anyway.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := FromContext(ctx)
	if ident == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if h.revoker == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeStoreUnavailable, "token revocation is not configured"))
		return
	}
	ttl := time.Until(ident.ExpiresAt)
	if err := h.revoker.Revoke(ctx, ident.TokenID, ttl); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke token",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", ident.UserID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to revoke token"))
		return
	}
	h.logger.InfoContext(ctx, "session revoked",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", ident.UserID,
	)
	w.WriteHeader(http.StatusNoContent)
}
