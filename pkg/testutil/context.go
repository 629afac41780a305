package testutil

import (
	"net/http"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// WithIdentity puts a resolved caller on the request context, as the auth
// middleware would. A nil user leaves the request anonymous.
func WithIdentity(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	if userID.IsNil() {
		return req
	}
	return req.WithContext(requestcontext.WithIdentity(req.Context(), userID, role))
}

// WithRequestID sets a fixed correlation id on the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
