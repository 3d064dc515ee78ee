package testutil

import (
	"net/http"

	"eventreg/pkg/requestcontext"
)

// WithClientMetadata sets the client IP and User-Agent the metadata
// middleware would have stored.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
