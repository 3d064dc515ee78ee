package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "first forwarded entry wins",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"},
			remoteAddr: "10.0.0.2:5000",
			expected:   "203.0.113.7",
		},
		{
			name:       "real ip header",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			remoteAddr: "10.0.0.2:5000",
			expected:   "198.51.100.4",
		},
		{
			name:       "ipv6 remote addr strips port",
			remoteAddr: "[::1]:8080",
			expected:   "::1",
		},
		{
			name:       "ipv4 remote addr strips port",
			remoteAddr: "192.0.2.1:1234",
			expected:   "192.0.2.1",
		},
		{
			name:     "nothing available",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIPFromRequest(req))
		})
	}
}

func TestClientMetadataMiddleware(t *testing.T) {
	var ip, ua string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/registrations", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", ip)
	assert.Equal(t, "Mozilla/5.0", ua)
}

func TestProxies(t *testing.T) {
	proxies, err := ParseProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		expected   string
	}{
		{"untrusted peer ignores forwarded header", "198.51.100.3:4000", "203.0.113.7", "198.51.100.3"},
		{"trusted range uses forwarded client", "10.1.2.3:4000", "203.0.113.7, 10.1.2.3", "203.0.113.7"},
		{"trusted single address", "192.0.2.10:4000", "203.0.113.8", "203.0.113.8"},
		{"trusted peer without header", "10.1.2.3:4000", "", "10.1.2.3"},
		{"neighbour of trusted address", "192.0.2.11:4000", "203.0.113.8", "192.0.2.11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/registrations", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.expected, proxies.ClientIP(req))
		})
	}

	t.Run("no proxies trusts nobody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/registrations", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		assert.Equal(t, "10.1.2.3", Proxies(nil).ClientIP(req))
	})

	t.Run("invalid entries rejected", func(t *testing.T) {
		_, err := ParseProxies([]string{"10.0.0.0/99"})
		assert.Error(t, err)
		_, err = ParseProxies([]string{"proxy.internal"})
		assert.Error(t, err)
	})
}
