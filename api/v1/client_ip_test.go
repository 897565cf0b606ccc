package v1

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "79.144.65.173", want: "79.144.65.173"},
		{raw: " 79.144.65.173 ", want: "79.144.65.173"},
		{raw: `"79.144.65.173:1234"`, want: "79.144.65.173"},
		{raw: "2001:db8::1", want: "2001:db8::1"},
		{raw: "[2001:db8::1]:8443", want: "2001:db8::1"},
		{raw: "[2001:db8::1]", want: "2001:db8::1"},
		{raw: "fe80::1%eth0", want: "fe80::1"},
		{raw: "::ffff:203.0.113.9", want: "203.0.113.9"},
		{raw: "not-an-ip", want: ""},
		{raw: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			addr, ok := parseAddr(tt.raw)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestFirstPublic(t *testing.T) {
	assert.Equal(t, "203.0.113.20", firstPublic([]string{"2a00:1450::1", "203.0.113.20"}))
	assert.Equal(t, "198.51.100.7", firstPublic([]string{"192.168.1.10", "10.0.0.5", "::1", "100.64.3.2", "198.51.100.7"}))
	assert.Equal(t, "2a00:1450::1", firstPublic([]string{"fe80::1", "2a00:1450::1"}))
	assert.Equal(t, "203.0.113.9", firstPublic([]string{"::ffff:203.0.113.9"}))
	assert.Empty(t, firstPublic([]string{"", "127.0.0.1", "::ffff:192.168.1.5", "junk"}))
}

func TestForwardedFor(t *testing.T) {
	values := forwardedFor(`for=192.0.2.60;proto=http;by=203.0.113.43, For="[2001:db8:cafe::17]:4711"`)
	assert.Equal(t, []string{"192.0.2.60", `"[2001:db8:cafe::17]:4711"`}, values)
	assert.Empty(t, forwardedFor(""))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "forwarded for chain",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 79.144.65.173, 172.16.0.4"},
			want:    "79.144.65.173",
		},
		{
			name:    "cdn header",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1", "CF-Connecting-IP": "198.51.100.7"},
			want:    "198.51.100.7",
		},
		{
			name:    "forwarded header",
			headers: map[string]string{"Forwarded": "for=203.0.113.60;proto=https"},
			want:    "203.0.113.60",
		},
		{
			name: "private only",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return c.SendString(clientIP(c))
			})

			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body := make([]byte, 64)
			n, _ := resp.Body.Read(body)
			assert.Equal(t, tt.want, string(body[:n]))
		})
	}
}
