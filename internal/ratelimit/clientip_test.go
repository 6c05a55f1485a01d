package ratelimit

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "cloudflare header wins",
			headers:    map[string]string{"CF-Connecting-IP": "8.8.8.8", "X-Forwarded-For": "1.1.1.1"},
			remoteAddr: "10.0.0.1:1234",
			want:       "8.8.8.8",
		},
		{
			name:       "first forwarded-for element",
			headers:    map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.2, 172.16.0.1"},
			remoteAddr: "10.0.0.1:1234",
			want:       "9.9.9.9",
		},
		{
			name:       "private header skipped",
			headers:    map[string]string{"Client-IP": "192.168.1.5", "X-Forwarded-For": "4.4.4.4"},
			remoteAddr: "10.0.0.1:1234",
			want:       "4.4.4.4",
		},
		{
			name:       "loopback and reserved skipped",
			headers:    map[string]string{"X-Forwarded-For": "127.0.0.1", "X-Cluster-Client-IP": "240.1.2.3"},
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1",
		},
		{
			name:       "garbage skipped",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			remoteAddr: "93.184.216.34:443",
			want:       "93.184.216.34",
		},
		{
			name:       "rfc 7239 forwarded",
			headers:    map[string]string{"Forwarded": `for="[2606:4700::1111]:443";proto=https`},
			remoteAddr: "10.0.0.1:1234",
			want:       "2606:4700::1111",
		},
		{
			name:       "ipv4 with port in header",
			headers:    map[string]string{"X-Forwarded": "1.0.0.1:8080"},
			remoteAddr: "10.0.0.1:1234",
			want:       "1.0.0.1",
		},
		{
			name:       "no headers uses connection address",
			remoteAddr: "[::1]:5555",
			want:       "::1",
		},
		{
			name:       "unparseable connection address",
			remoteAddr: "pipe",
			want:       UnknownIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/editor", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
