package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrimp/internal/blocklist"
)

func TestValidateURL(t *testing.T) {
	bl, err := blocklist.New("evil.example", "*.phish.test")
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		want    string
		wantMsg string
	}{
		{name: "https", raw: "https://example.com/a?b=c", want: "https://example.com/a?b=c"},
		{name: "trimmed", raw: "  http://example.com  ", want: "http://example.com"},
		{name: "uppercase scheme", raw: "HTTPS://example.com", want: "HTTPS://example.com"},
		{name: "empty", raw: "   ", wantMsg: "URL is required"},
		{name: "no scheme", raw: "example.com", wantMsg: "Invalid URL format"},
		{name: "garbage", raw: "http://[::1", wantMsg: "Invalid URL format"},
		{name: "ftp", raw: "ftp://example.com/file", wantMsg: "Only http and https URLs are allowed"},
		{name: "javascript", raw: "javascript:alert(1)", wantMsg: "Only http and https URLs are allowed"},
		{name: "no host", raw: "http://", wantMsg: "Invalid URL format"},
		{name: "blocked exact", raw: "https://evil.example/x", wantMsg: "This URL is not allowed"},
		{name: "blocked glob", raw: "https://login.phish.test", wantMsg: "This URL is not allowed"},
		{name: "blocked case", raw: "https://EVIL.example", wantMsg: "This URL is not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateURL(tt.raw, bl)
			if tt.wantMsg != "" {
				v, ok := IsValidation(err)
				require.True(t, ok, "expected validation error, got %v", err)
				assert.Equal(t, "url", v.Field)
				assert.Equal(t, tt.wantMsg, v.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateURLWithoutBlocklist(t *testing.T) {
	got, err := ValidateURL("https://evil.example", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://evil.example", got)
}
