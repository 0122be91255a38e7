package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseUserAgent(t *testing.T) {
	p, err := NewParser("", zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name    string
		ua      string
		device  string
		browser string
	}{
		{
			name:    "desktop chrome",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			device:  DeviceDesktop,
			browser: "Chrome",
		},
		{
			name:    "iphone safari",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			device:  DeviceMobile,
			browser: "Mobile Safari",
		},
		{
			name:    "ipad",
			ua:      "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			device:  DeviceTablet,
			browser: "Mobile Safari",
		},
		{
			name:   "googlebot",
			ua:     "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			device: DeviceBot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := p.ParseUserAgent(tt.ua)
			assert.Equal(t, tt.device, info.DeviceType)
			if tt.browser != "" {
				assert.Equal(t, tt.browser, info.Browser)
			}
			assert.Equal(t, tt.ua, info.Raw)
		})
	}
}

func TestParseEmptyUserAgent(t *testing.T) {
	p, err := NewParser("", zap.NewNop())
	require.NoError(t, err)

	info := p.ParseUserAgent("")
	assert.Equal(t, Unknown, info.DeviceType)
	assert.Equal(t, Unknown, info.Browser)
	assert.Equal(t, Unknown, info.OS)
}

func TestNewParserMissingFile(t *testing.T) {
	_, err := NewParser("does/not/exist.yaml", zap.NewNop())
	assert.Error(t, err)
}
