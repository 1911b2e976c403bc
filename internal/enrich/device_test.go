package enrich_test

import (
	"testing"

	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/enrich"
	"github.com/stretchr/testify/assert"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantType    clickstream.DeviceType
		wantBrowser string
		wantVersion string
		wantOS      string
	}{
		{
			name:        "windows chrome desktop",
			ua:          "Mozilla/5.0 (Windows NT 10.0) Chrome/115.0",
			wantType:    clickstream.DeviceDesktop,
			wantBrowser: "Chrome",
			wantVersion: "115.0",
			wantOS:      "Windows",
		},
		{
			name:        "edge takes precedence over chrome",
			ua:          "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/115.0 Safari/537.36 Edg/115.0.1901",
			wantType:    clickstream.DeviceDesktop,
			wantBrowser: "Edge",
			wantVersion: "115.0.1901",
			wantOS:      "Windows",
		},
		{
			name:        "ipad is a tablet not a phone",
			ua:          "Mozilla/5.0 (iPad; CPU OS 16_5 like Mac OS X) AppleWebKit/605.1.15 Version/16.5 Mobile/15E148 Safari/604.1",
			wantType:    clickstream.DeviceTablet,
			wantBrowser: "Safari",
			wantVersion: "16.5",
			wantOS:      "iOS",
		},
		{
			name:        "android phone",
			ua:          "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 Chrome/114.0.5735.196 Mobile Safari/537.36",
			wantType:    clickstream.DeviceMobile,
			wantBrowser: "Chrome",
			wantVersion: "114.0.5735.196",
			wantOS:      "Android",
		},
		{
			name:        "firefox on linux",
			ua:          "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/117.0",
			wantType:    clickstream.DeviceDesktop,
			wantBrowser: "Firefox",
			wantVersion: "117.0",
			wantOS:      "Linux",
		},
		{
			name:        "safari on macos",
			ua:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/16.1 Safari/605.1.15",
			wantType:    clickstream.DeviceDesktop,
			wantBrowser: "Safari",
			wantVersion: "16.1",
			wantOS:      "macOS",
		},
		{
			name:     "empty user-agent is unknown",
			ua:       "",
			wantType: clickstream.DeviceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := enrich.ClassifyDevice(tt.ua)

			assert.Equal(t, tt.wantType, device.Type)
			assert.Equal(t, tt.wantBrowser, device.Browser)
			assert.Equal(t, tt.wantVersion, device.BrowserVersion)
			assert.Equal(t, tt.wantOS, device.OS)
		})
	}
}

func TestIsBot(t *testing.T) {
	bots := []string{
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"curl/8.1.2",
		"python-requests/2.31.0",
		"Mozilla/5.0 (compatible; bingbot/2.0)",
		"facebookexternalhit/1.1",
		"Screaming Frog SEO Spider/19.0",
	}
	for _, ua := range bots {
		assert.True(t, enrich.IsBot(ua), ua)
	}

	humans := []string{
		"Mozilla/5.0 (Windows NT 10.0) Chrome/115.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) Version/16.5 Mobile/15E148 Safari/604.1",
		"",
	}
	for _, ua := range humans {
		assert.False(t, enrich.IsBot(ua), ua)
	}
}
