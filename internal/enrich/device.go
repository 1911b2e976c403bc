package enrich

import (
	"regexp"
	"strings"

	"github.com/serroba/clickstream-go/internal/clickstream"
)

// Tablet patterns are checked before the generic mobile patterns so
// tablets are not misclassified as phones.
var tabletPatterns = []string{"ipad", "tablet", "kindle", "silk", "playbook", "nexus 7", "nexus 10"}

var mobilePatterns = []string{"mobile", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini", "iemobile"}

var botPatterns = []string{
	"bot", "crawl", "spider", "slurp", "mediapartners",
	"facebookexternalhit", "whatsapp", "telegrambot", "bingpreview",
	"headlesschrome", "phantomjs", "lighthouse", "pingdom", "uptimerobot",
	"curl", "wget", "python-requests", "go-http-client", "scrapy", "httpie",
	"postmanruntime",
}

type browserRule struct {
	name    string
	match   func(ua string) bool
	version *regexp.Regexp
}

// Browser precedence is fixed: Edge, Chrome excluding Edge, Safari
// excluding Chrome, Firefox, Opera, IE. First match wins.
var browserRules = []browserRule{
	{
		name:    "Edge",
		match:   func(ua string) bool { return strings.Contains(ua, "edg") },
		version: regexp.MustCompile(`(?i)edge?/([0-9][0-9.]*)`),
	},
	{
		name: "Chrome",
		match: func(ua string) bool {
			return (strings.Contains(ua, "chrome") || strings.Contains(ua, "crios")) && !strings.Contains(ua, "edg")
		},
		version: regexp.MustCompile(`(?i)(?:chrome|crios)/([0-9][0-9.]*)`),
	},
	{
		name: "Safari",
		match: func(ua string) bool {
			return strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome") && !strings.Contains(ua, "crios")
		},
		version: regexp.MustCompile(`(?i)version/([0-9][0-9.]*)`),
	},
	{
		name:    "Firefox",
		match:   func(ua string) bool { return strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios") },
		version: regexp.MustCompile(`(?i)(?:firefox|fxios)/([0-9][0-9.]*)`),
	},
	{
		name:    "Opera",
		match:   func(ua string) bool { return strings.Contains(ua, "opera") || strings.Contains(ua, "opr/") },
		version: regexp.MustCompile(`(?i)(?:opr|opera)[/ ]([0-9][0-9.]*)`),
	},
	{
		name:    "Internet Explorer",
		match:   func(ua string) bool { return strings.Contains(ua, "msie") || strings.Contains(ua, "trident") },
		version: regexp.MustCompile(`(?i)(?:msie |rv:)([0-9][0-9.]*)`),
	},
}

type osRule struct {
	name    string
	marker  string
	version *regexp.Regexp
}

// OS checks run in a fixed order; Windows Phone comes before both Android
// and Windows so it is not shadowed by either.
var osRules = []osRule{
	{"Windows Phone", "windows phone", regexp.MustCompile(`(?i)windows phone (?:os )?([0-9.]+)`)},
	{"Windows", "windows", regexp.MustCompile(`(?i)windows nt ([0-9.]+)`)},
	{"iOS", "iphone", regexp.MustCompile(`(?i)os ([0-9_]+)`)},
	{"iOS", "ipad", regexp.MustCompile(`(?i)os ([0-9_]+)`)},
	{"Android", "android", regexp.MustCompile(`(?i)android ([0-9.]+)`)},
	{"macOS", "mac os x", regexp.MustCompile(`(?i)mac os x ([0-9_.]+)`)},
	{"Chrome OS", "cros", regexp.MustCompile(`(?i)cros [^ ]+ ([0-9.]+)`)},
	{"Linux", "linux", nil},
}

// ClassifyDevice derives device type, browser, and OS from a user-agent
// string. Unknown inputs classify as unknown, never error.
func ClassifyDevice(userAgent string) clickstream.Device {
	ua := strings.ToLower(userAgent)

	device := clickstream.Device{Type: deviceType(ua)}

	for _, rule := range browserRules {
		if !rule.match(ua) {
			continue
		}

		device.Browser = rule.name
		if m := rule.version.FindStringSubmatch(userAgent); m != nil {
			device.BrowserVersion = m[1]
		}

		break
	}

	for _, rule := range osRules {
		if !strings.Contains(ua, rule.marker) {
			continue
		}

		device.OS = rule.name
		if rule.version != nil {
			if m := rule.version.FindStringSubmatch(userAgent); m != nil {
				device.OSVersion = strings.ReplaceAll(m[1], "_", ".")
			}
		}

		break
	}

	return device
}

func deviceType(ua string) clickstream.DeviceType {
	if ua == "" {
		return clickstream.DeviceUnknown
	}

	for _, pattern := range tabletPatterns {
		if strings.Contains(ua, pattern) {
			return clickstream.DeviceTablet
		}
	}

	for _, pattern := range mobilePatterns {
		if strings.Contains(ua, pattern) {
			return clickstream.DeviceMobile
		}
	}

	return clickstream.DeviceDesktop
}

// IsBot reports whether the user-agent matches any known crawler, preview
// fetcher, or CLI tool pattern.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)

	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}

	return false
}
