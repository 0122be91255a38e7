package useragent

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Device types.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
	Unknown       = "unknown"
)

// Parser wraps the User-Agent parser with device type detection.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo represents parsed device information
type DeviceInfo struct {
	DeviceType string // mobile, desktop, tablet, bot, unknown
	Browser    string // Chrome, Firefox, Safari, etc.
	OS         string // Windows, iOS, Android, etc.
	Raw        string // Original User-Agent string
}

// NewParser creates a parser from the regexes file at regexFilePath, or
// from the definitions bundled with uap-go when the path is empty.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	if regexFilePath == "" {
		log.Info("User-Agent parser initialized from bundled definitions")
		return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
	}

	regexBytes, err := os.ReadFile(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read regexes file: %w", err)
	}

	parser, err := uaparser.NewFromBytes(regexBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
	}

	log.Info("User-Agent parser initialized successfully", zap.String("regexes_file", regexFilePath))

	return &Parser{
		parser: parser,
		log:    log,
	}, nil
}

// ParseUserAgent parses a User-Agent string and returns detailed device information
func (p *Parser) ParseUserAgent(userAgent string) *DeviceInfo {
	if userAgent == "" {
		return &DeviceInfo{
			DeviceType: Unknown,
			Browser:    Unknown,
			OS:         Unknown,
		}
	}

	client := p.parser.Parse(userAgent)

	deviceInfo := &DeviceInfo{
		Browser:    formatFamily(client.UserAgent.Family),
		OS:         formatFamily(client.Os.Family),
		Raw:        userAgent,
		DeviceType: determineDeviceType(client, userAgent),
	}

	p.log.Debug("parsed User-Agent",
		zap.String("user_agent", userAgent),
		zap.String("device_type", deviceInfo.DeviceType),
		zap.String("browser", deviceInfo.Browser),
		zap.String("os", deviceInfo.OS),
	)

	return deviceInfo
}

// determineDeviceType determines the device type based on parsed client info and raw User-Agent
func determineDeviceType(client *uaparser.Client, userAgent string) string {
	if isBot(client, userAgent) {
		return DeviceBot
	}

	deviceFamily := client.Device.Family
	if deviceFamily != "" && deviceFamily != "Other" {
		if containsAny(deviceFamily, tabletDevices) {
			return DeviceTablet
		}
		if containsAny(deviceFamily, mobileDevices) {
			return DeviceMobile
		}
	}

	osFamily := client.Os.Family
	if containsAny(osFamily, mobileOS) {
		if isTabletOS(osFamily, userAgent) {
			return DeviceTablet
		}
		return DeviceMobile
	}

	if containsAny(osFamily, desktopOS) {
		return DeviceDesktop
	}

	return Unknown
}

var (
	botIndicators = []string{
		"Googlebot", "Bingbot", "Slurp", "DuckDuckBot", "Baiduspider",
		"YandexBot", "facebookexternalhit", "Twitterbot", "LinkedInBot",
		"WhatsApp", "Telegram", "SkypeUriPreview", "bot", "crawler",
		"spider", "scraper",
	}
	mobileDevices = []string{"iPhone", "Android", "BlackBerry", "Windows Phone", "Mobile", "Phone"}
	tabletDevices = []string{"iPad", "Tablet", "Kindle", "Surface"}
	mobileOS      = []string{"iOS", "Android", "Windows Phone", "BlackBerry OS", "Firefox OS", "Sailfish OS"}
	desktopOS     = []string{
		"Windows", "Mac OS X", "macOS", "Linux", "Ubuntu",
		"Chrome OS", "FreeBSD", "OpenBSD", "NetBSD",
	}
)

func isBot(client *uaparser.Client, userAgent string) bool {
	if client.Device.Family == "Spider" {
		return true
	}
	return containsAny(client.UserAgent.Family, botIndicators) || containsAny(userAgent, botIndicators)
}

// isTabletOS tells tablets from phones on mobile operating systems.
func isTabletOS(osFamily, userAgent string) bool {
	if containsFold(osFamily, "iOS") {
		return containsFold(userAgent, "iPad")
	}
	// Android tablets typically don't have "Mobile" in User-Agent
	if containsFold(osFamily, "Android") {
		return !containsFold(userAgent, "Mobile")
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if containsFold(s, n) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// formatFamily replaces empty and "Other" with "unknown".
func formatFamily(s string) string {
	if s == "" || s == "Other" {
		return Unknown
	}
	return s
}
