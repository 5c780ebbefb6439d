package useragent

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
)

// Parser wraps the User-Agent parser with device class detection.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo represents parsed device information.
type DeviceInfo struct {
	DeviceType     string  // one of the domain.Device* constants
	Browser        string  // Chrome, Firefox, Safari, ... or "Unknown"
	BrowserVersion *string // major[.minor[.patch]]
	OS             *string
	OSVersion      *string
}

// NewParser creates a parser from a regexes.yaml file, or from the regex set bundled
// with uap-go when regexFilePath is empty.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	if regexFilePath == "" {
		log.Info("User-Agent parser initialized from bundled regexes")
		return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
	}

	regexBytes, err := os.ReadFile(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read regexes file %s: %w", regexFilePath, err)
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

// Parse classifies a User-Agent string. An empty string yields an unknown device with
// no browser or OS details; any other string falls back to desktop.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{
			DeviceType: domain.DeviceUnknown,
			Browser:    domain.UnknownBrowser,
		}
	}

	client := p.parser.Parse(userAgent)

	info := DeviceInfo{
		DeviceType:     determineDeviceType(client, userAgent),
		Browser:        domain.UnknownBrowser,
		BrowserVersion: joinVersion(client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch),
	}
	if family := client.UserAgent.Family; family != "" && family != "Other" {
		info.Browser = family
	}
	if family := client.Os.Family; family != "" && family != "Other" {
		info.OS = &family
		info.OSVersion = joinVersion(client.Os.Major, client.Os.Minor, client.Os.Patch)
	}

	p.log.Debug("parsed User-Agent",
		zap.String("device_type", info.DeviceType),
		zap.String("browser", info.Browser),
	)

	return info
}

// determineDeviceType checks the specialised device classes first, then tablets before
// phones, and defaults to desktop.
func determineDeviceType(client *uaparser.Client, userAgent string) string {
	deviceFamily := client.Device.Family
	osFamily := client.Os.Family

	switch {
	case containsAny(userAgent, consoleIndicators) || containsAny(deviceFamily, consoleIndicators):
		return domain.DeviceConsole
	case containsAny(userAgent, smartTVIndicators) || containsAny(deviceFamily, smartTVIndicators):
		return domain.DeviceSmartTV
	case containsAny(userAgent, wearableIndicators) || containsAny(osFamily, wearableIndicators):
		return domain.DeviceWearable
	case containsAny(userAgent, embeddedIndicators):
		return domain.DeviceEmbedded
	}

	if deviceFamily != "" && deviceFamily != "Other" && deviceFamily != "Spider" {
		if containsAny(deviceFamily, tabletDevices) {
			return domain.DeviceTablet
		}
		if containsAny(deviceFamily, mobileDevices) {
			return domain.DeviceMobile
		}
	}

	if containsAny(osFamily, mobileOS) {
		if isTabletOS(osFamily, userAgent) {
			return domain.DeviceTablet
		}
		return domain.DeviceMobile
	}

	return domain.DeviceDesktop
}

var (
	consoleIndicators  = []string{"PlayStation", "Xbox", "Nintendo", "Ouya"}
	smartTVIndicators  = []string{"SmartTV", "SMART-TV", "AppleTV", "Apple TV", "GoogleTV", "BRAVIA", "Roku", "HbbTV", "CrKey", "Web0S", "webOS.TV", "AFTB", "AFTS", "AFTM"}
	wearableIndicators = []string{"watchOS", "Wear OS", "Watch", "Glass"}
	embeddedIndicators = []string{"QtCarBrowser", "Tesla"}
	tabletDevices      = []string{"iPad", "Tablet", "Kindle", "Surface", "Nexus 7", "Nexus 9", "Galaxy Tab"}
	mobileDevices      = []string{"iPhone", "iPod", "Android", "BlackBerry", "Windows Phone", "Mobile", "Phone", "Pixel", "Samsung SM-"}
	mobileOS           = []string{"iOS", "Android", "Windows Phone", "BlackBerry OS", "Firefox OS", "Sailfish OS", "KaiOS"}
)

// isTabletOS checks if the OS/User-Agent indicates a tablet.
func isTabletOS(osFamily, userAgent string) bool {
	if containsFold(osFamily, "iOS") {
		return containsFold(userAgent, "iPad")
	}
	// Android tablets typically don't have "Mobile" in User-Agent.
	if containsFold(osFamily, "Android") {
		return !containsFold(userAgent, "Mobile")
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if containsFold(s, sub) {
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

// joinVersion renders major[.minor[.patch]], stopping at the first empty part.
func joinVersion(parts ...string) *string {
	var kept []string
	for _, part := range parts {
		if part == "" {
			break
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return nil
	}
	version := strings.Join(kept, ".")
	return &version
}
