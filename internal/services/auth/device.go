package auth

import (
	"strings"

	"exchange/internal/models"

	"github.com/mssola/useragent"
)

// describeDevice turns a User-Agent into a display name ("Chrome on Linux")
// plus metadata stored on the session.
func describeDevice(userAgent string) (string, models.JSON) {
	if userAgent == "" {
		return "Unknown Device", models.JSON{"platform": "unknown"}
	}

	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	os := ua.OS()

	platform := "desktop"
	switch {
	case ua.Bot():
		platform = "bot"
	case ua.Mobile():
		platform = "mobile"
	}

	meta := models.JSON{
		"browser":        browser,
		"browserVersion": version,
		"os":             os,
		"platform":       platform,
	}

	if ua.Mobile() && ua.Platform() != "" {
		return strings.TrimSpace(browser + " on " + ua.Platform()), meta
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os), meta
}
