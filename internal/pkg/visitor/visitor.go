// Package visitor turns raw storefront signals into the canonical attributes
// targeting rules are written against.
package visitor

import (
	"encoding/json"
	"net"
	"net/url"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sentinel values returned when a signal is absent or cannot be parsed.
const (
	UnknownCountry = "Unknown"
	NoCampaign     = "none"
)

// Device types
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Browsers
const (
	BrowserChrome  = "chrome"
	BrowserFirefox = "firefox"
	BrowserSafari  = "safari"
	BrowserEdge    = "edge"
	BrowserOther   = "other"
)

// Traffic sources
const (
	SourceDirect    = "direct"
	SourceGoogle    = "google"
	SourceFacebook  = "facebook"
	SourceTwitter   = "twitter"
	SourceInstagram = "instagram"
	SourceOther     = "other"
)

// Context is the raw, per-evaluation description of a storefront visitor.
type Context struct {
	Shop            string `json:"shop"`
	UserID          string `json:"userId"`
	SessionID       string `json:"sessionId"`
	PageURL         string `json:"pageUrl"`
	Referrer        string `json:"referrer"`
	UserAgent       string `json:"userAgent"`
	Geolocation     string `json:"geolocation"`
	VisitCount      int    `json:"visitCount"`
	SessionDuration int    `json:"sessionDuration"`
	PagesViewed     int    `json:"pagesViewed"`
	IPAddress       string `json:"-"`
}

// Attributes are the normalized signals of a Context.
type Attributes struct {
	Country         string `json:"country"`
	DeviceType      string `json:"deviceType"`
	Browser         string `json:"browser"`
	TrafficSource   string `json:"trafficSource"`
	Campaign        string `json:"campaign"`
	VisitCount      int    `json:"visitCount"`
	SessionDuration int    `json:"sessionDuration"`
	PagesViewed     int    `json:"pagesViewed"`
}

// Normalize derives Attributes from a Context. geoDB may be nil, in which
// case the country comes from the geolocation payload alone.
func Normalize(vc Context, geoDB *geoip2.Reader) Attributes {
	return Attributes{
		Country:         ResolveCountry(vc.Geolocation, vc.IPAddress, geoDB),
		DeviceType:      DetectDeviceType(vc.UserAgent),
		Browser:         DetectBrowser(vc.UserAgent),
		TrafficSource:   CategorizeTrafficSource(vc.Referrer),
		Campaign:        ExtractCampaign(vc.PageURL),
		VisitCount:      vc.VisitCount,
		SessionDuration: vc.SessionDuration,
		PagesViewed:     vc.PagesViewed,
	}
}

// ExtractCountry returns the "country" field of a geolocation JSON payload,
// or UnknownCountry when the payload is malformed or has no usable country.
func ExtractCountry(geolocationJSON string) string {
	var payload struct {
		Country any `json:"country"`
	}
	if err := json.Unmarshal([]byte(geolocationJSON), &payload); err != nil {
		return UnknownCountry
	}
	country, ok := payload.Country.(string)
	if !ok {
		return UnknownCountry
	}
	country = strings.TrimSpace(country)
	if country == "" {
		return UnknownCountry
	}
	return country
}

// ResolveCountry behaves like ExtractCountry, falling back to a GeoLite2
// lookup of ip when the payload yields nothing.
func ResolveCountry(geolocationJSON, ip string, geoDB *geoip2.Reader) string {
	country := ExtractCountry(geolocationJSON)
	if country != UnknownCountry || geoDB == nil || ip == "" {
		return country
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return UnknownCountry
	}
	record, err := geoDB.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return UnknownCountry
	}
	return record.Country.IsoCode
}

// DetectDeviceType classifies a user agent. A tablet signature wins over the
// generic mobile markers that most tablets also carry.
func DetectDeviceType(userAgent string) string {
	switch {
	case patterns.matches(tabletPattern, userAgent):
		return DeviceTablet
	case patterns.matches(mobilePattern, userAgent):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// DetectBrowser returns the first browser whose signature matches.
func DetectBrowser(userAgent string) string {
	for _, bp := range browserPatterns {
		if patterns.matches(bp.pattern, userAgent) {
			return bp.name
		}
	}
	return BrowserOther
}

// CategorizeTrafficSource maps a referrer URL to a traffic source.
func CategorizeTrafficSource(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return SourceDirect
	}

	host := referrerHost(referrer)
	for _, entry := range getSources() {
		if entry.matches(host) {
			return entry.Source
		}
	}
	return SourceOther
}

func referrerHost(referrer string) string {
	if u, err := url.Parse(referrer); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	// Bare hosts such as "google.com/search" parse without a hostname.
	host := strings.ToLower(referrer)
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return host
}

// ExtractCampaign returns the utm_campaign parameter of a page URL, or
// NoCampaign. A value with a malformed escape is returned as written.
func ExtractCampaign(pageURL string) string {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return NoCampaign
	}
	campaign := strings.TrimSpace(queryParam(u.RawQuery, "utm_campaign"))
	if campaign == "" {
		return NoCampaign
	}
	return campaign
}

// queryParam returns the first value of key in rawQuery. Unlike url.Values it
// keeps pairs that fail to unescape, raw.
func queryParam(rawQuery, key string) string {
	if values, err := url.ParseQuery(rawQuery); err == nil {
		return values.Get(key)
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		name, value, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		if name != key {
			continue
		}
		if unescaped, err := url.QueryUnescape(value); err == nil {
			return unescaped
		}
		return value
	}
	return ""
}

var countries = gountries.New()

// IsKnownCountry reports whether code is an ISO 3166 alpha-2 or alpha-3 code.
func IsKnownCountry(code string) bool {
	_, err := countries.FindCountryByAlpha(strings.ToUpper(code))
	return err == nil
}

// CountryName returns the common English name for a country code, or the
// upper-cased code when it is not recognized.
func CountryName(code string) string {
	if code == UnknownCountry {
		return UnknownCountry
	}
	country, err := countries.FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}

// Label returns a display label for a normalized device, browser or source.
func Label(value string) string {
	return cases.Title(language.AmericanEnglish).String(value)
}
