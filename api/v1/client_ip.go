package v1

import (
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are read in order after X-Forwarded-For. Storefront calls
// arrive either directly from the browser or through Shopify's app proxy,
// often behind a CDN.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Client-IP",
}

// carrierNAT is the RFC 6598 shared address space.
var carrierNAT = netip.MustParsePrefix("100.64.0.0/10")

// clientIP returns the visitor's public address, or "" when the request
// only carries private ones. It is only used to resolve a country when the
// storefront sent none.
func clientIP(c *fiber.Ctx) string {
	if ip := firstPublic(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
		return ip
	}
	for _, header := range proxyHeaders {
		if ip := firstPublic([]string{c.Get(header)}); ip != "" {
			return ip
		}
	}
	if ip := firstPublic(forwardedFor(c.Get("Forwarded"))); ip != "" {
		return ip
	}
	return firstPublic([]string{c.Context().RemoteAddr().String(), c.IP()})
}

// firstPublic returns the first public IPv4 address among values, else the
// first public IPv6 one.
func firstPublic(values []string) string {
	var v6 netip.Addr
	for _, raw := range values {
		addr, ok := parseAddr(raw)
		if !ok || !isPublic(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if !v6.IsValid() {
			v6 = addr
		}
	}
	if v6.IsValid() {
		return v6.String()
	}
	return ""
}

// parseAddr accepts bare, bracketed, quoted and host:port forms. Zones are
// dropped and IPv4-mapped addresses unmapped.
func parseAddr(raw string) (netip.Addr, bool) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	if s == "" {
		return netip.Addr{}, false
	}

	var addr netip.Addr
	if ap, err := netip.ParseAddrPort(s); err == nil {
		addr = ap.Addr()
	} else {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		parsed, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Addr{}, false
		}
		addr = parsed
	}
	return addr.Unmap().WithZone(""), true
}

func isPublic(addr netip.Addr) bool {
	return addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!carrierNAT.Contains(addr)
}

// forwardedFor extracts the for= values of an RFC 7239 Forwarded header.
func forwardedFor(header string) []string {
	var values []string
	for _, element := range strings.Split(header, ",") {
		for _, pair := range strings.Split(element, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && strings.EqualFold(key, "for") {
				values = append(values, value)
			}
		}
	}
	return values
}
