package crawler

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegistrableDomain returns the eTLD+1 of host ("news.bank.co.id" ->
// "bank.co.id"). IP addresses and single-label hosts are returned as-is.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameSite reports whether a and b share a registrable domain.
func SameSite(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	da := RegistrableDomain(a.Hostname())
	return da != "" && da == RegistrableDomain(b.Hostname())
}
