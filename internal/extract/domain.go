// Package extract pulls account signals out of a single message's headers.
package extract

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

var (
	unsubHTTPRe   = regexp.MustCompile(`(?i)<\s*(https?://[^>\s]+)\s*>`)
	unsubMailtoRe = regexp.MustCompile(`(?i)<\s*mailto:([^>\s]+)\s*>`)
)

// DomainFromAddress returns the lower-cased domain of an address or a From
// header value. It reports false when no domain can be found.
func DomainFromAddress(from string) (string, bool) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", false
	}
	addrs, err := mail.ParseAddressList(from)
	if err != nil {
		return extractDomain(from)
	}
	for _, addr := range addrs {
		if dom, ok := extractDomain(addr.Address); ok {
			return dom, true
		}
	}
	return "", false
}

func extractDomain(address string) (string, bool) {
	address = strings.ToLower(strings.TrimSpace(address))
	at := strings.LastIndex(address, "@")
	if at == -1 {
		return "", false
	}
	domain := strings.Trim(address[at+1:], ".<>\"' ")
	if domain == "" || strings.ContainsAny(domain, " \t@") {
		return "", false
	}
	return domain, true
}

// DomainFromUnsubscribe reads a List-Unsubscribe header. The host of an
// HTTP(S) URL wins over a mailto address.
func DomainFromUnsubscribe(header string) (string, bool) {
	if strings.TrimSpace(header) == "" {
		return "", false
	}
	for _, m := range unsubHTTPRe.FindAllStringSubmatch(header, -1) {
		u, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		if host := strings.ToLower(u.Hostname()); host != "" {
			return host, true
		}
	}
	for _, m := range unsubMailtoRe.FindAllStringSubmatch(header, -1) {
		addr := m[1]
		if q := strings.IndexByte(addr, '?'); q >= 0 {
			addr = addr[:q]
		}
		if unescaped, err := url.PathUnescape(addr); err == nil {
			addr = unescaped
		}
		if dom, ok := extractDomain(addr); ok {
			return dom, true
		}
	}
	return "", false
}

// ResolveDomain picks the domain for one message: the sender address first,
// the unsubscribe header as fallback.
func ResolveDomain(from, unsubscribe string) (string, bool) {
	if dom, ok := DomainFromAddress(from); ok {
		return dom, true
	}
	return DomainFromUnsubscribe(unsubscribe)
}
