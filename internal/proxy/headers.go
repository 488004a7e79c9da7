package proxy

import (
	"net/http"
	"strings"

	"portway.dev/portway/internal/rewrite"
)

// isUpgradeRequest reports whether r asks for a protocol upgrade
// (WebSocket being the interesting case).
func isUpgradeRequest(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// rewriteUpgradeOrigins substitutes public hostnames with their target
// counterparts in every Origin value, so the upstream sees the origin it
// expects during a WebSocket handshake.
func rewriteUpgradeOrigins(h http.Header, table *rewrite.Table) {
	values := h.Values("Origin")
	if len(values) == 0 {
		return
	}

	rewritten := make([]string, len(values))
	for i, v := range values {
		rewritten[i] = table.ReverseString(v)
	}
	h["Origin"] = rewritten
}

// stripCookieDomains removes the Domain attribute from every Set-Cookie
// value so cookies bind to whichever host the browser actually used.
func stripCookieDomains(h http.Header) {
	cookies := h.Values("Set-Cookie")
	if len(cookies) == 0 {
		return
	}

	stripped := make([]string, len(cookies))
	for i, c := range cookies {
		stripped[i] = stripCookieDomain(c)
	}
	h["Set-Cookie"] = stripped
}

func stripCookieDomain(cookie string) string {
	parts := strings.Split(cookie, ";")

	kept := parts[:0]
	for i, p := range parts {
		if i > 0 && strings.HasPrefix(strings.ToLower(strings.TrimSpace(p)), "domain=") {
			continue
		}
		kept = append(kept, strings.TrimSpace(p))
	}

	return strings.Join(kept, "; ")
}
