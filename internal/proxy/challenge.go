package proxy

import (
	"io"
	"net/http"
	"strings"
)

const acmeChallengePrefix = "/.well-known/acme-challenge/"

// serveACMEChallenge answers an HTTP-01 challenge without touching the
// target. The certificate-issuance collaborator supplies the key
// identifier; without one the responder is inert. Reports whether the
// request was handled.
func serveACMEChallenge(w http.ResponseWriter, r *http.Request, keyAuth string) bool {
	if keyAuth == "" {
		return false
	}
	if !strings.HasPrefix(r.URL.Path, acmeChallengePrefix) {
		return false
	}

	token := strings.TrimPrefix(r.URL.Path, acmeChallengePrefix)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	// The CA compares this byte-for-byte; nothing may follow it.
	_, _ = io.WriteString(w, token+"."+keyAuth)
	return true
}
