package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"portway.dev/portway/internal/config"
	"portway.dev/portway/internal/rewrite"
)

func upgradeTestTable(t *testing.T) *rewrite.Table {
	t.Helper()

	table, err := rewrite.BuildTable([]config.Domain{
		{TargetURL: "http://localhost:3000", PublicURL: "https://app.example"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return table
}

func TestIsUpgradeRequest(t *testing.T) {
	t.Parallel()

	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if isUpgradeRequest(plain) {
		t.Fatalf("plain request reported as upgrade")
	}

	ws := httptest.NewRequest(http.MethodGet, "/", nil)
	ws.Header.Set("Connection", "keep-alive, Upgrade")
	ws.Header.Set("Upgrade", "websocket")
	if !isUpgradeRequest(ws) {
		t.Fatalf("websocket handshake not reported as upgrade")
	}

	noConn := httptest.NewRequest(http.MethodGet, "/", nil)
	noConn.Header.Set("Upgrade", "websocket")
	if isUpgradeRequest(noConn) {
		t.Fatalf("Upgrade without Connection token reported as upgrade")
	}
}

func TestRewriteUpgradeOrigins_scalar(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Origin", "http://app.example")

	rewriteUpgradeOrigins(h, upgradeTestTable(t))

	if got, want := h.Get("Origin"), "http://localhost:3000"; got != want {
		t.Fatalf("origin = %q, want %q", got, want)
	}
}

func TestRewriteUpgradeOrigins_list(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Add("Origin", "https://app.example")
	h.Add("Origin", "https://other.example")

	rewriteUpgradeOrigins(h, upgradeTestTable(t))

	got := h.Values("Origin")
	if len(got) != 2 {
		t.Fatalf("values = %v, want 2 entries", got)
	}
	if got[0] != "http://localhost:3000" {
		t.Fatalf("origin[0] = %q, want %q", got[0], "http://localhost:3000")
	}
	if got[1] != "https://other.example" {
		t.Fatalf("origin[1] = %q, want untouched", got[1])
	}
}

func TestStripCookieDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{
			"session=abc; Domain=target.local; Path=/; HttpOnly",
			"session=abc; Path=/; HttpOnly",
		},
		{
			"session=abc; domain=.target.local",
			"session=abc",
		},
		{
			"session=abc; Path=/",
			"session=abc; Path=/",
		},
		{
			"session=abc",
			"session=abc",
		},
	}

	for _, tc := range cases {
		if got := stripCookieDomain(tc.in); got != tc.want {
			t.Fatalf("stripCookieDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripCookieDomains_allValues(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Add("Set-Cookie", "a=1; Domain=target.local; Path=/")
	h.Add("Set-Cookie", "b=2; Secure; Domain=target.local")

	stripCookieDomains(h)

	got := h.Values("Set-Cookie")
	if got[0] != "a=1; Path=/" {
		t.Fatalf("cookie[0] = %q", got[0])
	}
	if got[1] != "b=2; Secure" {
		t.Fatalf("cookie[1] = %q", got[1])
	}
}
