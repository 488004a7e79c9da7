package rewrite

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"portway.dev/portway/internal/config"
)

func buildTestTable(t *testing.T) *Table {
	t.Helper()

	table, err := BuildTable([]config.Domain{
		{TargetURL: "http://target.local", PublicURL: "http://public.example"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return table
}

func TestContentTypeRewritable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		contentType string
		want        bool
	}{
		{"text/html; charset=utf-8", true},
		{"text/html", true},
		{"application/xhtml+xml", true},
		{"text/css", true},
		{"application/javascript", true},
		{"text/javascript; charset=utf-8", true},
		{"application/octet-stream", false},
		{"image/png", false},
		{"application/json", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := contentTypeRewritable(tc.contentType); got != tc.want {
			t.Fatalf("contentTypeRewritable(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

func TestResponseRewriter_htmlBody(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", "41")
	w.WriteHeader(http.StatusOK)

	n, err := w.Write([]byte(`<a href="http://target.local/x">link</a>`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := len(`<a href="http://target.local/x">link</a>`); n != want {
		t.Fatalf("n = %d, want %d", n, want)
	}

	if got, want := rec.Body.String(), `<a href="http://public.example/x">link</a>`; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Content-Length"); got != "" {
		t.Fatalf("Content-Length = %q, want removed", got)
	}
	if got, want := w.StatusCode(), http.StatusOK; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}
}

func TestResponseRewriter_binaryBodyPassesThrough(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", "12")
	w.WriteHeader(http.StatusOK)

	payload := []byte("target.local")
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := rec.Body.String(); got != "target.local" {
		t.Fatalf("body = %q, want untouched", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "12" {
		t.Fatalf("Content-Length = %q, want kept", got)
	}
}

func TestResponseRewriter_corsHeaderIndependentOfBodyDecision(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Access-Control-Allow-Origin", "http://target.local")
	w.WriteHeader(http.StatusOK)

	if got, want := rec.Header().Get("Access-Control-Allow-Origin"), "http://public.example"; got != want {
		t.Fatalf("allow-origin = %q, want %q", got, want)
	}
}

func TestResponseRewriter_missingContentTypeFailsClosed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("http://target.local")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := rec.Body.String(); got != "http://target.local" {
		t.Fatalf("body = %q, want untouched", got)
	}
}

func TestResponseRewriter_decisionFixedAcrossChunks(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	// Later chunks cannot flip the decision, whatever they contain.
	chunks := []string{"<p>", "see target.local", " and target.local again", "</p>"}
	for _, c := range chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	want := "<p>see public.example and public.example again</p>"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestResponseRewriter_implicitWriteHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	w.Header().Set("Content-Type", "application/javascript")

	if _, err := w.Write([]byte(`import "http://target.local/m.js"`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, want := rec.Body.String(), `import "http://public.example/m.js"`; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
	if got, want := w.StatusCode(), http.StatusOK; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}
}

func TestResponseRewriter_unwrap(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseRewriter(rec, buildTestTable(t))

	if got := w.Unwrap(); got != http.ResponseWriter(rec) {
		t.Fatalf("Unwrap = %v, want the wrapped recorder", got)
	}
}
