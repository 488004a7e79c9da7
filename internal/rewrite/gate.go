package rewrite

import (
	"net/http"
	"strings"
)

// rewritableContentTypes gates body substitution. Only markup, stylesheet
// and script payloads are safe to rewrite; anything else (and a missing
// Content-Type) passes through untouched.
var rewritableContentTypes = []string{
	"text/html",
	"application/xhtml",
	"text/css",
	"javascript",
}

func contentTypeRewritable(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range rewritableContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

// ResponseRewriter wraps an http.ResponseWriter and substitutes target
// hostnames with their public counterparts in the response. The body
// decision is made exactly once, from the Content-Type present when
// headers are flushed, and holds for the rest of the response.
type ResponseRewriter struct {
	inner http.ResponseWriter
	table *Table

	wroteHeader bool
	rewriteBody bool
	status      int
}

// NewResponseRewriter wraps w. Callers should skip wrapping entirely when
// table.Empty() is true.
func NewResponseRewriter(w http.ResponseWriter, table *Table) *ResponseRewriter {
	return &ResponseRewriter{inner: w, table: table}
}

func (w *ResponseRewriter) Header() http.Header {
	return w.inner.Header()
}

func (w *ResponseRewriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = statusCode

	h := w.inner.Header()

	w.rewriteBody = contentTypeRewritable(h.Get("Content-Type"))
	if w.rewriteBody {
		// Substitution changes the body length; a stale value must never
		// reach the client.
		h.Del("Content-Length")
	}

	// CORS origins name the target host regardless of the body payload
	// type, so this does not depend on the body decision.
	if values := h.Values("Access-Control-Allow-Origin"); len(values) > 0 {
		rewritten := make([]string, len(values))
		for i, v := range values {
			rewritten[i] = w.table.ForwardString(v)
		}
		h["Access-Control-Allow-Origin"] = rewritten
	}

	w.inner.WriteHeader(statusCode)
}

func (w *ResponseRewriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	if !w.rewriteBody {
		return w.inner.Write(b)
	}

	if _, err := w.inner.Write(w.table.RewriteForward(b)); err != nil {
		return 0, err
	}
	// Report the caller's byte count; the substituted length is an
	// implementation detail of the wire.
	return len(b), nil
}

func (w *ResponseRewriter) Flush() {
	if f, ok := w.inner.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the native sink for http.ResponseController, which the
// proxy transport needs to hijack WebSocket upgrades.
func (w *ResponseRewriter) Unwrap() http.ResponseWriter {
	return w.inner
}

// StatusCode reports the status sent so far, or zero before headers.
func (w *ResponseRewriter) StatusCode() int {
	return w.status
}
