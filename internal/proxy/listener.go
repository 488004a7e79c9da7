package proxy

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"portway.dev/portway/internal/config"
	"portway.dev/portway/internal/errorpage"
	"portway.dev/portway/internal/inspect"
	"portway.dev/portway/internal/logging"
	"portway.dev/portway/internal/rewrite"
)

// ListenerOptions carries the shared collaborators every listener wires
// into its request path.
type ListenerOptions struct {
	Table *rewrite.Table

	// OutboundProxy routes upstream connections through a proxy. Nil
	// means the environment proxy settings apply.
	OutboundProxy *url.URL

	// ACMEKeyAuth enables the HTTP-01 challenge responder. Empty means
	// challenges fall through to the target like any other request.
	ACMEKeyAuth string

	Logger    logging.Logger
	ErrorPage errorpage.Renderer
	Inspector *inspect.Store
}

// Listener is one reverse-proxy server bound to one local port,
// forwarding to one target. Failures upstream are isolated per request;
// the socket keeps accepting until Close.
type Listener struct {
	redirect config.Redirect
	target   *url.URL
	table    *rewrite.Table

	keyAuth   string
	logger    logging.Logger
	errorPage errorpage.Renderer
	inspector *inspect.Store

	proxy *httputil.ReverseProxy
	ln    net.Listener
	srv   *http.Server
}

// NewListener binds the redirect's port and starts serving. A bind
// failure is returned before anything is started.
func NewListener(redirect config.Redirect, opts ListenerOptions) (*Listener, error) {
	target, err := url.Parse(strings.TrimSpace(redirect.TargetURL))
	if err != nil {
		return nil, fmt.Errorf("redirect target: %w", err)
	}
	if target.Host == "" {
		return nil, errors.New("redirect target has no host")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	renderer := opts.ErrorPage
	if renderer == nil {
		renderer = errorpage.NewHTML()
	}

	l := &Listener{
		redirect:  redirect,
		target:    target,
		table:     opts.Table,
		keyAuth:   opts.ACMEKeyAuth,
		logger:    logger.With(logging.F("port", redirect.LocalPort), logging.F("target", target.String())),
		errorPage: renderer,
		inspector: opts.Inspector,
	}
	l.proxy = l.newReverseProxy(opts.OutboundProxy)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", redirect.LocalPort))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", redirect.LocalPort, err)
	}
	l.ln = ln

	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("listener stopped", logging.F("err", err))
		}
	}()

	return l, nil
}

// Addr is the bound local address.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Target is the upstream this listener forwards to.
func (l *Listener) Target() string {
	return l.target.String()
}

// Close releases the socket and drops in-flight requests. There is no
// drain; abrupt termination is the intended teardown behavior.
func (l *Listener) Close() error {
	return l.srv.Close()
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if serveACMEChallenge(w, r, l.keyAuth) {
		l.logger.Info("acme challenge answered", logging.F("path", r.URL.Path))
		return
	}

	start := time.Now()

	var (
		sink   http.ResponseWriter = w
		status func() int
	)

	if !l.table.Empty() {
		rw := rewrite.NewResponseRewriter(w, l.table)
		sink = rw
		status = rw.StatusCode
	} else if l.inspector != nil {
		sr := &statusRecorder{ResponseWriter: w}
		sink = sr
		status = sr.statusCode
	}

	l.proxy.ServeHTTP(sink, r)

	if l.inspector != nil && status != nil {
		l.inspector.Add(inspect.Entry{
			StartedAt:  start.UTC(),
			DurationMs: time.Since(start).Milliseconds(),
			LocalPort:  l.redirect.LocalPort,
			Method:     r.Method,
			Path:       r.URL.Path,
			Host:       r.Host,
			StatusCode: status(),
			Rewritten:  !l.table.Empty(),
			Upgrade:    isUpgradeRequest(r),
		})
	}
}

func (l *Listener) newReverseProxy(outbound *url.URL) *httputil.ReverseProxy {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// Local targets routinely run self-signed TLS; the hop is
		// loopback-only anyway.
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
		ForceAttemptHTTP2: false,
	}
	if outbound != nil {
		transport.Proxy = http.ProxyURL(outbound)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(l.target)
			pr.Out.Host = l.target.Host
			pr.SetXForwarded()

			if isUpgradeRequest(pr.In) {
				rewriteUpgradeOrigins(pr.Out.Header, l.table)
			}
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			stripCookieDomains(resp.Header)
			return nil
		},
		ErrorHandler: l.handleProxyError,
	}
}

func (l *Listener) handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	errID := uuid.NewString()

	message := fmt.Sprintf("Could not reach %s.", l.target.Host)
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		message = fmt.Sprintf("Could not resolve host %s.", dnsErr.Name)
	}

	l.logger.Error("upstream request failed",
		logging.F("method", r.Method),
		logging.F("path", r.URL.Path),
		logging.F("err", err),
		logging.F("error_id", errID),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(l.errorPage.Render(errorpage.Data{
		Message: message,
		Detail:  fmt.Sprintf("%v\n\nerror id: %s", err, errID),
	}))
}

// statusRecorder captures the response status when the rewrite gate is
// bypassed, so the inspector still sees it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) statusCode() int {
	return w.status
}
