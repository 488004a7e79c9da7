package proxy

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"portway.dev/portway/internal/config"
	"portway.dev/portway/internal/errorpage"
	"portway.dev/portway/internal/inspect"
	"portway.dev/portway/internal/logging"
	"portway.dev/portway/internal/rewrite"
)

// Options configures Start. Everything is optional.
type Options struct {
	// ACMEKeyAuth is the key identifier from the certificate-issuance
	// collaborator. Empty leaves the challenge responder inert.
	ACMEKeyAuth string

	Logger    logging.Logger
	ErrorPage errorpage.Renderer
	Inspector *inspect.Store
}

// Announcement pairs a bound local address with the public URL it serves.
type Announcement struct {
	LocalAddr string
	PublicURL string
}

// Group owns the listeners started for one configuration. When
// reverse-proxying is disabled it is an inert no-op handle.
type Group struct {
	mu            sync.Mutex
	listeners     []*Listener
	announcements []Announcement
}

// Start builds the domain table once and starts one listener per
// redirect, sequentially, in configuration order.
//
// On a bind failure the error is returned and no further listeners are
// started; listeners already running are not rolled back. The returned
// Group always holds whatever was started, so callers can still Destroy
// after a partial startup.
func Start(cfg config.File, opts Options) (*Group, error) {
	g := &Group{}

	if !cfg.ProxyEnabled() {
		return g, nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	table, err := rewrite.BuildTable(cfg.Domains)
	if err != nil {
		return g, fmt.Errorf("build domain table: %w", err)
	}

	var outbound *url.URL
	if p := strings.TrimSpace(cfg.OutboundProxy); p != "" {
		outbound, err = url.Parse(p)
		if err != nil {
			return g, fmt.Errorf("outbound proxy: %w", err)
		}
	}

	for _, redirect := range cfg.Redirects {
		l, err := NewListener(redirect, ListenerOptions{
			Table:         table,
			OutboundProxy: outbound,
			ACMEKeyAuth:   opts.ACMEKeyAuth,
			Logger:        logger,
			ErrorPage:     opts.ErrorPage,
			Inspector:     opts.Inspector,
		})
		if err != nil {
			return g, err
		}

		g.listeners = append(g.listeners, l)
		logger.Info("listener bound",
			logging.F("addr", l.Addr()),
			logging.F("target", l.Target()),
		)

		if pub, ok := table.PublicURLFor(redirect.TargetURL); ok {
			g.announcements = append(g.announcements, Announcement{
				LocalAddr: l.Addr(),
				PublicURL: pub,
			})
		}
	}

	return g, nil
}

// OnPublicURL invokes callback once per listener that resolved to a
// configured public URL. Announcements are recorded during Start, so
// callbacks registered afterwards still see every one, in listener
// order.
func (g *Group) OnPublicURL(callback func(localAddr, publicURL string)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, a := range g.announcements {
		callback(a.LocalAddr, a.PublicURL)
	}
}

// Destroy closes every listener's socket without draining in-flight
// requests. Callers track closed state; destroying twice is undefined.
func (g *Group) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, l := range g.listeners {
		_ = l.Close()
	}
}

// Listeners returns the started listeners, in configuration order.
func (g *Group) Listeners() []*Listener {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Listener, len(g.listeners))
	copy(out, g.listeners)
	return out
}
