package rewrite

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"portway.dev/portway/internal/config"
)

// Table holds the bidirectional hostname substitutions derived from the
// domain configuration. It is built once and never mutated afterwards, so
// concurrent reads from any number of listeners are safe.
//
// Substitutions are registered at two granularities per domain: the full
// origin ("http://localhost:3000" -> "https://app.example") so absolute
// URLs in page content pick up the public scheme, and the bare host
// ("localhost:3000" -> "app.example") so headers that carry their own
// scheme keep it. Candidates are matched longest-first, which also makes
// the origin entry win over its embedded host entry.
type Table struct {
	forward map[string]string
	reverse map[string]string

	forwardPattern *regexp.Regexp
	reversePattern *regexp.Regexp

	// publicByTargetHost resolves a redirect's target to its announced
	// public URL, keyed by normalized target host.
	publicByTargetHost map[string]string
}

// BuildTable derives the substitution table from the domain configuration.
// Domains without a public URL contribute nothing. Identical input always
// yields an identical table.
func BuildTable(domains []config.Domain) (*Table, error) {
	t := &Table{
		forward:            make(map[string]string),
		reverse:            make(map[string]string),
		publicByTargetHost: make(map[string]string),
	}

	for _, d := range domains {
		publicRaw := strings.TrimSpace(d.PublicURL)
		if publicRaw == "" {
			continue
		}

		target, err := url.Parse(strings.TrimSpace(d.TargetURL))
		if err != nil {
			return nil, err
		}
		public, err := url.Parse(publicRaw)
		if err != nil {
			return nil, err
		}

		targetHost := NormalizeHost(target.Host)
		publicHost := NormalizeHost(public.Host)
		if targetHost == "" || publicHost == "" {
			continue
		}

		t.addPair(originOf(target), originOf(public))
		t.addPair(targetHost, publicHost)

		if _, exists := t.publicByTargetHost[targetHost]; !exists {
			t.publicByTargetHost[targetHost] = publicRaw
		}
	}

	t.forwardPattern = compileAlternation(t.forward)
	t.reversePattern = compileAlternation(t.reverse)

	return t, nil
}

// addPair registers a substitution in both directions. First registration
// wins; a key never maps to two different values.
func (t *Table) addPair(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	if _, exists := t.forward[from]; exists {
		return
	}
	if _, exists := t.reverse[to]; exists {
		return
	}
	t.forward[from] = to
	t.reverse[to] = from
}

// Empty reports whether the table performs no substitutions at all, which
// lets callers skip response interception entirely.
func (t *Table) Empty() bool {
	return t == nil || t.forwardPattern == nil
}

// RewriteForward substitutes target hostnames with their public
// counterparts in one pass over b. The input is returned untouched when
// the table is empty.
func (t *Table) RewriteForward(b []byte) []byte {
	if t.Empty() {
		return b
	}
	return t.forwardPattern.ReplaceAllFunc(b, func(m []byte) []byte {
		if to, ok := t.forward[string(m)]; ok {
			return []byte(to)
		}
		return m
	})
}

// ForwardString is RewriteForward for header values.
func (t *Table) ForwardString(s string) string {
	if t.Empty() {
		return s
	}
	return t.forwardPattern.ReplaceAllStringFunc(s, func(m string) string {
		if to, ok := t.forward[m]; ok {
			return to
		}
		return m
	})
}

// ReverseString substitutes public hostnames with their target
// counterparts. Used on inbound WebSocket upgrade headers.
func (t *Table) ReverseString(s string) string {
	if t == nil || t.reversePattern == nil {
		return s
	}
	return t.reversePattern.ReplaceAllStringFunc(s, func(m string) string {
		if from, ok := t.reverse[m]; ok {
			return from
		}
		return m
	})
}

// PublicURLFor returns the configured public URL for a target URL, if the
// domain configuration announces one.
func (t *Table) PublicURLFor(targetURL string) (string, bool) {
	if t == nil {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil {
		return "", false
	}
	pub, ok := t.publicByTargetHost[NormalizeHost(u.Host)]
	return pub, ok
}

// NormalizeHost lowercases a host[:port] and strips a trailing dot from
// the name part.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.HasSuffix(host, "]") {
		name := strings.TrimSuffix(host[:i], ".")
		host = name + host[i:]
	}
	return host
}

func originOf(u *url.URL) string {
	if u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + NormalizeHost(u.Host)
}

// compileAlternation builds one pattern matching every key, longest key
// first so a hostname that is a substring of another never matches
// partially.
func compileAlternation(m map[string]string) *regexp.Regexp {
	if len(m) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}

	return regexp.MustCompile(strings.Join(quoted, "|"))
}
