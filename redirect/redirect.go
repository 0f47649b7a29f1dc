package redirect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shiftkey/vcr"
)

// hopLimit is the highest redirect count at which one more redirect is still
// followed, so at most hopLimit+1 redirects are followed per request.
const hopLimit = 3

// MaxRedirects is the number of redirects followed before Send fails.
const MaxRedirects = hopLimit + 1

// credentialHeaders are removed when a redirect changes host.
var credentialHeaders = []string{"Authorization", "Www-Authenticate", "Cookie", "Cookie2"}

// Transport is a vcr.Sender that follows redirects returned by its inner
// Sender.
type Transport struct {
	next vcr.Sender

	// Logger receives a debug record for every redirect followed. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

var _ vcr.Sender = (*Transport)(nil)

// New returns a Transport sending through next.
func New(next vcr.Sender) *Transport {
	return &Transport{next: next}
}

// Send implements vcr.Sender.
//
// The caller's request is cloned before it is sent and never modified. Each
// redirect is applied to a fresh clone of the previous hop's request, which
// carries the redirect count in its Properties under vcr.RedirectCountKey.
func (t *Transport) Send(ctx context.Context, req *vcr.Request) (*vcr.Response, error) {
	if t.next == nil {
		return nil, errors.New("redirect: transport has no inner sender")
	}
	if req.Timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}

	cur, err := req.Clone()
	if err != nil {
		return nil, err
	}
	via := []string{cur.URI()}

	for {
		resp, err := t.next.Send(ctx, cur)
		if err != nil {
			return nil, err
		}

		location := resp.Header.Get("Location")
		if location == "" || !isRedirectStatus(resp.StatusCode) {
			return resp, nil
		}

		hops := hopCount(cur)
		if hops > hopLimit {
			return nil, &TooManyRedirectsError{Limit: MaxRedirects, Via: via}
		}

		next, err := cur.Clone()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusSeeOther {
			next.Method = http.MethodGet
			next.Body = vcr.NoBody()
			next.ContentType = ""
		}

		target, err := resolveRedirectLocation(cur.URL, location)
		if err != nil {
			return nil, err
		}
		next.URL = target
		hops++
		next.Properties[vcr.RedirectCountKey] = hops

		if !sameHost(cur.URL, target) {
			for _, h := range credentialHeaders {
				next.Header.Del(h)
			}
		}

		log.DebugContext(ctx, "following redirect",
			"component", "redirect",
			"status", resp.StatusCode,
			"from", cur.URI(),
			"to", next.URI(),
			"hop", hops)

		via = append(via, next.URI())
		cur = next
	}
}

// isRedirectStatus returns true for the redirect statuses that are followed.
func isRedirectStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently, // 301
		http.StatusFound,             // 302
		http.StatusSeeOther,          // 303
		http.StatusTemporaryRedirect, // 307
		http.StatusPermanentRedirect: // 308
		return true
	}
	return false
}

func hopCount(req *vcr.Request) int {
	if n, ok := req.Properties[vcr.RedirectCountKey].(int); ok {
		return n
	}
	return 0
}

// resolveRedirectLocation resolves a Location header against the URL of the
// request that received it (RFC 3986 section 5).
func resolveRedirectLocation(base *url.URL, location string) (*url.URL, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("redirect: malformed redirect location: %w", err)
	}
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// sameHost compares host names case-insensitively, ignoring ports.
func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == b
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
