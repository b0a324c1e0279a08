package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// followRedirect follows resp's Location while the policy allows it:
// same host and effective port, no https downgrade, at most MaxRedirects hops.
func (c *Client) followRedirect(orig *http.Request, resp *http.Response, depth int) (*http.Response, error) {
	defer resp.Body.Close()
	ctx := orig.Context()

	limit := c.cfg.MaxRedirects
	if limit <= 0 {
		limit = 1
	}
	if depth >= limit {
		return nil, fmt.Errorf("%w: exceeded limit of %d", ErrTooManyRedirects, limit)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: no Location header", ErrRedirectBlocked)
	}
	target, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid Location: %v", ErrRedirectBlocked, err)
	}
	target = orig.URL.ResolveReference(target)

	if orig.URL.Scheme == "https" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectDowngrade, orig.URL.Scheme, target.Scheme)
	}
	if !sameHost(orig.URL, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectNotSameHost, orig.URL.Host, target.Host)
	}
	if c.strict() {
		if err := c.checkHost(ctx, target.Hostname()); err != nil {
			return nil, err
		}
	}

	next, err := http.NewRequestWithContext(ctx, orig.Method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
	}
	// Authorization is deliberately not carried over.
	for _, h := range []string{"User-Agent", "Accept"} {
		if v := orig.Header.Get(h); v != "" {
			next.Header.Set(h, v)
		}
	}

	nextResp, err := c.httpClient.Do(next)
	if err != nil {
		return nil, err
	}
	if isRedirect(nextResp.StatusCode) {
		return c.followRedirect(next, nextResp, depth+1)
	}
	return nextResp, nil
}

// sameHost compares hostnames case-insensitively and ports after applying
// the scheme default, so https://h and https://h:443 match.
func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
