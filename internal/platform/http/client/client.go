// Package client provides the bounded outbound HTTP client used to reach the
// registry. It ignores proxy environment variables, guards against SSRF and
// follows redirects only under strict same-host rules.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/config"
)

var (
	ErrSSRFBlocked         = errors.New("request blocked by SSRF protection")
	ErrHostUnresolvable    = errors.New("host could not be resolved")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrResponseTooLarge    = errors.New("response body too large")
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrRedirectBlocked     = errors.New("redirect blocked by policy")
	ErrOneShotRedirect     = errors.New("one-shot requests cannot follow redirects")
	ErrRedirectNotSameHost = errors.New("redirect to different host blocked")
	ErrRedirectDowngrade   = errors.New("redirect from https to http blocked")
)

// Doer is the minimal request interface consumers depend on. Both
// *http.Client and the values returned by [Client.OneShot] satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver abstracts DNS resolution for testing.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Client is an HTTP client with SSRF protection and bounded behavior.
type Client struct {
	cfg        *config.OutboundHTTPConfig
	httpClient *http.Client
	resolver   Resolver
}

// New creates a client from the [outbound_http] settings. A nil config
// uses the strict preset.
func New(cfg *config.OutboundHTTPConfig) *Client {
	if cfg == nil {
		defaults := config.StrictConfig().OutboundHTTP
		cfg = &defaults
	}

	c := &Client{cfg: cfg}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			// Checked again at dial time so DNS rebinding between the
			// preflight and the connection is caught.
			if c.strict() {
				if err := c.checkAddr(ctx, addr); err != nil {
					return nil, err
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

// SetResolver sets a custom DNS resolver (for testing).
func (c *Client) SetResolver(r Resolver) {
	c.resolver = r
}

// MaxResponseBytes is the configured bound for whole-body reads.
func (c *Client) MaxResponseBytes() int64 {
	return c.cfg.MaxResponseBytes
}

func (c *Client) strict() bool {
	return c.cfg.SSRFMode == "strict"
}

// Get performs a GET request that may follow redirects.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return c.Do(req)
}

// Do performs a request that may follow redirects under the same-host policy.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, false)
}

// DoOnce performs a request that must reach its target directly. Requests
// carrying a single-use nonce go through here: replaying them at a
// redirect target would be rejected by the registry anyway.
func (c *Client) DoOnce(req *http.Request) (*http.Response, error) {
	return c.do(req, true)
}

func (c *Client) do(req *http.Request, once bool) (*http.Response, error) {
	if c.strict() {
		if err := c.checkHost(req.Context(), req.URL.Hostname()); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if !isRedirect(resp.StatusCode) {
		return resp, nil
	}
	if once {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: received %d", ErrOneShotRedirect, resp.StatusCode)
	}
	return c.followRedirect(req, resp, 0)
}

type oneShot struct{ c *Client }

func (o oneShot) Do(req *http.Request) (*http.Response, error) { return o.c.DoOnce(req) }

// OneShot returns a Doer that never follows redirects.
func (c *Client) OneShot() Doer {
	return oneShot{c: c}
}

// ReadLimited reads r fully, failing with ErrResponseTooLarge past max bytes.
// A max of zero or less disables the bound.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrResponseTooLarge, max)
	}
	return body, nil
}

// IsSSRFError returns true if the error is an SSRF blocking error.
func IsSSRFError(err error) bool {
	return errors.Is(err, ErrSSRFBlocked) || errors.Is(err, ErrHostUnresolvable)
}

// IsRedirectError returns true if the error is a redirect-related error.
func IsRedirectError(err error) bool {
	return errors.Is(err, ErrRedirectBlocked) ||
		errors.Is(err, ErrOneShotRedirect) ||
		errors.Is(err, ErrRedirectNotSameHost) ||
		errors.Is(err, ErrRedirectDowngrade) ||
		errors.Is(err, ErrTooManyRedirects)
}
