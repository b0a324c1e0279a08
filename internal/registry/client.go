// Package registry is the client for the conference registry's REST
// interface: signed GET requests answered with XML documents, with large
// exports consumed as streams.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
)

// DefaultUserAgent identifies the client to the registry.
const DefaultUserAgent = "confsync-go RegistryClient 0.1"

// Config holds the client settings.
type Config struct {
	BaseURL   string
	Secret    string
	UserAgent string
	// MaxResponseBytes bounds whole-document responses. Exports are
	// streamed and not bounded.
	MaxResponseBytes int64
	// AllowSensitive permits usernames in debug logs.
	AllowSensitive bool
}

// Client talks to one registry endpoint. It is safe for concurrent use as
// long as its NonceSource is.
type Client struct {
	cfg    Config
	base   *url.URL
	http   client.Doer
	nonces NonceSource
	logger *slog.Logger
}

// NewClient creates a registry client. httpClient should not follow
// redirects, see client.Client.OneShot.
func NewClient(cfg Config, httpClient client.Doer, nonces NonceSource, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid registry base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		return nil, errors.New("registry client requires an http client")
	}
	if nonces == nil {
		nonces = NewLocalNonces()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		cfg:    cfg,
		base:   base,
		http:   httpClient,
		nonces: nonces,
		logger: logutil.NoopIfNil(logger),
	}, nil
}

// send signs params and performs the GET. The caller owns the body of a
// successful response.
func (c *Client) send(ctx context.Context, params url.Values) (*http.Response, error) {
	nonce, err := c.nonces.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("next nonce: %w", err)
	}

	q := c.base.Query()
	for k, vs := range params {
		q[k] = slices.Clone(vs)
	}
	q.Set("nonce", strconv.FormatInt(nonce, 10))
	q.Set("passhash", passhash(nonce, c.cfg.Secret))

	u := *c.base
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	c.logger.Log(ctx, logutil.LevelTrace, "registry request",
		"page", params.Get("page"),
		"command", params.Get("command"),
		"export_select", params.Get("export_select"),
		logutil.Sensitive("user", params.Get("user"), c.cfg.AllowSensitive),
		"nonce", nonce)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &Error{
			Kind:    KindUnexpectedResponse,
			Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}
	return resp, nil
}

// document performs a request and returns the root element after checking
// it for an error report.
func (c *Client) document(ctx context.Context, params url.Values) (*element, error) {
	resp, err := c.send(ctx, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := client.ReadLimited(resp.Body, c.cfg.MaxResponseBytes)
	if err != nil {
		return nil, &Error{Kind: KindUnexpectedResponse, Message: "read response", Cause: err}
	}
	root, err := readDocument(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUnexpectedResponse, Message: "malformed XML", Cause: err}
	}
	if err := root.apiError(); err != nil {
		return nil, err
	}
	return root, nil
}

// Login checks a user's registry credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	root, err := c.document(ctx, url.Values{
		"page":     {"remoteLogin"},
		"command":  {"login"},
		"user":     {username},
		"password": {password},
	})
	if err != nil {
		return nil, err
	}
	return parseLogin(root)
}

// UserInfo fetches the account details for username.
func (c *Client) UserInfo(ctx context.Context, username string) (*UserInfo, error) {
	root, err := c.document(ctx, url.Values{
		"page":    {"remoteLogin"},
		"command": {"request"},
		"user":    {username},
	})
	if err != nil {
		return nil, err
	}
	user := root.child("user")
	if user == nil {
		return nil, missingField(root.tag, "user")
	}
	return parseUserInfo(user, username)
}

// exportParams builds the common export query. ids == nil exports
// everything; otherwise the registry is asked to filter by owner.
func exportParams(selection string, ids []int64) url.Values {
	params := url.Values{
		"export_select":        {selection},
		"page":                 {"adminExport"},
		"cmd_create_export":    {"true"},
		"form_include_deleted": {"0"},
		"form_export_format":   {"xml_short"},
		"form_export_header":   {"default"},
	}
	if ids != nil {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}
		params.Set("form_userID", strings.Join(parts, ","))
	}
	return params
}

// ownerCheck guards against the registry ignoring an unknown id in the
// filter and exporting everything instead.
func ownerCheck[T any](selection string, ids []int64, owner func(T) int64) func(T) error {
	if len(ids) == 0 {
		return nil
	}
	return func(rec T) error {
		if !slices.Contains(ids, owner(rec)) {
			return unexpectedUserID(selection, ids)
		}
		return nil
	}
}

// ExportUsers streams the extended users export.
func (c *Client) ExportUsers(ctx context.Context, ids []int64) (*Stream[UserExport], error) {
	params := exportParams("users", ids)
	params["form_export_users_options[]"] = []string{"extended"}

	resp, err := c.send(ctx, params)
	if err != nil {
		return nil, err
	}
	check := ownerCheck("users", ids, func(u UserExport) int64 { return u.PersonID })
	return newStream(resp.Body, "user", parseUserExport, check), nil
}

// ExportPapers streams the papers export with abstracts, extended author
// columns and submitter.
func (c *Client) ExportPapers(ctx context.Context, ids []int64) (*Stream[PaperExport], error) {
	params := exportParams("papers", ids)
	params["form_export_papers_options[]"] = []string{"abstracts", "authors_extended_columns", "submitter"}

	resp, err := c.send(ctx, params)
	if err != nil {
		return nil, err
	}
	check := ownerCheck("papers", ids, func(p PaperExport) int64 { return p.SubmittingAuthorID })
	return newStream(resp.Body, "paper", parsePaperExport, check), nil
}

// ExportUser returns the export record of a single user.
func (c *Client) ExportUser(ctx context.Context, id int64) (*UserExport, error) {
	s, err := c.ExportUsers(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for s.Next() {
		if u := s.Record(); u.PersonID == id {
			return &u, nil
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return nil, unexpected("user %d missing from users export", id)
}

// CollectUsers exports users into a slice.
func (c *Client) CollectUsers(ctx context.Context, ids []int64) ([]UserExport, error) {
	s, err := c.ExportUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.Collect()
}

// CollectPapers exports papers into a slice.
func (c *Client) CollectPapers(ctx context.Context, ids []int64) ([]PaperExport, error) {
	s, err := c.ExportPapers(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.Collect()
}
