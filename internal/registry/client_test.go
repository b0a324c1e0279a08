package registry_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MahdiBaghbani/confsync-go/internal/registry"
)

const secret = "s3cret"

// fakeRegistry answers like the registry's rest.php, keyed by page and
// command or export selection.
type fakeRegistry struct {
	t        *testing.T
	mu       sync.Mutex
	requests []*http.Request
	replies  map[string]string
	status   int
}

func newFakeRegistry(t *testing.T) (*fakeRegistry, *httptest.Server) {
	f := &fakeRegistry{t: t, replies: map[string]string{}, status: http.StatusOK}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	q := r.URL.Query()
	sum := sha256.Sum256([]byte(q.Get("nonce") + secret))
	if q.Get("passhash") != hex.EncodeToString(sum[:]) {
		io.WriteString(w, `<rest><result>false</result><message>access denied: wrong passhash</message></rest>`)
		return
	}
	if f.status != http.StatusOK {
		w.WriteHeader(f.status)
		return
	}

	key := q.Get("page") + "/" + q.Get("command") + q.Get("export_select")
	reply, ok := f.replies[key]
	if !ok {
		f.t.Errorf("unexpected request %s", r.URL.RawQuery)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	io.WriteString(w, reply)
}

func (f *fakeRegistry) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T, srv *httptest.Server, doer interface {
	Do(*http.Request) (*http.Response, error)
}) *registry.Client {
	t.Helper()
	if doer == nil {
		doer = srv.Client()
	}
	c, err := registry.NewClient(registry.Config{
		BaseURL:          srv.URL + "/rest.php",
		Secret:           secret,
		MaxResponseBytes: 1 << 20,
	}, doer, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestLogin(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)

	f.replies["remoteLogin/login"] = `<?xml version="1.0"?><login><result>true</result><id>42</id><username>jdoe</username></login>`
	res, err := c.Login(context.Background(), "jdoe", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.Result || res.ID != 42 || res.Username != "jdoe" {
		t.Errorf("unexpected result %+v", res)
	}

	req := f.last()
	if ua := req.Header.Get("User-Agent"); ua != registry.DefaultUserAgent {
		t.Errorf("unexpected User-Agent %q", ua)
	}
	q := req.URL.Query()
	if q.Get("user") != "jdoe" || q.Get("password") != "pw" {
		t.Errorf("missing credentials in query %s", req.URL.RawQuery)
	}

	f.replies["remoteLogin/login"] = `<login><result>false</result><message>login failed: wrong password</message></login>`
	_, err = c.Login(context.Background(), "jdoe", "bad")
	if !errors.Is(err, registry.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

func TestLogin_ResultTable(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{"nonce", `<rest><result>false</result><message>access denied: nonce must be bigger than 1</message></rest>`, registry.ErrNonceTooSmall},
		{"denied", `<rest><result>false</result><message>access denied</message></rest>`, registry.ErrAccessDenied},
		{"unknown", `<login><result>false</result><message>user name unknown</message></login>`, registry.ErrUnknownUser},
		{"other", `<login><result>false</result><message>maintenance</message></login>`, registry.ErrUnexpectedResponse},
		{"malformed", `<login><result>true`, registry.ErrUnexpectedResponse},
		{"bad id", `<login><result>true</result><id>x</id><username>u</username></login>`, registry.ErrInvalidInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeRegistry(t)
			c := newClient(t, srv, nil)
			f.replies["remoteLogin/login"] = tt.reply
			if _, err := c.Login(context.Background(), "u", "p"); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequests_NonceIncreases(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)
	f.replies["remoteLogin/login"] = `<login><result>true</result><id>1</id><username>u</username></login>`

	var prev string
	for i := 0; i < 5; i++ {
		if _, err := c.Login(context.Background(), "u", "p"); err != nil {
			t.Fatalf("Login: %v", err)
		}
		nonce := f.last().URL.Query().Get("nonce")
		if prev != "" && (len(nonce) < len(prev) || (len(nonce) == len(prev) && nonce <= prev)) {
			t.Fatalf("nonce %s not greater than %s", nonce, prev)
		}
		prev = nonce
	}
}

func TestUserInfo(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)

	f.replies["remoteLogin/request"] = `<request><result>true</result><user><personID>42</personID><name>Doe</name><firstname>Jane</firstname><email>jane@example.org</email></user></request>`
	info, err := c.UserInfo(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	want := registry.UserInfo{PersonID: 42, Name: "Doe", FirstName: "Jane", Email: "jane@example.org", Username: "jdoe"}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}

	f.replies["remoteLogin/request"] = `<request><result>true</result></request>`
	if _, err := c.UserInfo(context.Background(), "jdoe"); !errors.Is(err, registry.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)
	f.status = http.StatusBadGateway

	_, err := c.Login(context.Background(), "u", "p")
	var regErr *registry.Error
	if !errors.As(err, &regErr) || regErr.Status != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
	if !errors.Is(err, registry.ErrUnexpectedResponse) {
		t.Errorf("expected ErrUnexpectedResponse")
	}
}

func TestResponseSizeBounded(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c, err := registry.NewClient(registry.Config{
		BaseURL:          srv.URL,
		Secret:           secret,
		MaxResponseBytes: 64,
	}, srv.Client(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.replies["remoteLogin/login"] = `<login><result>true</result><id>1</id><username>` + strings.Repeat("x", 100) + `</username></login>`
	if _, err := c.Login(context.Background(), "u", "p"); !errors.Is(err, registry.ErrUnexpectedResponse) {
		t.Errorf("expected bounded read failure, got %v", err)
	}
}

const papersExport = `<?xml version="1.0" encoding="UTF-8"?>
<papers>
  <paper>
    <paperID>1</paperID><submitting_author_ID>7</submitting_author_ID><title>First</title>
    <abstract>About things.</abstract><keyword>b,a</keyword><topics></topics>
    <authors_formatted_1_name>Doe, Jane</authors_formatted_1_name>
    <authors_formatted_1_email>jane@example.org</authors_formatted_1_email>
  </paper>
  <paper>
    <paperID>2</paperID><submitting_author_ID>7</submitting_author_ID><title>Second</title>
  </paper>
  <paper>
    <paperID>3</paperID><submitting_author_ID>8</submitting_author_ID><title>Third</title>
  </paper>
</papers>`

func TestExportPapers_Stream(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)
	f.replies["adminExport/papers"] = papersExport

	s, err := c.ExportPapers(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportPapers: %v", err)
	}
	defer s.Close()

	var ids []int64
	for s.Next() {
		ids = append(ids, s.Record().PaperID)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Errorf("unexpected ids %v", ids)
	}
	if s.Next() {
		t.Error("exhausted stream must not restart")
	}

	q := f.last().URL.Query()
	if q.Get("form_export_format") != "xml_short" || q.Get("cmd_create_export") != "true" || q.Get("form_include_deleted") != "0" {
		t.Errorf("missing export params: %s", f.last().URL.RawQuery)
	}
	if opts := q["form_export_papers_options[]"]; len(opts) != 3 {
		t.Errorf("unexpected paper options %v", opts)
	}
	if q.Has("form_userID") {
		t.Error("form_userID must be omitted without ids")
	}
}

func TestExportPapers_UserIDFilter(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int64
		wantIDs []int64
		wantErr bool
	}{
		{"none of the ids present", []int64{99}, nil, true},
		{"mismatch after matches", []int64{7}, []int64{1, 2}, true},
		{"all match", []int64{7, 8}, []int64{1, 2, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeRegistry(t)
			c := newClient(t, srv, nil)
			f.replies["adminExport/papers"] = papersExport

			s, err := c.ExportPapers(context.Background(), tt.ids)
			if err != nil {
				t.Fatalf("ExportPapers: %v", err)
			}
			var got []int64
			for p, err := range s.All() {
				if err != nil {
					if !tt.wantErr || !errors.Is(err, registry.ErrUnexpectedUserID) {
						t.Fatalf("unexpected error %v", err)
					}
					break
				}
				got = append(got, p.PaperID)
			}
			if tt.wantErr && s.Err() == nil {
				t.Fatal("expected ErrUnexpectedUserID")
			}
			if len(got) != len(tt.wantIDs) {
				t.Errorf("got ids %v, want %v", got, tt.wantIDs)
			}
			if tt.ids != nil && f.last().URL.Query().Get("form_userID") == "" {
				t.Error("expected form_userID")
			}
		})
	}
}

func TestExportUsers_ErrorInsideStream(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)
	f.replies["adminExport/users"] = `<rest><result>false</result><message>access denied: nonce must be bigger than 5</message></rest>`

	users, err := c.CollectUsers(context.Background(), nil)
	if !errors.Is(err, registry.ErrNonceTooSmall) {
		t.Fatalf("expected ErrNonceTooSmall, got %v (%d users)", err, len(users))
	}
}

func TestExportUsers_WrappedInRest(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)
	f.replies["adminExport/users"] = `<rest><result>true</result><users>
		<user><personID>7</personID><email>a@x.org</email><email_validated>true</email_validated></user>
	</users></rest>`

	users, err := c.CollectUsers(context.Background(), []int64{7})
	if err != nil {
		t.Fatalf("CollectUsers: %v", err)
	}
	if len(users) != 1 || users[0].Email != "a@x.org" {
		t.Errorf("unexpected users %+v", users)
	}
	if opt := f.last().URL.Query().Get("form_export_users_options[]"); opt != "extended" {
		t.Errorf("expected extended option, got %q", opt)
	}
}

func TestExportUser(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)

	f.replies["adminExport/users"] = `<users><user><personID>7</personID><username>jdoe</username><email>a@x.org</email><email2>b@x.org</email2><email2_validated>1</email2_validated></user></users>`
	u, err := c.ExportUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("ExportUser: %v", err)
	}
	if u.Username != "jdoe" || u.EmailValidated || !u.Email2Validated {
		t.Errorf("unexpected export %+v", u)
	}
	if got := f.last().URL.Query().Get("form_userID"); got != "7" {
		t.Errorf("form_userID = %q", got)
	}

	f.replies["adminExport/users"] = `<users></users>`
	if _, err := c.ExportUser(context.Background(), 7); !errors.Is(err, registry.ErrUnexpectedResponse) {
		t.Errorf("expected ErrUnexpectedResponse for missing user, got %v", err)
	}
}

func TestStream_Latin1(t *testing.T) {
	f, srv := newFakeRegistry(t)
	c := newClient(t, srv, nil)
	f.replies["adminExport/papers"] = "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><papers><paper><paperID>1</paperID><submitting_author_ID>7</submitting_author_ID><title>M\xfcller</title></paper></papers>"

	papers, err := c.CollectPapers(context.Background(), nil)
	if err != nil {
		t.Fatalf("CollectPapers: %v", err)
	}
	if len(papers) != 1 || papers[0].Title != "Müller" {
		t.Errorf("unexpected papers %+v", papers)
	}
}

type trackingBody struct {
	io.ReadCloser
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return b.ReadCloser.Close()
}

type trackingDoer struct {
	inner  *http.Client
	bodies []*trackingBody
}

func (d *trackingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.inner.Do(req)
	if err != nil {
		return nil, err
	}
	b := &trackingBody{ReadCloser: resp.Body}
	d.bodies = append(d.bodies, b)
	resp.Body = b
	return resp, nil
}

func TestStream_EarlyBreakReleasesBody(t *testing.T) {
	f, srv := newFakeRegistry(t)
	doer := &trackingDoer{inner: srv.Client()}
	c := newClient(t, srv, doer)
	f.replies["adminExport/papers"] = papersExport

	s, err := c.ExportPapers(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportPapers: %v", err)
	}
	for range s.All() {
		break
	}
	if !doer.bodies[0].closed {
		t.Error("body not released after early break")
	}
	if s.Next() {
		t.Error("closed stream must not yield")
	}
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "rest.php", "://x"} {
		if _, err := registry.NewClient(registry.Config{BaseURL: u}, http.DefaultClient, nil, nil); err == nil {
			t.Errorf("expected error for base url %q", u)
		}
	}
}
