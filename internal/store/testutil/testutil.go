// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// NewUser returns an unsaved user linked to registryID.
func NewUser(registryID int64, username string) *store.User {
	id := registryID
	return &store.User{RegistryID: &id, Username: username}
}

// MustCreateUser creates a registry-linked user or fails the test.
func MustCreateUser(t *testing.T, s store.Store, registryID int64, username string) *store.User {
	t.Helper()
	u := NewUser(registryID, username)
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return u
}

// MustAddEmail saves an address for a user or fails the test.
func MustAddEmail(t *testing.T, s store.Store, userID uint, email string, verified bool, source string) *store.EmailAddress {
	t.Helper()
	a := &store.EmailAddress{UserID: userID, Email: email, Verified: verified, Source: source}
	if err := s.SaveEmailAddress(context.Background(), a); err != nil {
		t.Fatalf("SaveEmailAddress(%s) failed: %v", email, err)
	}
	return a
}

// RunStoreTests runs the conformance suite against an opened store.
// Each subtest uses its own ids so the suite needs a fresh database.
func RunStoreTests(t *testing.T, s store.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, s) })
	t.Run("Emails", func(t *testing.T) { testEmails(t, s) })
	t.Run("Contacts", func(t *testing.T) { testContacts(t, s) })
	t.Run("Templates", func(t *testing.T) { testTemplates(t, s) })
	t.Run("Documents", func(t *testing.T) { testDocuments(t, s) })
	t.Run("InvitesAndGrants", func(t *testing.T) { testInvitesAndGrants(t, s) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, s) })
	t.Run("ImportLogs", func(t *testing.T) { testImportLogs(t, s) })
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustCreateUser(t, s, 1001, "alice")

	got, err := s.GetUserByRegistryID(ctx, 1001)
	if err != nil {
		t.Fatalf("GetUserByRegistryID failed: %v", err)
	}
	if got.ID != u.ID || got.Username != "alice" {
		t.Errorf("unexpected user %+v", got)
	}

	got.FirstName = "Alice"
	if err := s.SaveUser(ctx, got); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	got, _ = s.GetUserByUsername(ctx, "alice")
	if got.FirstName != "Alice" {
		t.Errorf("expected first name Alice, got %q", got.FirstName)
	}

	if _, err := s.GetUserByRegistryID(ctx, 999999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	dup := NewUser(1001, "alice-2")
	if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate registry id, got %v", err)
	}
}

func testEmails(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustCreateUser(t, s, 1002, "bob")

	a := MustAddEmail(t, s, u.ID, "Bob@Example.org", true, store.SourceRegistry)
	b := MustAddEmail(t, s, u.ID, "bob@work.example", false, store.SourceRegistry)
	local := MustAddEmail(t, s, u.ID, "bob@home.example", true, store.SourceLocal)

	found, err := s.FindEmailAddress(ctx, u.ID, "BOB@example.org")
	if err != nil {
		t.Fatalf("FindEmailAddress failed: %v", err)
	}
	if found.ID != a.ID || found.Email != "bob@example.org" {
		t.Errorf("expected lowercased address %d, got %+v", a.ID, found)
	}

	if _, err := s.FindVerifiedEmail(ctx, "bob@work.example"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unverified address must not match, got %v", err)
	}

	if err := s.SetPrimaryEmail(ctx, b); err != nil {
		t.Fatalf("SetPrimaryEmail failed: %v", err)
	}
	if err := s.SetPrimaryEmail(ctx, a); err != nil {
		t.Fatalf("SetPrimaryEmail failed: %v", err)
	}
	user, _ := s.GetUser(ctx, u.ID)
	if user.Email != "bob@example.org" {
		t.Errorf("expected user email to follow primary, got %q", user.Email)
	}

	if err := s.DeleteRegistryEmailsExcept(ctx, u.ID, []uint{a.ID}); err != nil {
		t.Fatalf("DeleteRegistryEmailsExcept failed: %v", err)
	}
	list, err := s.ListEmailAddresses(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListEmailAddresses failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(list))
	}
	primaries := 0
	for _, e := range list {
		if e.ID == b.ID {
			t.Error("expected registry address b to be removed")
		}
		if e.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("expected exactly one primary, got %d", primaries)
	}
	if list[1].ID != local.ID {
		t.Error("expected local address to survive")
	}
}

func testContacts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := MustCreateUser(t, s, 1003, "carol")
	b := MustCreateUser(t, s, 1004, "dave")

	for i := 0; i < 2; i++ {
		if err := s.AddContact(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("AddContact failed: %v", err)
		}
	}
	ids, err := s.ListContacts(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListContacts failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != b.ID {
		t.Errorf("expected [%d], got %v", b.ID, ids)
	}
}

func testTemplates(t *testing.T, s store.Store) {
	ctx := context.Background()
	calls := 0
	init := func(tpl *document.Template) error {
		calls++
		tpl.Title = "Article"
		tpl.Content = document.Node{Type: "doc"}
		return nil
	}

	tpl, created, err := s.GetOrCreateTemplate(ctx, "conf-article", init)
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}
	again, created, err := s.GetOrCreateTemplate(ctx, "conf-article", init)
	if err != nil || created {
		t.Fatalf("expected existing template, got created=%v err=%v", created, err)
	}
	if again.ID != tpl.ID || calls != 1 {
		t.Errorf("expected one creation, got %d calls", calls)
	}
	if again.Content.Type != "doc" {
		t.Errorf("expected content to round-trip, got %q", again.Content.Type)
	}

	again.Title = "Conference article"
	if err := s.SaveTemplate(ctx, again); err != nil {
		t.Fatalf("SaveTemplate failed: %v", err)
	}
}

func testDocuments(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustCreateUser(t, s, 1005, "erin")

	d := &store.Document{
		RegistryPaperID: 42,
		Title:           "On Streams",
		OwnerID:         &owner.ID,
		Content:         document.Node{Type: "doc", Attrs: map[string]any{"import_id": "conf-article"}},
	}
	if err := s.CreateDocument(ctx, d); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if err := s.CreateDocument(ctx, &store.Document{RegistryPaperID: 42}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate paper, got %v", err)
	}

	err := s.WithTx(ctx, func(tx store.Store) error {
		locked, err := tx.LockDocument(ctx, d.ID)
		if err != nil {
			return err
		}
		locked.Title = "On Streams, revised"
		return tx.SaveDocument(ctx, locked)
	})
	if err != nil {
		t.Fatalf("locked update failed: %v", err)
	}

	got, err := s.GetDocumentByPaperID(ctx, 42)
	if err != nil {
		t.Fatalf("GetDocumentByPaperID failed: %v", err)
	}
	if got.Title != "On Streams, revised" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.Content.Attrs["import_id"] != "conf-article" {
		t.Errorf("expected content attrs to round-trip, got %v", got.Content.Attrs)
	}

	docs, err := s.ListDocumentsByOwner(ctx, owner.ID)
	if err != nil || len(docs) != 1 {
		t.Errorf("expected one owned document, got %d (%v)", len(docs), err)
	}
}

func testInvitesAndGrants(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustCreateUser(t, s, 1006, "frank")
	d := &store.Document{RegistryPaperID: 43}
	if err := s.CreateDocument(ctx, d); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	inv, created, err := s.GetOrCreateInvite(ctx, "Guest@Example.org", func(inv *store.PendingInvite) {
		inv.ByID = &owner.ID
	})
	if err != nil || !created {
		t.Fatalf("expected invite creation, got created=%v err=%v", created, err)
	}
	if inv.Key == "" || inv.Email != "guest@example.org" {
		t.Errorf("unexpected invite %+v", inv)
	}
	same, created, _ := s.GetOrCreateInvite(ctx, "guest@example.org", nil)
	if created || same.ID != inv.ID {
		t.Error("expected the existing invite")
	}

	g1, err := s.GetOrCreateGrant(ctx, d.ID, store.InviteHolder(inv.ID), store.RightsWrite)
	if err != nil {
		t.Fatalf("GetOrCreateGrant failed: %v", err)
	}
	g1again, err := s.GetOrCreateGrant(ctx, d.ID, store.InviteHolder(inv.ID), "read")
	if err != nil || g1again.ID != g1.ID || g1again.Rights != store.RightsWrite {
		t.Errorf("expected the existing grant unchanged, got %+v (%v)", g1again, err)
	}
	g2, _ := s.GetOrCreateGrant(ctx, d.ID, store.UserHolder(owner.ID), store.RightsWrite)

	// move the invite's grant to a user
	other := MustCreateUser(t, s, 1007, "grace")
	g1.SetHolder(store.UserHolder(other.ID))
	if err := s.SaveGrant(ctx, g1); err != nil {
		t.Fatalf("SaveGrant failed: %v", err)
	}
	held, _ := s.ListGrantsByHolder(ctx, store.UserHolder(other.ID))
	if len(held) != 1 || held[0].Holder() != store.UserHolder(other.ID) {
		t.Errorf("expected moved grant, got %+v", held)
	}
	if left, _ := s.ListGrantsByHolder(ctx, store.InviteHolder(inv.ID)); len(left) != 0 {
		t.Errorf("expected no grants left on invite, got %d", len(left))
	}

	if err := s.DeleteDocumentGrantsExcept(ctx, d.ID, []uint{g2.ID}); err != nil {
		t.Fatalf("DeleteDocumentGrantsExcept failed: %v", err)
	}
	grants, _ := s.ListGrantsByDocument(ctx, d.ID)
	if len(grants) != 1 || grants[0].ID != g2.ID {
		t.Errorf("expected only grant %d, got %+v", g2.ID, grants)
	}

	if err := s.DeleteInvite(ctx, inv.ID); err != nil {
		t.Fatalf("DeleteInvite failed: %v", err)
	}
	invites, _ := s.ListInvitesByEmail(ctx, []string{"GUEST@example.org"})
	if len(invites) != 0 {
		t.Errorf("expected invite deleted, got %d", len(invites))
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, NewUser(1008, "heidi")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetUserByRegistryID(ctx, 1008); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected rollback, got %v", err)
	}

	err = s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, NewUser(1009, "ivan")); err != nil {
			return err
		}
		// a failed savepoint does not abort the outer transaction
		_ = tx.WithTx(ctx, func(inner store.Store) error {
			inner.CreateUser(ctx, NewUser(1010, "judy"))
			return boom
		})
		return nil
	})
	if err != nil {
		t.Fatalf("outer tx failed: %v", err)
	}
	if _, err := s.GetUserByRegistryID(ctx, 1009); err != nil {
		t.Errorf("expected outer write committed: %v", err)
	}
	if _, err := s.GetUserByRegistryID(ctx, 1010); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected inner write rolled back, got %v", err)
	}
}

func testImportLogs(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustCreateUser(t, s, 1011, "kim")

	entries := []*store.ImportLog{
		{RequestID: "AAAA2222", Path: "/a", Success: true, UserID: &u.ID},
		{RequestID: "AAAA2222", Path: "/a", ErrorType: store.ErrorImportPaper, UserID: &u.ID, Message: "bad"},
		{RequestID: "BBBB3333", Path: "/b", Success: true},
	}
	for _, e := range entries {
		if err := s.AppendImportLog(ctx, e); err != nil {
			t.Fatalf("AppendImportLog failed: %v", err)
		}
	}

	byReq, err := s.ListImportLogs(ctx, store.ImportLogFilter{RequestID: "AAAA2222"})
	if err != nil {
		t.Fatalf("ListImportLogs failed: %v", err)
	}
	if len(byReq) != 2 || byReq[0].ErrorType != store.ErrorImportPaper {
		t.Errorf("expected 2 entries newest first, got %+v", byReq)
	}

	byUser, _ := s.ListImportLogs(ctx, store.ImportLogFilter{UserID: &u.ID, Limit: 1})
	if len(byUser) != 1 {
		t.Errorf("expected limit 1, got %d", len(byUser))
	}
}
