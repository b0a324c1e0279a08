package registry

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func mustParse(t *testing.T, doc string) *element {
	t.Helper()
	el, err := readDocument(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("readDocument: %v", err)
	}
	return el
}

func TestParseLogin(t *testing.T) {
	el := mustParse(t, `<login><result>true</result><id> 17 </id><username>jdoe</username></login>`)
	got, err := parseLogin(el)
	if err != nil {
		t.Fatalf("parseLogin: %v", err)
	}
	want := LoginResult{Result: true, ID: 17, Username: "jdoe"}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestParse_MissingAndInvalid(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := parseLogin(mustParse(t, `<login><result>true</result><id>1</id></login>`))
		if !errors.Is(err, ErrMissingField) || !errors.Is(err, ErrUnexpectedResponse) {
			t.Fatalf("expected MissingField, got %v", err)
		}
		if msg := err.(*Error).Message; msg != "Missing element 'login/username'" {
			t.Errorf("unexpected message %q", msg)
		}
	})
	t.Run("invalid integer", func(t *testing.T) {
		_, err := parseLogin(mustParse(t, `<login><id>abc</id><username>x</username></login>`))
		if !errors.Is(err, ErrInvalidInteger) {
			t.Fatalf("expected InvalidInteger, got %v", err)
		}
		if msg := err.(*Error).Message; msg != "Expected integer at 'login/id'" {
			t.Errorf("unexpected message %q", msg)
		}
	})
}

func TestElement_Boolean(t *testing.T) {
	el := mustParse(t, `<u><a>TRUE</a><b>1</b><c>yes</c><d>0</d><e></e></u>`)
	tests := map[string]bool{"a": true, "b": true, "c": false, "d": false, "e": false, "missing": false}
	for tag, want := range tests {
		if got := el.boolean(tag); got != want {
			t.Errorf("boolean(%s) = %v, want %v", tag, got, want)
		}
	}
}

func TestElement_List(t *testing.T) {
	el := mustParse(t, `<p><keyword> Digital Humanities, , TEI ,</keyword><topics></topics></p>`)
	if got := el.list("keyword"); !slices.Equal(got, []string{"Digital Humanities", "TEI"}) {
		t.Errorf("unexpected keywords %q", got)
	}
	if got := el.list("topics"); len(got) != 0 {
		t.Errorf("expected empty topics, got %q", got)
	}
	if got := el.list("absent"); len(got) != 0 {
		t.Errorf("expected empty list, got %q", got)
	}
}

func TestParsePaperExport(t *testing.T) {
	el := mustParse(t, `<paper>
		<paperID>101</paperID>
		<submitting_author_ID>7</submitting_author_ID>
		<title>  Reading Machines  </title>
		<keyword>b, a</keyword>
		<topics>t1</topics>
		<authors_formatted_1_name>Doe, Jane</authors_formatted_1_name>
		<authors_formatted_1_organization>Uni A</authors_formatted_1_organization>
		<authors_formatted_1_email>Jane@Example.org</authors_formatted_1_email>
		<authors_formatted_1_orcid>0000-0001</authors_formatted_1_orcid>
		<authors_formatted_2_name>Roe</authors_formatted_2_name>
		<authors_formatted_3_name></authors_formatted_3_name>
		<authors_formatted_4_name>Ignored, After Gap</authors_formatted_4_name>
	</paper>`)

	p, err := parsePaperExport(el)
	if err != nil {
		t.Fatalf("parsePaperExport: %v", err)
	}
	if p.PaperID != 101 || p.SubmittingAuthorID != 7 || p.Title != "Reading Machines" {
		t.Errorf("unexpected header fields %+v", p)
	}
	if p.Abstract != "" || p.ContributionType != "" {
		t.Errorf("optional fields should default to empty")
	}
	if !slices.Equal(p.Keywords, []string{"b", "a"}) {
		t.Errorf("keywords %q", p.Keywords)
	}
	if len(p.Authors) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(p.Authors))
	}
	a := p.Authors[0]
	if a.FirstName() != "Jane" || a.LastName() != "Doe" || a.ORCID != "0000-0001" {
		t.Errorf("unexpected first author %+v", a)
	}
	if b := p.Authors[1]; b.FirstName() != "" || b.LastName() != "Roe" {
		t.Errorf("unexpected second author names %q %q", b.FirstName(), b.LastName())
	}
	if emails := p.AuthorEmails(); !slices.Equal(emails, []string{"jane@example.org"}) {
		t.Errorf("author emails %q", emails)
	}
}

func TestParseUserExport_Addresses(t *testing.T) {
	el := mustParse(t, `<user><personID>7</personID><email>a@x.org</email><email_validated>1</email_validated><email2></email2></user>`)
	u, err := parseUserExport(el)
	if err != nil {
		t.Fatalf("parseUserExport: %v", err)
	}
	addrs := u.Addresses()
	if len(addrs) != 1 || addrs[0] != (Address{Email: "a@x.org", Validated: true}) {
		t.Errorf("unexpected addresses %+v", addrs)
	}
}

func TestFirstAPIError_Nested(t *testing.T) {
	el := mustParse(t, `<paper><request><result>false</result><message>user name unknown</message></request></paper>`)
	if err := el.firstAPIError(); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected UnknownUser, got %v", err)
	}
	ok := mustParse(t, `<rest><result>true</result><message>fine</message></rest>`)
	if err := ok.firstAPIError(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
