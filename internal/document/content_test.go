package document_test

import (
	"encoding/json"
	"testing"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
)

func defaultDoc(t *testing.T) *document.Node {
	t.Helper()
	doc, err := document.BuildContent(document.TemplateSpec{ImportID: "standard-article", Title: "Article"})
	if err != nil {
		t.Fatalf("BuildContent: %v", err)
	}
	return doc
}

func tags(p *document.Node) []string {
	var out []string
	for _, c := range p.Content {
		out = append(out, c.Attrs["tag"].(string))
	}
	return out
}

func TestContentUpdate_Apply(t *testing.T) {
	doc := defaultDoc(t)

	u := &document.ContentUpdate{
		Title:            "Reading Machines",
		Abstract:         "About reading.",
		ContributionType: "Vortrag",
		Keywords:         []string{"TEI", "Corpus"},
		Topics:           []string{"z", "a"},
	}
	u.AddContributor(document.Contributor{FirstName: "Jane", LastName: "Doe", Email: "jane@example.org", ORCID: "0000-0001"})
	u.AddContributor(document.Contributor{LastName: "Roe"})
	u.Apply(doc)

	if got := doc.Part("title", "").Content[0].Text; got != "Reading Machines" {
		t.Errorf("title = %q", got)
	}
	heading := doc.Part("heading_part", "visibleTitle").Content[0]
	if heading.Type != "heading1" || heading.Content[0].Text != "Reading Machines" {
		t.Errorf("unexpected visible title %+v", heading)
	}
	if got := tags(doc.Part("tags_part", "keywords")); len(got) != 2 || got[0] != "Corpus" || got[1] != "TEI" {
		t.Errorf("keywords not sorted: %v", got)
	}
	if got := tags(doc.Part("tags_part", "topics")); got[0] != "a" {
		t.Errorf("topics not sorted: %v", got)
	}
	if got := tags(doc.Part("tags_part", "contributionTypes")); len(got) != 1 || got[0] != "Vortrag" {
		t.Errorf("contribution type %v", got)
	}
	if got := tags(doc.Part("tags_part", "orcidIds")); len(got) != 2 || got[0] != "0000-0001" || got[1] != document.UnknownORCID {
		t.Errorf("orcid ids %v", got)
	}

	contributors := doc.Part("contributors_part", "").Content
	if len(contributors) != 2 {
		t.Fatalf("expected 2 contributors, got %d", len(contributors))
	}
	if _, ok := contributors[1].Attrs["firstname"]; ok {
		t.Error("empty contributor attrs must be dropped")
	}
	if contributors[1].Attrs["lastname"] != "Roe" {
		t.Errorf("unexpected contributor attrs %v", contributors[1].Attrs)
	}

	abstract := doc.Part("richtext_part", "abstract").Content[0]
	if abstract.Type != "paragraph" || abstract.Content[0].Text != "About reading." {
		t.Errorf("unexpected abstract %+v", abstract)
	}
}

func TestContentUpdate_EmptyValuesKeepParts(t *testing.T) {
	doc := defaultDoc(t)
	(&document.ContentUpdate{Title: "T", Abstract: "kept", Keywords: []string{"k"}}).Apply(doc)

	before, _ := json.Marshal(doc)
	(&document.ContentUpdate{}).Apply(doc)
	after, _ := json.Marshal(doc)

	if string(before) != string(after) {
		t.Error("empty update must not change the document")
	}
}

func TestContentUpdate_EmptyContributionTypeClears(t *testing.T) {
	doc := defaultDoc(t)
	(&document.ContentUpdate{ContributionType: "Vortrag"}).Apply(doc)
	(&document.ContentUpdate{}).Apply(doc)

	if got := tags(doc.Part("tags_part", "contributionTypes")); len(got) != 1 || got[0] != "" {
		t.Errorf("expected a single empty tag, got %v", got)
	}
}

func TestContentUpdate_LeavesBodyAlone(t *testing.T) {
	doc := defaultDoc(t)
	body := doc.Part("richtext_part", "body")
	body.Content = []*document.Node{{Type: "paragraph", Content: []*document.Node{{Type: "text", Text: "author's text"}}}}

	(&document.ContentUpdate{Title: "New", Abstract: "New abstract"}).Apply(doc)

	if got := doc.Part("richtext_part", "body").Content[0].Content[0].Text; got != "author's text" {
		t.Errorf("body was modified: %q", got)
	}
}

func TestContentUpdate_MissingPartsIgnored(t *testing.T) {
	doc := &document.Node{Type: "doc", Content: []*document.Node{{Type: "tags_part"}}}
	(&document.ContentUpdate{Title: "x", Keywords: []string{"k"}}).Apply(doc)
	if len(doc.Content[0].Content) != 0 {
		t.Error("tags part without id must not match an id lookup")
	}
}
