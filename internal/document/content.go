package document

import (
	"slices"
)

// UnknownORCID stands in for authors without an ORCID so the ORCID tags
// stay aligned with the contributor list.
const UnknownORCID = "<ORCID: N/A>"

// Contributor is one author entry of the contributors part.
type Contributor struct {
	FirstName   string
	LastName    string
	Email       string
	Institution string
	ORCID       string
}

func (c Contributor) attrs() map[string]any {
	attrs := map[string]any{}
	for k, v := range map[string]string{
		"firstname":   c.FirstName,
		"lastname":    c.LastName,
		"email":       c.Email,
		"institution": c.Institution,
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// ContentUpdate collects the registry-owned values of an article and writes
// them into the matching parts of a content tree. Parts the registry has no
// value for are left alone, as is everything outside these parts.
type ContentUpdate struct {
	Title            string
	Abstract         string
	ContributionType string
	Keywords         []string
	Topics           []string
	Contributors     []Contributor
}

// AddContributor appends an author.
func (u *ContentUpdate) AddContributor(c Contributor) {
	u.Contributors = append(u.Contributors, c)
}

// Apply patches doc in place.
func (u *ContentUpdate) Apply(doc *Node) {
	if doc == nil {
		return
	}
	var title, visibleTitle, abstract []*Node
	if u.Title != "" {
		title = []*Node{text(u.Title)}
		visibleTitle = []*Node{{Type: "heading1", Content: []*Node{text(u.Title)}}}
	}
	if u.Abstract != "" {
		abstract = []*Node{{Type: "paragraph", Content: []*Node{text(u.Abstract)}}}
	}
	// always one tag; an empty type clears the previous one
	ctype := []*Node{tag(u.ContributionType)}

	var contributors, orcids []*Node
	for _, c := range u.Contributors {
		contributors = append(contributors, &Node{Type: "contributor", Attrs: c.attrs()})
		orcid := c.ORCID
		if orcid == "" {
			orcid = UnknownORCID
		}
		orcids = append(orcids, tag(orcid))
	}

	replacePart(doc, "title", "", title)
	replacePart(doc, "heading_part", "visibleTitle", visibleTitle)
	replacePart(doc, "tags_part", "contributionTypes", ctype)
	replacePart(doc, "tags_part", "keywords", sortedTags(u.Keywords))
	replacePart(doc, "tags_part", "topics", sortedTags(u.Topics))
	replacePart(doc, "tags_part", "orcidIds", orcids)
	replacePart(doc, "contributors_part", "", contributors)
	replacePart(doc, "richtext_part", "abstract", abstract)
}

func sortedTags(values []string) []*Node {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	var out []*Node
	for _, v := range sorted {
		out = append(out, tag(v))
	}
	return out
}

// replacePart sets the content of the first matching part. Empty content
// never overwrites.
func replacePart(doc *Node, typ, id string, content []*Node) {
	if len(content) == 0 {
		return
	}
	if p := doc.Part(typ, id); p != nil {
		p.Content = content
	}
}
