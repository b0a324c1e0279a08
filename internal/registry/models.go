package registry

import (
	"fmt"
	"strings"
)

// LoginResult is the answer to a remote login.
type LoginResult struct {
	Result   bool
	ID       int64
	Username string
}

// UserInfo describes a registry account as returned by the user request.
type UserInfo struct {
	PersonID  int64
	Name      string
	FirstName string
	Email     string
	Username  string
}

// UserExport is one record of the extended users export.
type UserExport struct {
	PersonID        int64
	Username        string
	Email           string
	EmailValidated  bool
	Email2          string
	Email2Validated bool
}

// Addresses returns the primary and secondary address with their validation
// flags, skipping empty ones.
func (u *UserExport) Addresses() []Address {
	var out []Address
	for _, a := range []Address{
		{Email: u.Email, Validated: u.EmailValidated},
		{Email: u.Email2, Validated: u.Email2Validated},
	} {
		if a.Email != "" {
			out = append(out, a)
		}
	}
	return out
}

// Address is an email address as the registry reports it.
type Address struct {
	Email     string
	Validated bool
}

// PaperExport is one record of the papers export.
type PaperExport struct {
	PaperID            int64
	SubmittingAuthorID int64
	Title              string
	Abstract           string
	ContributionType   string
	Keywords           []string
	Topics             []string
	Authors            []Author
}

// AuthorEmails returns the non-empty author addresses, lowercased, in order.
func (p *PaperExport) AuthorEmails() []string {
	var out []string
	for _, a := range p.Authors {
		if e := strings.ToLower(strings.TrimSpace(a.Email)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Author is one entry of a paper's extended author columns.
type Author struct {
	// Name is formatted "Last, First".
	Name         string
	Organization string
	Email        string
	ORCID        string
}

// LastName returns the part of Name before the first comma.
func (a Author) LastName() string {
	last, _, _ := strings.Cut(a.Name, ",")
	return strings.TrimSpace(last)
}

// FirstName returns the part of Name after the first comma, if any.
func (a Author) FirstName() string {
	_, first, _ := strings.Cut(a.Name, ",")
	return strings.TrimSpace(first)
}

func parseLogin(e *element) (*LoginResult, error) {
	id, err := e.integer("id")
	if err != nil {
		return nil, err
	}
	username, err := e.required("username")
	if err != nil {
		return nil, err
	}
	return &LoginResult{Result: e.boolean("result"), ID: id, Username: username}, nil
}

func parseUserInfo(e *element, requested string) (*UserInfo, error) {
	id, err := e.integer("personID")
	if err != nil {
		return nil, err
	}
	info := &UserInfo{PersonID: id, Username: requested}
	fields := []struct {
		tag string
		dst *string
	}{
		{"name", &info.Name},
		{"firstname", &info.FirstName},
		{"email", &info.Email},
	}
	for _, f := range fields {
		if *f.dst, err = e.required(f.tag); err != nil {
			return nil, err
		}
	}
	if u := e.optional("username"); u != "" {
		info.Username = u
	}
	return info, nil
}

func parseUserExport(e *element) (UserExport, error) {
	id, err := e.integer("personID")
	if err != nil {
		return UserExport{}, err
	}
	email, err := e.required("email")
	if err != nil {
		return UserExport{}, err
	}
	return UserExport{
		PersonID:        id,
		Username:        e.optional("username"),
		Email:           email,
		EmailValidated:  e.boolean("email_validated"),
		Email2:          e.optional("email2"),
		Email2Validated: e.boolean("email2_validated"),
	}, nil
}

func parsePaperExport(e *element) (PaperExport, error) {
	paperID, err := e.integer("paperID")
	if err != nil {
		return PaperExport{}, err
	}
	authorID, err := e.integer("submitting_author_ID")
	if err != nil {
		return PaperExport{}, err
	}
	title, err := e.required("title")
	if err != nil {
		return PaperExport{}, err
	}
	return PaperExport{
		PaperID:            paperID,
		SubmittingAuthorID: authorID,
		Title:              title,
		Abstract:           e.optional("abstract"),
		ContributionType:   e.optional("contribution_type"),
		Keywords:           e.list("keyword"),
		Topics:             e.list("topics"),
		Authors:            parseAuthors(e),
	}, nil
}

// parseAuthors reads authors_formatted_{n}_* from n=1 until the first
// missing or empty name.
func parseAuthors(e *element) []Author {
	field := func(n int, name string) string {
		return e.optional(fmt.Sprintf("authors_formatted_%d_%s", n, name))
	}
	var authors []Author
	for n := 1; ; n++ {
		name := field(n, "name")
		if name == "" {
			return authors
		}
		authors = append(authors, Author{
			Name:         name,
			Organization: field(n, "organization"),
			Email:        field(n, "email"),
			ORCID:        field(n, "orcid"),
		})
	}
}
