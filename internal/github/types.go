package github

import (
	"fmt"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v72/github"
)

// Issue states
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// User is the author of an issue or comment.
type User struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Label is an issue label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Issue is a GitHub issue used as a requirement. Body is nil when the
// upstream body is null.
type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      *string   `json:"body"`
	State     string    `json:"state"`
	User      *User     `json:"user"`
	Labels    []Label   `json:"labels"`
	Comments  int       `json:"comments"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a reply on an issue.
type Comment struct {
	ID          int64     `json:"id"`
	IssueNumber int       `json:"issue_number"`
	Body        *string   `json:"body"`
	User        *User     `json:"user"`
	HTMLURL     string    `json:"html_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// IssueRequest is a create or update payload. Nil fields are left unchanged
// on update.
type IssueRequest struct {
	Title  *string   `json:"title,omitempty"`
	Body   *string   `json:"body,omitempty"`
	State  *string   `json:"state,omitempty"`
	Labels *[]string `json:"labels,omitempty"`
}

// Validate checks the fields that are set.
func (r IssueRequest) Validate() error {
	if r.State != nil {
		switch *r.State {
		case StateOpen, StateClosed:
		default:
			return &ValidationError{Field: "state", Message: fmt.Sprintf("must be %s or %s, got %q", StateOpen, StateClosed, *r.State)}
		}
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if r.Labels != nil {
		for _, l := range *r.Labels {
			if strings.TrimSpace(l) == "" {
				return &ValidationError{Field: "labels", Message: "must not contain empty names"}
			}
		}
	}
	return nil
}

// ValidateCreate checks a create payload, which requires a title.
func (r IssueRequest) ValidateCreate() error {
	if r.Title == nil {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	return r.Validate()
}

// ListOptions controls issue listing. Zero values use the upstream defaults
// except State, which defaults to "all".
type ListOptions struct {
	State   string
	Page    int
	PerPage int
}

// Validate checks state and paging bounds.
func (o ListOptions) Validate() error {
	switch o.State {
	case "", StateOpen, StateClosed, StateAll:
	default:
		return &ValidationError{Field: "state", Message: fmt.Sprintf("must be open, closed or all, got %q", o.State)}
	}
	if o.Page < 0 {
		return &ValidationError{Field: "page", Message: "must not be negative"}
	}
	if o.PerPage < 0 || o.PerPage > 100 {
		return &ValidationError{Field: "per_page", Message: "must be between 1 and 100"}
	}
	return nil
}

func (r IssueRequest) toGitHub() *gogithub.IssueRequest {
	return &gogithub.IssueRequest{
		Title:  r.Title,
		Body:   r.Body,
		State:  r.State,
		Labels: r.Labels,
	}
}

func fromGitHubUser(u *gogithub.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		Login:     u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
	}
}

func fromGitHubIssue(i *gogithub.Issue) Issue {
	labels := make([]Label, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, Label{Name: l.GetName(), Color: l.GetColor()})
	}

	return Issue{
		ID:        i.GetID(),
		Number:    i.GetNumber(),
		Title:     i.GetTitle(),
		Body:      i.Body,
		State:     i.GetState(),
		User:      fromGitHubUser(i.User),
		Labels:    labels,
		Comments:  i.GetComments(),
		HTMLURL:   i.GetHTMLURL(),
		CreatedAt: i.GetCreatedAt().Time,
		UpdatedAt: i.GetUpdatedAt().Time,
	}
}

func fromGitHubComment(number int, c *gogithub.IssueComment) Comment {
	return Comment{
		ID:          c.GetID(),
		IssueNumber: number,
		Body:        c.Body,
		User:        fromGitHubUser(c.User),
		HTMLURL:     c.GetHTMLURL(),
		CreatedAt:   c.GetCreatedAt().Time,
	}
}
