package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const issueJSON = `{
	"id": 1001,
	"number": 42,
	"title": "Login must support SSO",
	"body": "Users sign in with the corporate IdP.",
	"state": "open",
	"user": {"login": "octocat", "avatar_url": "https://avatars.example/octocat"},
	"labels": [{"name": "requirement", "color": "0e8a16"}],
	"comments": 2,
	"html_url": "https://github.com/acme/widgets/issues/42",
	"created_at": "2024-03-05T14:07:09Z",
	"updated_at": "2024-03-06T08:00:00Z"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithBaseURL(server.URL),
		WithRetryPolicy(RetryPolicy{Timeout: 5 * time.Second}),
	}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "default", baseURL: "", want: "https://api.github.com/"},
		{name: "enterprise", baseURL: "https://ghe.example.com/api/v3", want: "https://ghe.example.com/api/v3/"},
		{name: "trailing slash kept", baseURL: "http://localhost:8080/", want: "http://localhost:8080/"},
		{name: "relative", baseURL: "/api", wantErr: true},
		{name: "no scheme", baseURL: "api.github.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.baseURL != "" {
				opts = append(opts, WithBaseURL(tt.baseURL))
			}
			c, err := New(opts...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c.BaseURL() != tt.want {
				t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.want)
			}
			if c.HasToken() {
				t.Error("client without token source should not report a token")
			}
		})
	}
}

func TestListIssues_DefaultsToAllStates(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/issues" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, "[%s]", issueJSON)
	})

	issues, err := c.ListIssues(context.Background(), "acme", "widgets", ListOptions{})
	if err != nil {
		t.Fatalf("ListIssues() error = %v", err)
	}
	if !strings.Contains(gotQuery, "state=all") {
		t.Errorf("query = %q, want state=all", gotQuery)
	}

	body := "Users sign in with the corporate IdP."
	want := []Issue{{
		ID:        1001,
		Number:    42,
		Title:     "Login must support SSO",
		Body:      &body,
		State:     "open",
		User:      &User{Login: "octocat", AvatarURL: "https://avatars.example/octocat"},
		Labels:    []Label{{Name: "requirement", Color: "0e8a16"}},
		Comments:  2,
		HTMLURL:   "https://github.com/acme/widgets/issues/42",
		CreatedAt: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Errorf("ListIssues() mismatch (-want +got):\n%s", diff)
	}
}

func TestListIssues_PassesOptions(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("[]"))
	})

	issues, err := c.ListIssues(context.Background(), "acme", "widgets", ListOptions{State: StateClosed, Page: 2, PerPage: 50})
	if err != nil {
		t.Fatalf("ListIssues() error = %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %d", len(issues))
	}
	for _, want := range []string{"state=closed", "page=2", "per_page=50"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query = %q, missing %s", gotQuery, want)
		}
	}
}

func TestListIssues_InvalidInput(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	tests := []struct {
		name  string
		owner string
		repo  string
		opts  ListOptions
		field string
	}{
		{name: "missing owner", owner: "", repo: "widgets", field: "owner"},
		{name: "missing repo", owner: "acme", repo: " ", field: "repo"},
		{name: "bad state", owner: "acme", repo: "widgets", opts: ListOptions{State: "merged"}, field: "state"},
		{name: "per page too large", owner: "acme", repo: "widgets", opts: ListOptions{PerPage: 101}, field: "per_page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ListIssues(context.Background(), tt.owner, tt.repo, tt.opts)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("expected no upstream requests, got %d", n)
	}
}

func TestGetIssue_NullBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number":7,"title":"Empty","body":null,"state":"closed","user":null}`))
	})

	issue, err := c.GetIssue(context.Background(), "acme", "widgets", 7)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Body != nil {
		t.Errorf("Body = %q, want nil", *issue.Body)
	}
	if issue.User != nil {
		t.Errorf("User = %+v, want nil", issue.User)
	}
	if issue.Labels == nil {
		t.Error("Labels should be an empty slice, not nil")
	}
}

func TestGetIssue_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	_, err := c.GetIssue(context.Background(), "acme", "widgets", 999)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "Not Found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if !strings.Contains(err.Error(), "acme/widgets#999") {
		t.Errorf("error %q should name the issue", err.Error())
	}
}

func TestGetIssue_InvalidNumber(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.GetIssue(context.Background(), "acme", "widgets", 0)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "issueNumber" {
		t.Errorf("expected issueNumber validation error, got %v", err)
	}
}

func TestGetIssue_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(WithBaseURL(url), WithRetryPolicy(RetryPolicy{Timeout: time.Second}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.GetIssue(context.Background(), "acme", "widgets", 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != 0 {
		t.Errorf("Status = %d, want 0 for transport failure", apiErr.Status)
	}
}

func TestWritesRequireToken(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	title := "New requirement"
	ctx := context.Background()

	if _, err := c.CreateIssue(ctx, "acme", "widgets", IssueRequest{Title: &title}); !errors.Is(err, ErrTokenRequired) {
		t.Errorf("CreateIssue() error = %v, want ErrTokenRequired", err)
	}
	if _, err := c.UpdateIssue(ctx, "acme", "widgets", 1, IssueRequest{Title: &title}); !errors.Is(err, ErrTokenRequired) {
		t.Errorf("UpdateIssue() error = %v, want ErrTokenRequired", err)
	}
	if _, err := c.CreateComment(ctx, "acme", "widgets", 1, "looks good"); !errors.Is(err, ErrTokenRequired) {
		t.Errorf("CreateComment() error = %v, want ErrTokenRequired", err)
	}

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("expected no upstream requests, got %d", n)
	}
}

func TestCreateComment_EmptyBodyBeforeTokenCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.CreateComment(context.Background(), "acme", "widgets", 1, "   ")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if vErr.Message != "comment body is required" {
		t.Errorf("Message = %q", vErr.Message)
	}
}

func TestCreateIssue(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]interface{}
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/widgets/issues" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(issueJSON))
	}, WithTokenSource(StaticTokenSource("ghp_configured")))

	title := "Login must support SSO"
	issue, err := c.CreateIssue(context.Background(), "acme", "widgets", IssueRequest{Title: &title})
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if issue.Number != 42 {
		t.Errorf("Number = %d", issue.Number)
	}
	if gotAuth != "token ghp_configured" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	want := map[string]interface{}{
		"title":  "Login must support SSO",
		"labels": []interface{}{},
	}
	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateIssue_RequiresTitle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, WithTokenSource(StaticTokenSource("ghp_configured")))

	_, err := c.CreateIssue(context.Background(), "acme", "widgets", IssueRequest{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "title" {
		t.Errorf("expected title validation error, got %v", err)
	}
}

func TestUpdateIssue_SendsOnlySetFields(t *testing.T) {
	var gotBody map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/repos/acme/widgets/issues/42" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(issueJSON))
	}, WithTokenSource(StaticTokenSource("ghp_configured")))

	state := StateClosed
	if _, err := c.UpdateIssue(context.Background(), "acme", "widgets", 42, IssueRequest{State: &state}); err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}
	if diff := cmp.Diff(map[string]interface{}{"state": "closed"}, gotBody); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestWithToken_OverridesConfiguredSource(t *testing.T) {
	var gotAuth []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(issueJSON))
	}, WithTokenSource(StaticTokenSource("ghp_configured")))

	ctx := context.Background()
	if _, err := c.WithToken("ghp_caller").GetIssue(ctx, "acme", "widgets", 42); err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if _, err := c.WithToken("").GetIssue(ctx, "acme", "widgets", 42); err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}

	want := []string{"token ghp_caller", "token ghp_configured"}
	if diff := cmp.Diff(want, gotAuth); diff != "" {
		t.Errorf("Authorization headers mismatch (-want +got):\n%s", diff)
	}
}

func TestWithToken_EnablesWrites(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":5,"body":"ship it","user":{"login":"octocat"},"created_at":"2024-03-05T14:07:09Z"}`))
	})

	comment, err := c.WithToken("ghp_caller").CreateComment(context.Background(), "acme", "widgets", 42, "ship it")
	if err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if comment.IssueNumber != 42 || comment.Body == nil || *comment.Body != "ship it" {
		t.Errorf("unexpected comment: %+v", comment)
	}
	if c.HasToken() {
		t.Error("WithToken must not mutate the receiver")
	}
}

func TestListComments_FollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("per_page = %q, want 100", r.URL.Query().Get("per_page"))
		}
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2&per_page=100>; rel="next"`, server.URL, r.URL.Path))
			_, _ = w.Write([]byte(`[{"id":1,"body":"first"}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"id":2,"body":"second"}]`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	c, err := New(WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	comments, err := c.ListComments(context.Background(), "acme", "widgets", 42)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if *comments[0].Body != "first" || *comments[1].Body != "second" {
		t.Errorf("unexpected order: %q, %q", *comments[0].Body, *comments[1].Body)
	}
	for _, cm := range comments {
		if cm.IssueNumber != 42 {
			t.Errorf("IssueNumber = %d, want 42", cm.IssueNumber)
		}
	}
}

func TestGetIssueWithComments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets/issues/42":
			_, _ = w.Write([]byte(issueJSON))
		case "/repos/acme/widgets/issues/42/comments":
			_, _ = w.Write([]byte(`[{"id":1,"body":"a"},{"id":2,"body":"b"}]`))
		default:
			http.NotFound(w, r)
		}
	})

	issue, comments, err := c.GetIssueWithComments(context.Background(), "acme", "widgets", 42)
	if err != nil {
		t.Fatalf("GetIssueWithComments() error = %v", err)
	}
	if issue.Number != 42 || len(comments) != 2 {
		t.Errorf("got issue %d with %d comments", issue.Number, len(comments))
	}
}

func TestGetIssueWithComments_PropagatesError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comments") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"Forbidden"}`))
			return
		}
		_, _ = w.Write([]byte(issueJSON))
	})

	_, _, err := c.GetIssueWithComments(context.Background(), "acme", "widgets", 42)
	if StatusCode(err) != http.StatusForbidden {
		t.Errorf("StatusCode(%v) = %d, want 403", err, StatusCode(err))
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c, err := New(WithBaseURL(server.URL), WithRetryPolicy(RetryPolicy{Timeout: 50 * time.Millisecond}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	_, err = c.GetIssue(context.Background(), "acme", "widgets", 1)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call took %v, timeout not applied", elapsed)
	}
}

func TestClient_SetsUserAgent(t *testing.T) {
	var ua string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, issueJSON)
	})

	if _, err := c.GetIssue(context.Background(), "acme", "widgets", 42); err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if !strings.HasPrefix(ua, "reqsync/") {
		t.Errorf("User-Agent = %q", ua)
	}
}
