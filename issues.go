package youtrack

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"path"
	"strconv"
)

// IssueService provides operations on YouTrack issues.
type IssueService interface {
	// Get retrieves a single issue by ID. A missing issue is reported as
	// (nil, false, nil).
	Get(ctx context.Context, id string, opts ...RequestOption) (*Issue, bool, error)

	// Exists reports whether an issue with the given ID exists.
	Exists(ctx context.Context, id string, opts ...RequestOption) (bool, error)

	// ByProject returns an iterator over the issues of a project.
	// The iterator fetches pages lazily as you iterate.
	ByProject(ctx context.Context, project string, filter *IssueFilter, opts ...RequestOption) iter.Seq2[*Issue, error]

	// Pager returns a pull iterator over the issues of a project.
	// Use this for manual pagination control.
	Pager(project string, filter *IssueFilter, opts ...RequestOption) *PagedIterator[*Issue]

	// Comments returns an iterator over the comments of an issue.
	Comments(ctx context.Context, id string, opts ...RequestOption) iter.Seq2[*Comment, error]

	// Create creates a new issue and returns its ID.
	Create(ctx context.Context, req *CreateIssueRequest, opts ...RequestOption) (string, error)

	// ApplyCommand runs a command against an issue.
	ApplyCommand(ctx context.Context, id string, cmd *Command, opts ...RequestOption) error

	// Delete removes an issue. It reports false if the issue did not exist.
	Delete(ctx context.Context, id string, opts ...RequestOption) (bool, error)
}

// issueService implements IssueService.
type issueService struct {
	client *Client
}

func newIssueService(client *Client) *issueService {
	return &issueService{client: client}
}

func issuePath(id string, rest ...string) string {
	p := "rest/issue/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// validateID checks that an issue ID is not empty.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: issue ID cannot be empty", ErrInvalidArgument)
	}
	return nil
}

// Get retrieves a single issue by ID.
func (s *issueService) Get(ctx context.Context, id string, opts ...RequestOption) (*Issue, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   issuePath(id),
	}, opts...)
	if err != nil {
		return nil, false, err
	}

	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Close()
		return nil, false, nil
	}

	node, err := readDocument(resp)
	if err != nil {
		return nil, false, err
	}

	issue, err := parseIssue(node)
	if err != nil {
		return nil, false, err
	}
	return issue, true, nil
}

// Exists reports whether an issue exists.
func (s *issueService) Exists(ctx context.Context, id string, opts ...RequestOption) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   issuePath(id, "exists"),
	}, opts...)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Close()
		return false, nil
	}

	resp, err = requireSuccess(resp)
	if err != nil {
		return false, err
	}
	_ = resp.Close()
	return true, nil
}

// ByProject returns an iterator over the issues of a project.
func (s *issueService) ByProject(ctx context.Context, project string, filter *IssueFilter, opts ...RequestOption) iter.Seq2[*Issue, error] {
	return func(yield func(*Issue, error) bool) {
		if project == "" {
			yield(nil, fmt.Errorf("%w: project cannot be empty", ErrInvalidArgument))
			return
		}
		for issue, err := range s.Pager(project, filter, opts...).All(ctx) {
			if !yield(issue, err) {
				return
			}
		}
	}
}

// Pager returns a pull iterator over the issues of a project.
func (s *issueService) Pager(project string, filter *IssueFilter, opts ...RequestOption) *PagedIterator[*Issue] {
	base := s.client.transport.BaseURL.JoinPath("rest/issue/byproject", url.PathEscape(project))

	build := func(offset, size int) string {
		u := *base
		q := url.Values{}
		if filter != nil && filter.Query != "" {
			q.Set("filter", filter.Query)
		}
		if filter != nil && !filter.UpdatedAfter.IsZero() {
			q.Set("updatedAfter", strconv.FormatInt(filter.UpdatedAfter.UnixMilli(), 10))
		}
		q.Set("after", strconv.Itoa(offset))
		q.Set("max", strconv.Itoa(size))
		u.RawQuery = q.Encode()
		return u.String()
	}

	return newPager(s.client, build, decodeIssuePage, opts...)
}

// decodeIssuePage maps an <issues> document.
func decodeIssuePage(body []byte) ([]*Issue, error) {
	root, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}

	nodes := root.Children("issue")
	issues := make([]*Issue, 0, len(nodes))
	for _, n := range nodes {
		issue, err := parseIssue(n)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// Comments returns an iterator over the comments of an issue. The request
// is made when iteration starts.
func (s *issueService) Comments(ctx context.Context, id string, opts ...RequestOption) iter.Seq2[*Comment, error] {
	return func(yield func(*Comment, error) bool) {
		comments, err := s.listComments(ctx, id, opts...)
		if err != nil {
			yield(nil, err)
			return
		}
		for c, err := range FromSlice(comments) {
			if !yield(c, err) {
				return
			}
		}
	}
}

func (s *issueService) listComments(ctx context.Context, id string, opts ...RequestOption) ([]*Comment, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   issuePath(id, "comment"),
	}, opts...)
	if err != nil {
		return nil, err
	}

	root, err := readDocument(resp)
	if err != nil {
		return nil, err
	}

	nodes := root.Children("comment")
	comments := make([]*Comment, 0, len(nodes))
	for _, n := range nodes {
		c, err := parseComment(n)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// validateCreateRequest validates the create issue request.
func validateCreateRequest(req *CreateIssueRequest) error {
	if req == nil {
		return fmt.Errorf("%w: create request cannot be nil", ErrInvalidArgument)
	}
	if req.Project == "" {
		return fmt.Errorf("%w: project is required", ErrInvalidArgument)
	}
	if req.Summary == "" {
		return fmt.Errorf("%w: summary is required", ErrInvalidArgument)
	}
	return nil
}

// Create creates a new issue.
func (s *issueService) Create(ctx context.Context, req *CreateIssueRequest, opts ...RequestOption) (string, error) {
	if err := validateCreateRequest(req); err != nil {
		return "", err
	}

	q := url.Values{
		"project": {req.Project},
		"summary": {req.Summary},
	}
	if req.Description != "" {
		q.Set("description", req.Description)
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodPut,
		Path:   "rest/issue",
		Query:  q,
	}, opts...)
	if err != nil {
		return "", err
	}
	resp, err = requireSuccess(resp)
	if err != nil {
		return "", err
	}
	_ = resp.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &ParseError{Err: errors.New("created issue without Location header")}
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", &ParseError{Err: fmt.Errorf("location header: %w", err), Snippet: location}
	}
	return path.Base(u.Path), nil
}

// ApplyCommand runs a command against an issue.
func (s *issueService) ApplyCommand(ctx context.Context, id string, cmd *Command, opts ...RequestOption) error {
	if err := validateID(id); err != nil {
		return err
	}
	if cmd == nil || (cmd.Command == "" && cmd.Comment == "") {
		return fmt.Errorf("%w: command or comment is required", ErrInvalidArgument)
	}

	form := url.Values{}
	if cmd.Command != "" {
		form.Set("command", cmd.Command)
	}
	if cmd.Comment != "" {
		form.Set("comment", cmd.Comment)
	}
	if cmd.Group != "" {
		form.Set("group", cmd.Group)
	}
	if cmd.DisableNotifications {
		form.Set("disableNotifications", "true")
	}
	if cmd.RunAs != "" {
		form.Set("runAs", cmd.RunAs)
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodPost,
		Path:   issuePath(id, "execute"),
		Form:   form,
	}, opts...)
	if err != nil {
		return err
	}
	resp, err = requireSuccess(resp)
	if err != nil {
		return err
	}
	return resp.Close()
}

// Delete removes an issue by ID.
func (s *issueService) Delete(ctx context.Context, id string, opts ...RequestOption) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodDelete,
		Path:   issuePath(id),
	}, opts...)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Close()
		return false, nil
	}

	resp, err = requireSuccess(resp)
	if err != nil {
		return false, err
	}
	_ = resp.Close()
	return true, nil
}

// readDocument requires a 2xx response and parses its body.
func readDocument(resp *RawResponse) (*Node, error) {
	resp, err := requireSuccess(resp)
	if err != nil {
		return nil, err
	}
	body, err := resp.ReadAll()
	if err != nil {
		return nil, transportFailure(err)
	}
	return ParseDocument(body)
}

// readDTO requires a 2xx response and unmarshals its body.
func readDTO[T any](resp *RawResponse) (T, error) {
	var zero T
	resp, err := requireSuccess(resp)
	if err != nil {
		return zero, err
	}
	body, err := resp.ReadAll()
	if err != nil {
		return zero, transportFailure(err)
	}
	return DecodeXML[T](body)
}
