package youtrack

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
)

// ProjectService provides read access to YouTrack projects.
type ProjectService interface {
	// List returns every project visible to the session.
	List(ctx context.Context, opts ...RequestOption) ([]*Project, error)

	// All returns the projects as an iterator. The request is made when
	// iteration starts.
	All(ctx context.Context, opts ...RequestOption) iter.Seq2[*Project, error]

	// Get retrieves a project by short name. A missing project is reported
	// as (nil, false, nil).
	Get(ctx context.Context, id string, opts ...RequestOption) (*Project, bool, error)
}

type projectService struct {
	client *Client
}

func newProjectService(client *Client) *projectService {
	return &projectService{client: client}
}

// List returns every project visible to the session.
func (s *projectService) List(ctx context.Context, opts ...RequestOption) ([]*Project, error) {
	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   "rest/project/all",
	}, opts...)
	if err != nil {
		return nil, err
	}

	list, err := readDTO[projectList](resp)
	if err != nil {
		return nil, err
	}
	if list.Projects == nil {
		return []*Project{}, nil
	}
	return list.Projects, nil
}

// All returns the projects as an iterator.
func (s *projectService) All(ctx context.Context, opts ...RequestOption) iter.Seq2[*Project, error] {
	return func(yield func(*Project, error) bool) {
		projects, err := s.List(ctx, opts...)
		if err != nil {
			yield(nil, err)
			return
		}
		for p, err := range FromSlice(projects) {
			if !yield(p, err) {
				return
			}
		}
	}
}

// Get retrieves a project by short name.
func (s *projectService) Get(ctx context.Context, id string, opts ...RequestOption) (*Project, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("%w: project ID cannot be empty", ErrInvalidArgument)
	}

	resp, err := s.client.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   "rest/admin/project/" + url.PathEscape(id),
	}, opts...)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Close()
		return nil, false, nil
	}

	project, err := readDTO[Project](resp)
	if err != nil {
		return nil, false, err
	}
	if project.ShortName == "" {
		project.ShortName = project.ID
	}
	return &project, true, nil
}
