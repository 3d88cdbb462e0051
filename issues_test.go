package youtrack_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-youtrack"
)

func issueDoc(id, summary string) string {
	return fmt.Sprintf(`<issue id=%q>
  <field name="projectShortName"><value>ABC</value></field>
  <field name="numberInProject"><value>%s</value></field>
  <field name="summary"><value>%s</value></field>
  <field name="created"><value>1700000000000</value></field>
  <field name="Fix versions"><value>1.0</value><value>1.1</value></field>
</issue>`, id, strings.TrimPrefix(id, "ABC-"), summary)
}

func TestIssueService_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("GET /rest/issue/{id}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "ABC-1", r.PathValue("id"))
			_, _ = w.Write([]byte(issueDoc("ABC-1", "Crash on start")))
		})

		issue, ok, err := newTestClient(t, server).Issues.Get(context.Background(), "ABC-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "ABC-1", issue.ID)
		assert.Equal(t, "ABC", issue.ProjectShortName)
		assert.Equal(t, 1, issue.NumberInProject)
		assert.Equal(t, "Crash on start", issue.Summary)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), issue.Created)
		assert.True(t, issue.Updated.IsZero())
		assert.Equal(t, []string{"1.0", "1.1"}, issue.Fields["Fix versions"])
	})

	t.Run("missing issue is absence", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("GET /rest/issue/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		issue, ok, err := newTestClient(t, server).Issues.Get(context.Background(), "ABC-404")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, issue)
	})

	t.Run("forbidden is an authorization error", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("GET /rest/issue/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, _, err := newTestClient(t, server).Issues.Get(context.Background(), "ABC-1")
		require.Error(t, err)
		assert.Equal(t, youtrack.KindAuthorization, youtrack.KindOf(err))

		var apiErr *youtrack.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})

	t.Run("malformed body is a parse error", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("GET /rest/issue/{id}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<issue id="ABC-1"><field`))
		})

		_, _, err := newTestClient(t, server).Issues.Get(context.Background(), "ABC-1")
		assert.Equal(t, youtrack.KindParse, youtrack.KindOf(err))
	})

	t.Run("issue without id is a parse error", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("GET /rest/issue/{id}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<issue/>`))
		})

		_, _, err := newTestClient(t, server).Issues.Get(context.Background(), "ABC-1")
		assert.Equal(t, youtrack.KindParse, youtrack.KindOf(err))
	})

	t.Run("empty id", func(t *testing.T) {
		_, server := newTracker(t)
		_, _, err := newTestClient(t, server).Issues.Get(context.Background(), "")
		assert.ErrorIs(t, err, youtrack.ErrInvalidArgument)
	})
}

func TestIssueService_Exists(t *testing.T) {
	tr, server := newTracker(t)
	tr.handle("GET /rest/issue/ABC-1/exists", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	tr.handle("GET /rest/issue/ABC-2/exists", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(t, server)

	ok, err := client.Issues.Exists(context.Background(), "ABC-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Issues.Exists(context.Background(), "ABC-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

// projectPages serves issues in pages of the requested size from a fixed list.
func projectPages(t *testing.T, tr *tracker, project string, ids []string, requests *[]string) {
	t.Helper()
	tr.handle("GET /rest/issue/byproject/{project}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, project, r.PathValue("project"))
		*requests = append(*requests, r.URL.RawQuery)

		after, err := strconv.Atoi(r.URL.Query().Get("after"))
		assert.NoError(t, err)
		size, err := strconv.Atoi(r.URL.Query().Get("max"))
		assert.NoError(t, err)

		var sb strings.Builder
		sb.WriteString("<issues>")
		for i := after; i < len(ids) && i < after+size; i++ {
			sb.WriteString(issueDoc(ids[i], "issue "+ids[i]))
		}
		sb.WriteString("</issues>")
		_, _ = w.Write([]byte(sb.String()))
	})
}

func TestIssueService_ByProject(t *testing.T) {
	t.Run("walks every page", func(t *testing.T) {
		tr, server := newTracker(t)
		var requests []string
		projectPages(t, tr, "ABC", []string{"ABC-1", "ABC-2", "ABC-3", "ABC-4"}, &requests)

		client := newTestClient(t, server, youtrack.WithPageSize(2))
		issues, err := youtrack.Collect(client.Issues.ByProject(context.Background(), "ABC", nil))
		require.NoError(t, err)

		require.Len(t, issues, 4)
		for i, issue := range issues {
			assert.Equal(t, fmt.Sprintf("ABC-%d", i+1), issue.ID)
		}
		assert.Equal(t, []string{"after=0&max=2", "after=2&max=2", "after=4&max=2"}, requests)
	})

	t.Run("empty project makes one request", func(t *testing.T) {
		tr, server := newTracker(t)
		var requests []string
		projectPages(t, tr, "ABC", nil, &requests)

		issues, err := youtrack.Collect(newTestClient(t, server).Issues.ByProject(context.Background(), "ABC", nil))
		require.NoError(t, err)
		assert.Empty(t, issues)
		assert.Len(t, requests, 1)
	})

	t.Run("filter is sent with every page", func(t *testing.T) {
		tr, server := newTracker(t)
		var requests []string
		projectPages(t, tr, "ABC", []string{"ABC-1"}, &requests)

		filter := &youtrack.IssueFilter{
			Query:        "State: Open",
			UpdatedAfter: time.UnixMilli(1700000000000),
		}
		_, err := youtrack.Collect(newTestClient(t, server).Issues.ByProject(context.Background(), "ABC", filter))
		require.NoError(t, err)

		require.Len(t, requests, 2)
		for _, q := range requests {
			assert.Contains(t, q, "filter=State%3A+Open")
			assert.Contains(t, q, "updatedAfter=1700000000000")
		}
	})

	t.Run("early break stops fetching", func(t *testing.T) {
		tr, server := newTracker(t)
		var requests []string
		projectPages(t, tr, "ABC", []string{"ABC-1", "ABC-2", "ABC-3", "ABC-4"}, &requests)

		client := newTestClient(t, server, youtrack.WithPageSize(2))
		first, err := youtrack.First(client.Issues.ByProject(context.Background(), "ABC", nil))
		require.NoError(t, err)
		assert.Equal(t, "ABC-1", first.ID)
		assert.Len(t, requests, 1)
	})

	t.Run("empty project name", func(t *testing.T) {
		_, server := newTracker(t)
		_, err := youtrack.Collect(newTestClient(t, server).Issues.ByProject(context.Background(), "", nil))
		assert.ErrorIs(t, err, youtrack.ErrInvalidArgument)
	})

	t.Run("expired session surfaces as authorization error", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("GET /rest/issue/byproject/{project}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := youtrack.Collect(newTestClient(t, server).Issues.ByProject(context.Background(), "ABC", nil))
		assert.Equal(t, youtrack.KindAuthorization, youtrack.KindOf(err))
	})
}

func TestIssueService_Pager(t *testing.T) {
	tr, server := newTracker(t)
	var requests []string
	projectPages(t, tr, "ABC", []string{"ABC-1", "ABC-2", "ABC-3"}, &requests)

	client := newTestClient(t, server, youtrack.WithPageSize(2))
	pager := client.Issues.Pager("ABC", nil)
	ctx := context.Background()

	var ids []string
	for {
		ok, err := pager.HasNext(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		issue, err := pager.Next()
		require.NoError(t, err)
		ids = append(ids, issue.ID)
	}

	assert.Equal(t, []string{"ABC-1", "ABC-2", "ABC-3"}, ids)
	assert.Equal(t, 3, pager.Requests())
}

func TestIssueService_Comments(t *testing.T) {
	tr, server := newTracker(t)
	tr.handle("GET /rest/issue/ABC-1/comment", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<comments>
  <comment id="c1" author="root" authorFullName="Root" text="first" created="1700000000000"/>
  <comment id="c2" author="jane" text="second"/>
</comments>`))
	})

	comments, err := youtrack.Collect(newTestClient(t, server).Issues.Comments(context.Background(), "ABC-1"))
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c1", comments[0].ID)
	assert.Equal(t, "Root", comments[0].AuthorFullName)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), comments[0].Created)
	assert.Equal(t, "jane", comments[1].Author)
}

func TestIssueService_Create(t *testing.T) {
	t.Run("returns the new id", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("PUT /rest/issue", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "ABC", q.Get("project"))
			assert.Equal(t, "Crash on start", q.Get("summary"))
			assert.Equal(t, "details", q.Get("description"))
			w.Header().Set("Location", "http://"+r.Host+"/rest/issue/ABC-9")
			w.WriteHeader(http.StatusCreated)
		})

		id, err := newTestClient(t, server).Issues.Create(context.Background(), &youtrack.CreateIssueRequest{
			Project:     "ABC",
			Summary:     "Crash on start",
			Description: "details",
		})
		require.NoError(t, err)
		assert.Equal(t, "ABC-9", id)
	})

	t.Run("missing location is a parse error", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("PUT /rest/issue", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})

		_, err := newTestClient(t, server).Issues.Create(context.Background(), &youtrack.CreateIssueRequest{
			Project: "ABC",
			Summary: "x",
		})
		assert.Equal(t, youtrack.KindParse, youtrack.KindOf(err))
	})

	t.Run("rejected request is a transport error", func(t *testing.T) {
		tr, server := newTracker(t)
		tr.handle("PUT /rest/issue", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := newTestClient(t, server).Issues.Create(context.Background(), &youtrack.CreateIssueRequest{
			Project: "ABC",
			Summary: "x",
		})
		assert.Equal(t, youtrack.KindTransport, youtrack.KindOf(err))
	})

	t.Run("validation", func(t *testing.T) {
		_, server := newTracker(t)
		client := newTestClient(t, server)

		for _, req := range []*youtrack.CreateIssueRequest{
			nil,
			{Summary: "x"},
			{Project: "ABC"},
		} {
			_, err := client.Issues.Create(context.Background(), req)
			assert.ErrorIs(t, err, youtrack.ErrInvalidArgument)
		}
	})
}

func TestIssueService_ApplyCommand(t *testing.T) {
	tr, server := newTracker(t)
	tr.handle("POST /rest/issue/ABC-1/execute", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "State Fixed", r.PostFormValue("command"))
		assert.Equal(t, "done", r.PostFormValue("comment"))
		assert.Equal(t, "true", r.PostFormValue("disableNotifications"))
		assert.Empty(t, r.PostFormValue("runAs"))
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, server)
	err := client.Issues.ApplyCommand(context.Background(), "ABC-1", &youtrack.Command{
		Command:              "State Fixed",
		Comment:              "done",
		DisableNotifications: true,
	})
	require.NoError(t, err)

	err = client.Issues.ApplyCommand(context.Background(), "ABC-1", &youtrack.Command{})
	assert.ErrorIs(t, err, youtrack.ErrInvalidArgument)
}

func TestIssueService_Delete(t *testing.T) {
	tr, server := newTracker(t)
	tr.handle("DELETE /rest/issue/ABC-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	tr.handle("DELETE /rest/issue/ABC-2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(t, server)

	deleted, err := client.Issues.Delete(context.Background(), "ABC-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = client.Issues.Delete(context.Background(), "ABC-2")
	require.NoError(t, err)
	assert.False(t, deleted)
}
