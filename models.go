package youtrack

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Issue represents a YouTrack issue.
type Issue struct {
	ID               string
	ProjectShortName string
	NumberInProject  int
	Summary          string
	Description      string
	ReporterName     string
	Created          time.Time
	Updated          time.Time

	// Fields holds every field of the issue by name, including the ones
	// mapped above. Multi-value fields keep server order.
	Fields map[string][]string

	// Comments is filled only when the server embeds them.
	Comments []*Comment
}

// Field returns the first value of the named field.
func (i *Issue) Field(name string) (string, bool) {
	values, ok := i.Fields[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Comment represents a comment on an issue.
type Comment struct {
	ID             string
	Author         string
	AuthorFullName string
	Text           string
	Created        time.Time
	Updated        time.Time
}

// Project represents a YouTrack project.
type Project struct {
	ShortName   string `xml:"shortName,attr"`
	ID          string `xml:"id,attr"`
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr"`
	Lead        string `xml:"lead,attr"`
}

// Key returns the project short name, which the API uses as its identifier.
func (p *Project) Key() string {
	if p.ShortName != "" {
		return p.ShortName
	}
	return p.ID
}

// projectList is the payload of rest/project/all.
type projectList struct {
	XMLName  xml.Name   `xml:"projects"`
	Projects []*Project `xml:"project"`
}

// IssueFilter narrows the issues listed for a project.
type IssueFilter struct {
	// Query is a YouTrack search query, e.g. "State: Open".
	Query string

	// UpdatedAfter keeps issues updated after this time.
	UpdatedAfter time.Time
}

// CreateIssueRequest contains data for creating a new issue.
type CreateIssueRequest struct {
	Project     string
	Summary     string
	Description string
}

// Command is a YouTrack command applied to an issue, e.g. "State Fixed".
type Command struct {
	Command              string
	Comment              string
	Group                string
	DisableNotifications bool
	RunAs                string
}

// parseIssue maps an <issue> element.
func parseIssue(n *Node) (*Issue, error) {
	id, ok := n.Attr("id")
	if !ok || id == "" {
		return nil, &ParseError{Err: fmt.Errorf("issue element without id"), Snippet: n.String()}
	}

	issue := &Issue{
		ID:     id,
		Fields: make(map[string][]string),
	}

	for _, field := range n.Children("field") {
		name, ok := field.Attr("name")
		if !ok {
			continue
		}
		values := field.Children("value")
		vals := make([]string, 0, len(values))
		for _, v := range values {
			vals = append(vals, strings.TrimSpace(v.Text()))
		}
		issue.Fields[name] = vals
	}

	issue.ProjectShortName, _ = issue.Field("projectShortName")
	issue.Summary, _ = issue.Field("summary")
	issue.Description, _ = issue.Field("description")
	issue.ReporterName, _ = issue.Field("reporterName")

	var err error
	if v, ok := issue.Field("numberInProject"); ok {
		if issue.NumberInProject, err = strconv.Atoi(v); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("issue %s numberInProject: %w", id, err)}
		}
	}
	if issue.Created, err = fieldTime(issue, "created"); err != nil {
		return nil, err
	}
	if issue.Updated, err = fieldTime(issue, "updated"); err != nil {
		return nil, err
	}

	for _, c := range n.Children("comment") {
		comment, err := parseComment(c)
		if err != nil {
			return nil, err
		}
		issue.Comments = append(issue.Comments, comment)
	}

	return issue, nil
}

func fieldTime(issue *Issue, name string) (time.Time, error) {
	v, ok := issue.Field(name)
	if !ok {
		return time.Time{}, nil
	}
	t, err := parseMillis(v)
	if err != nil {
		return time.Time{}, &ParseError{Err: fmt.Errorf("issue %s %s: %w", issue.ID, name, err)}
	}
	return t, nil
}

// parseComment maps a <comment> element.
func parseComment(n *Node) (*Comment, error) {
	c := &Comment{}
	c.ID, _ = n.Attr("id")
	c.Author, _ = n.Attr("author")
	c.AuthorFullName, _ = n.Attr("authorFullName")
	c.Text, _ = n.TextOf("@text")

	var err error
	if v, ok := n.Attr("created"); ok {
		if c.Created, err = parseMillis(v); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("comment %s created: %w", c.ID, err)}
		}
	}
	if v, ok := n.Attr("updated"); ok {
		if c.Updated, err = parseMillis(v); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("comment %s updated: %w", c.ID, err)}
		}
	}
	return c, nil
}

// parseMillis converts a Unix millisecond timestamp.
func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
