// Package youtrack provides a Go client for the YouTrack XML/REST API.
//
// # Quick Start
//
//	client, err := youtrack.NewClient(
//	    youtrack.WithBaseURL("https://tracker.example.com/youtrack"),
//	    youtrack.WithCredentials(login, password),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for issue, err := range client.Issues.ByProject(ctx, "ABC", nil) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("%s: %s\n", issue.ID, issue.Summary)
//	}
//
// # Error Handling
//
// Every response passes a validation chain before its body is read. 400 and
// 500 become *TransportError, 401 and 403 become *AuthorizationError. The
// server answers 403 both for forbidden and for missing resources; the client
// does not guess which one was meant. Malformed payloads become *ParseError.
// KindOf classifies any returned error:
//
//	issue, ok, err := client.Issues.Get(ctx, "ABC-1")
//	switch {
//	case youtrack.KindOf(err) == youtrack.KindAuthorization:
//	    client.Logout() // next call logs in again
//	case err != nil:
//	    return err
//	case !ok:
//	    // no such issue
//	}
//
// Absence is not an error: lookups report it through their bool result, and
// XML queries return ("", false) or an empty slice.
//
// # Pagination
//
// Paginated endpoints are exposed both as iter.Seq2 sequences and as pull
// iterators. A page is requested only when the previous one has been
// consumed, and the first empty page ends the stream:
//
//	it := client.Issues.Pager("ABC", &youtrack.IssueFilter{Query: "State: Open"})
//	for {
//	    ok, err := it.HasNext(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    issue, _ := it.Next()
//	    fmt.Println(issue.ID)
//	}
//
// # XML Access
//
// ParseDocument returns a *Node that answers XPath-style queries:
//
//	root, err := youtrack.ParseDocument(body)
//	summary, ok := root.TextOf("field[@name='summary']/value")
//	author, ok := root.TextOf("comment/@author")
package youtrack
