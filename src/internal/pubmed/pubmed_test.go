package pubmed

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

// routeHTTP answers by endpoint name.
type routeHTTP struct {
	routes map[string]string
	status int
	calls  []*http.Request
}

func (r *routeHTTP) Do(req *http.Request) (*http.Response, error) {
	r.calls = append(r.calls, req)
	status := r.status
	if status == 0 {
		status = 200
	}
	body := ""
	for suffix, b := range r.routes {
		if strings.HasSuffix(req.URL.Path, suffix) {
			body = b
		}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: make(http.Header)}, nil
}

const summaryBody = `{"result":{"uids":["31234567"],"31234567":{
    "uid":"31234567","pubdate":"2019 Mar 12","source":"Nature","fulljournalname":"Nature.",
    "title":"Quantum effects on superconductivity.","volume":"567","issue":"7748","pages":"806-14",
    "authors":[{"name":"Smith J","authtype":"Author"},{"name":"Doe JA","authtype":"Author"},{"name":"Some Group","authtype":"CollectiveName"}],
    "articleids":[{"idtype":"pubmed","value":"31234567"},{"idtype":"doi","value":"10.1038/S41586-019-0001-1"}]
}}}`

func TestLookupDOI_SearchThenSummary(t *testing.T) {
	fake := &routeHTTP{routes: map[string]string{
		"/esearch.fcgi":  `{"esearchresult":{"count":"1","idlist":["31234567"]}}`,
		"/esummary.fcgi": summaryBody,
	}}
	c := New(fake, "")
	rec, err := c.LookupDOI(context.Background(), "10.1038/s41586-019-0001-1", "me@example.org")
	if err != nil || rec == nil {
		t.Fatalf("LookupDOI: %v %v", rec, err)
	}
	if rec.Title != "Quantum effects on superconductivity" || rec.Year != 2019 || rec.PMID != "31234567" {
		t.Fatalf("mapping: %+v", rec)
	}
	if rec.DOI != "10.1038/s41586-019-0001-1" || rec.Pages != "806-14" {
		t.Fatalf("ids/pages: %+v", rec)
	}
	if len(rec.Authors) != 2 || rec.Authors[1] != "Doe JA" {
		t.Fatalf("authors: %+v", rec.Authors)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("want 2 calls, got %d", len(fake.calls))
	}
	q := fake.calls[0].URL.Query()
	if q.Get("term") != "10.1038/s41586-019-0001-1[doi]" || q.Get("db") != "pubmed" || q.Get("email") != "me@example.org" {
		t.Fatalf("esearch query: %s", fake.calls[0].URL.RawQuery)
	}
}

func TestLookupDOI_NoHit(t *testing.T) {
	fake := &routeHTTP{routes: map[string]string{"/esearch.fcgi": `{"esearchresult":{"count":"0","idlist":[]}}`}}
	rec, err := New(fake, "").LookupDOI(context.Background(), "10.0/none", "")
	if err != nil || rec != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", rec, err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("summary should not be requested without a hit")
	}
}

func TestLookupPMID(t *testing.T) {
	fake := &routeHTTP{routes: map[string]string{"/esummary.fcgi": summaryBody}}
	c := New(fake, "KEY")
	rec, err := c.LookupPMID(context.Background(), "PMID: 31234567", "")
	if err != nil || rec == nil || rec.Journal != "Nature." {
		t.Fatalf("LookupPMID: %+v %v", rec, err)
	}
	if fake.calls[0].URL.Query().Get("api_key") != "KEY" {
		t.Fatalf("api_key not forwarded")
	}
}

func TestLookupPMID_ErrorDocumentIsNotFound(t *testing.T) {
	fake := &routeHTTP{routes: map[string]string{"/esummary.fcgi": `{"result":{"uids":[],"999":{"uid":"999","error":"cannot get document summary"}}}`}}
	rec, err := New(fake, "").LookupPMID(context.Background(), "999", "")
	if err != nil || rec != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", rec, err)
	}
}

func TestLookupPMID_HTTPError(t *testing.T) {
	fake := &routeHTTP{status: 429, routes: map[string]string{}}
	if _, err := New(fake, "").LookupPMID(context.Background(), "1", ""); err == nil || !strings.Contains(err.Error(), "http 429") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestLookup_CancelledContextStopsAtPacer(t *testing.T) {
	fake := &routeHTTP{routes: map[string]string{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(fake, "").LookupPMID(ctx, "1", ""); err == nil {
		t.Fatalf("expected context error")
	}
	if len(fake.calls) != 0 {
		t.Fatalf("no request should be sent after cancel")
	}
}

func TestSummaryRecord_JournalFallsBackToSource(t *testing.T) {
	r := Summary{UID: "7", Title: "A title.", Source: "Nat Med", PubDate: "2018"}.Record()
	if r.Journal != "Nat Med" || r.Title != "A title" || r.Year != 2018 {
		t.Fatalf("fallback: %+v", r)
	}
	r = Summary{UID: "7", Source: "Nat Med", FullJournalName: "Nature medicine"}.Record()
	if r.Journal != "Nature medicine" {
		t.Fatalf("full name should win: %+v", r)
	}
}
