// Package crossref looks up works in the CrossRef REST API.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"refcheck/src/internal/dates"
	"refcheck/src/internal/httpx"
	"refcheck/src/internal/metrics"
	"refcheck/src/internal/sanitize"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/stringsx"
)

// DefaultBaseURL is the public CrossRef API.
const DefaultBaseURL = "https://api.crossref.org"

// DefaultRows bounds the number of search candidates returned.
const DefaultRows = 5

// Source labels records produced by this package.
const Source = "crossref"

// Client queries CrossRef. The zero value is not usable; use New.
type Client struct {
	BaseURL string
	Rows    int
	HTTP    httpx.Doer
}

// New returns a Client against DefaultBaseURL.
func New(doer httpx.Doer) *Client {
	if doer == nil {
		doer = httpx.NewClient()
	}
	return &Client{BaseURL: DefaultBaseURL, Rows: DefaultRows, HTTP: doer}
}

// LookupDOI fetches the work for doi. It returns (nil, nil) when CrossRef has
// no such DOI.
func (c *Client) LookupDOI(ctx context.Context, doi, contact string) (*schema.Record, error) {
	doi = schema.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	q := url.Values{}
	if contact != "" {
		q.Set("mailto", contact)
	}
	var env struct {
		Message Work `json:"message"`
	}
	found, err := c.get(ctx, "/works/"+url.PathEscape(doi), q, contact, &env)
	metrics.RecordAuthority(Source, "doi", found, err)
	if err != nil || !found {
		return nil, err
	}
	rec := env.Message.Record()
	return &rec, nil
}

// Search runs a bibliographic free-text query and returns up to Rows candidates.
func (c *Client) Search(ctx context.Context, query, contact string) ([]schema.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	rows := c.Rows
	if rows <= 0 {
		rows = DefaultRows
	}
	q := url.Values{}
	q.Set("query.bibliographic", query)
	q.Set("rows", strconv.Itoa(rows))
	if contact != "" {
		q.Set("mailto", contact)
	}
	var env struct {
		Message struct {
			Items []Work `json:"items"`
		} `json:"message"`
	}
	found, err := c.get(ctx, "/works", q, contact, &env)
	metrics.RecordAuthority(Source, "search", found && len(env.Message.Items) > 0, err)
	if err != nil || !found {
		return nil, err
	}
	out := make([]schema.Record, 0, len(env.Message.Items))
	for _, w := range env.Message.Items {
		if len(out) == rows {
			break
		}
		out = append(out, w.Record())
	}
	return out, nil
}

// get decodes a JSON response into v. found is false on 404.
func (c *Client) get(ctx context.Context, path string, q url.Values, contact string, v any) (found bool, err error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	httpx.SetUA(req, contact)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("crossref: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("crossref: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("crossref: decode: %w", err)
	}
	return true, nil
}

// Work is a partial model of a CrossRef work.
type Work struct {
	Title               any       `json:"title"`
	Author              []Author  `json:"author"`
	ContainerTitle      any       `json:"container-title"`
	ShortContainerTitle any       `json:"short-container-title"`
	Issued              DateParts `json:"issued"`
	PublishedPrint      DateParts `json:"published-print"`
	PublishedOnline     DateParts `json:"published-online"`
	Volume              string    `json:"volume"`
	Issue               string    `json:"issue"`
	Page                string    `json:"page"`
	DOI                 string    `json:"DOI"`
	Type                string    `json:"type"`
}

// Author is a CrossRef contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateParts is CrossRef's {"date-parts": [[y, m, d]]} shape.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Record normalizes w into the common record shape.
func (w Work) Record() schema.Record {
	r := schema.Record{
		Source:  Source,
		Title:   sanitize.CleanString(toString(w.Title), 1024),
		Journal: sanitize.CleanString(stringsx.FirstNonEmpty(toString(w.ContainerTitle), toString(w.ShortContainerTitle)), 512),
		Volume:  strings.TrimSpace(w.Volume),
		Issue:   strings.TrimSpace(w.Issue),
		Pages:   strings.TrimSpace(w.Page),
		DOI:     schema.NormalizeDOI(w.DOI),
	}
	for _, dp := range []DateParts{w.Issued, w.PublishedPrint, w.PublishedOnline} {
		if y := dates.YearFromParts(dp.DateParts); y > 0 {
			r.Year = y
			break
		}
	}
	for _, a := range w.Author {
		fam, giv := strings.TrimSpace(a.Family), strings.TrimSpace(a.Given)
		switch {
		case fam != "" && giv != "":
			r.Authors = append(r.Authors, fam+", "+giv)
		case fam != "":
			r.Authors = append(r.Authors, fam)
		case strings.TrimSpace(a.Name) != "":
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}
	}
	return r
}

// toString coerces a string or first element of an array to a string.
func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
