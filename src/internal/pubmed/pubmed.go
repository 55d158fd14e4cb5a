// Package pubmed resolves DOIs and PMIDs through NCBI E-utilities.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"refcheck/src/internal/dates"
	"refcheck/src/internal/httpx"
	"refcheck/src/internal/metrics"
	"refcheck/src/internal/sanitize"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/stringsx"
)

// DefaultBaseURL is the public E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// NCBI allows 3 requests/second without an API key and 10 with one.
const (
	RequestsPerSecond        = 3
	RequestsPerSecondWithKey = 10
)

// Source labels records produced by this package.
const Source = "pubmed"

// Client queries PubMed. The zero value is not usable; use New.
type Client struct {
	BaseURL string
	APIKey  string
	Tool    string
	HTTP    httpx.Doer
	limiter *rate.Limiter
}

// New returns a Client paced at the NCBI request rate for apiKey.
func New(doer httpx.Doer, apiKey string) *Client {
	if doer == nil {
		doer = httpx.NewClient()
	}
	rps := RequestsPerSecond
	if apiKey != "" {
		rps = RequestsPerSecondWithKey
	}
	return &Client{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Tool:    "refcheck",
		HTTP:    doer,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// LookupDOI finds the PubMed record carrying doi. It returns (nil, nil) when
// PubMed has no article with that DOI.
func (c *Client) LookupDOI(ctx context.Context, doi, contact string) (*schema.Record, error) {
	doi = schema.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	pmid, err := c.searchDOI(ctx, doi, contact)
	if err != nil || pmid == "" {
		metrics.RecordAuthority(Source, "doi", false, err)
		return nil, err
	}
	rec, err := c.summary(ctx, pmid, contact)
	metrics.RecordAuthority(Source, "doi", rec != nil, err)
	return rec, err
}

// LookupPMID fetches the summary for pmid. It returns (nil, nil) when PubMed
// has no such article.
func (c *Client) LookupPMID(ctx context.Context, pmid, contact string) (*schema.Record, error) {
	pmid = schema.NormalizePMID(pmid)
	if pmid == "" {
		return nil, nil
	}
	rec, err := c.summary(ctx, pmid, contact)
	metrics.RecordAuthority(Source, "pmid", rec != nil, err)
	return rec, err
}

func (c *Client) searchDOI(ctx context.Context, doi, contact string) (string, error) {
	q := c.params(contact)
	q.Set("term", doi+"[doi]")
	var out struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := c.get(ctx, "/esearch.fcgi", q, &out); err != nil {
		return "", err
	}
	if len(out.ESearchResult.IDList) == 0 {
		return "", nil
	}
	return out.ESearchResult.IDList[0], nil
}

func (c *Client) summary(ctx context.Context, pmid, contact string) (*schema.Record, error) {
	q := c.params(contact)
	q.Set("id", pmid)
	var out struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := c.get(ctx, "/esummary.fcgi", q, &out); err != nil {
		return nil, err
	}
	raw, ok := out.Result[pmid]
	if !ok {
		return nil, nil
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("pubmed: decode summary: %w", err)
	}
	if s.Error != "" || s.UID == "" {
		return nil, nil
	}
	rec := s.Record()
	return &rec, nil
}

func (c *Client) params(contact string) url.Values {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("retmode", "json")
	if c.Tool != "" {
		q.Set("tool", c.Tool)
	}
	if contact != "" {
		q.Set("email", contact)
	}
	if c.APIKey != "" {
		q.Set("api_key", c.APIKey)
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	u := strings.TrimRight(c.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	httpx.SetUA(req, q.Get("email"))
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("pubmed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pubmed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("pubmed: decode: %w", err)
	}
	return nil
}

// Summary is a partial model of an esummary document.
type Summary struct {
	UID             string      `json:"uid"`
	Error           string      `json:"error"`
	PubDate         string      `json:"pubdate"`
	EPubDate        string      `json:"epubdate"`
	Source          string      `json:"source"`
	FullJournalName string      `json:"fulljournalname"`
	Title           string      `json:"title"`
	Volume          string      `json:"volume"`
	Issue           string      `json:"issue"`
	Pages           string      `json:"pages"`
	Authors         []SumAuthor `json:"authors"`
	ArticleIDs      []ArticleID `json:"articleids"`
}

// SumAuthor is an esummary author in "Family GI" form.
type SumAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}

// ArticleID is one of the identifiers attached to an esummary document.
type ArticleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

// Record normalizes s into the common record shape.
func (s Summary) Record() schema.Record {
	r := schema.Record{
		Source:  Source,
		Title:   strings.TrimSuffix(sanitize.CleanString(s.Title, 1024), "."),
		Journal: sanitize.CleanString(stringsx.FirstNonEmpty(s.FullJournalName, s.Source), 512),
		Volume:  strings.TrimSpace(s.Volume),
		Issue:   strings.TrimSpace(s.Issue),
		Pages:   strings.TrimSpace(s.Pages),
		PMID:    s.UID,
	}
	if r.Year = dates.ExtractYear(s.PubDate); r.Year == 0 {
		r.Year = dates.ExtractYear(s.EPubDate)
	}
	for _, a := range s.Authors {
		if a.AuthType != "" && !strings.EqualFold(a.AuthType, "author") {
			continue
		}
		if n := strings.TrimSpace(a.Name); n != "" {
			r.Authors = append(r.Authors, n)
		}
	}
	for _, id := range s.ArticleIDs {
		if strings.EqualFold(id.IDType, "doi") {
			r.DOI = schema.NormalizeDOI(id.Value)
		}
	}
	return r
}
