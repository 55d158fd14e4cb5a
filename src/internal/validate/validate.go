// Package validate checks extracted citations against CrossRef and PubMed
// and assigns a verdict.
package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"refcheck/src/internal/dates"
	"refcheck/src/internal/metrics"
	"refcheck/src/internal/names"
	"refcheck/src/internal/sanitize"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/similarity"
)

// DOIResolver resolves a DOI to a record; (nil, nil) means not found.
type DOIResolver interface {
	LookupDOI(ctx context.Context, doi, contact string) (*schema.Record, error)
}

// PMIDResolver resolves a PubMed id to a record; (nil, nil) means not found.
type PMIDResolver interface {
	LookupPMID(ctx context.Context, pmid, contact string) (*schema.Record, error)
}

// Searcher runs a free-text bibliographic query.
type Searcher interface {
	Search(ctx context.Context, query, contact string) ([]schema.Record, error)
}

// CrossRef is the first authority: DOI lookup and search.
type CrossRef interface {
	DOIResolver
	Searcher
}

// PubMed is the second authority: DOI and PMID lookup.
type PubMed interface {
	DOIResolver
	PMIDResolver
}

// Lookup steps recorded in Validation.Lookups.
const (
	StepDOI    = "doi"
	StepPMID   = "pmid"
	StepSearch = "search"
)

// MsgNotVerified is the message for citations no authority could match.
const MsgNotVerified = "could not verify against CrossRef or PubMed"

// Outcome is the verdict for one citation.
type Outcome struct {
	Status     schema.Status
	Message    string
	Validation *schema.Validation
}

// Apply copies o onto e.
func (o Outcome) Apply(e *schema.Extraction) {
	e.ValidationStatus = o.Status
	e.ValidationMessage = o.Message
	e.Validation = o.Validation
}

// Options configures a Matcher. Either authority may be nil.
type Options struct {
	CrossRef CrossRef
	PubMed   PubMed
	Contact  string
	Logger   *zap.Logger
}

// Matcher runs the lookup steps for a citation.
type Matcher struct {
	crossref CrossRef
	pubmed   PubMed
	contact  string
	logger   *zap.Logger
}

// New returns a Matcher for opts.
func New(opts Options) *Matcher {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Matcher{crossref: opts.CrossRef, pubmed: opts.PubMed, contact: opts.Contact, logger: lg}
}

// Validate looks c up by DOI, then PMID, then free-text search, stopping at
// the first step that yields a record. ctx is checked before each step; calls
// already started are not aborted. The only error returned is ctx's.
func (m *Matcher) Validate(ctx context.Context, c schema.RawExtraction) (Outcome, error) {
	if !c.IsComplete() {
		msg := c.Reason
		if msg == "" {
			msg = "citation truncated at a window boundary"
		}
		metrics.Validations.WithLabelValues(string(schema.StatusIncomplete)).Inc()
		return Outcome{Status: schema.StatusIncomplete, Message: msg}, nil
	}

	call := context.WithoutCancel(ctx)
	cite := FromCitation(c)
	v := &schema.Validation{}

	if c.DOI != "" {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		v.Lookups = append(v.Lookups, StepDOI)
		cr, pm := m.lookupDOI(call, c.DOI, v)
		v.CrossRef, v.PubMed = cr, pm
		if rec := firstNonNil(cr, pm); rec != nil {
			return m.verdict(cite, *rec, v), nil
		}
	}

	if c.PMID != "" && m.pubmed != nil {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		v.Lookups = append(v.Lookups, StepPMID)
		rec, err := m.pubmed.LookupPMID(call, string(c.PMID), m.contact)
		m.noteErr(v, "pubmed", StepPMID, err)
		if rec != nil {
			v.PubMed = rec
			return m.verdict(cite, *rec, v), nil
		}
	}

	if q := BuildQuery(c); q != "" && m.crossref != nil {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		v.Lookups = append(v.Lookups, StepSearch)
		cands, err := m.crossref.Search(call, q, m.contact)
		m.noteErr(v, "crossref", StepSearch, err)
		if best, ok := Best(cite, cands); ok {
			v.CrossRef = &best
			return m.verdict(cite, best, v), nil
		}
	}

	metrics.Validations.WithLabelValues(string(schema.StatusInvalid)).Inc()
	return Outcome{Status: schema.StatusInvalid, Message: MsgNotVerified, Validation: v}, nil
}

// lookupDOI queries both authorities concurrently.
func (m *Matcher) lookupDOI(ctx context.Context, doi string, v *schema.Validation) (cr, pm *schema.Record) {
	var mu sync.Mutex
	var g errgroup.Group
	if m.crossref != nil {
		g.Go(func() error {
			rec, err := m.crossref.LookupDOI(ctx, doi, m.contact)
			mu.Lock()
			defer mu.Unlock()
			m.noteErr(v, "crossref", StepDOI, err)
			cr = rec
			return nil
		})
	}
	if m.pubmed != nil {
		g.Go(func() error {
			rec, err := m.pubmed.LookupDOI(ctx, doi, m.contact)
			mu.Lock()
			defer mu.Unlock()
			m.noteErr(v, "pubmed", StepDOI, err)
			pm = rec
			return nil
		})
	}
	_ = g.Wait()
	return cr, pm
}

func (m *Matcher) noteErr(v *schema.Validation, authority, step string, err error) {
	if err == nil {
		return
	}
	m.logger.Warn("authority lookup failed",
		zap.String("authority", authority),
		zap.String("step", step),
		zap.Error(err))
	v.LastError = fmt.Sprintf("%s %s: %v", authority, step, err)
}

func (m *Matcher) verdict(cite, rec schema.Record, v *schema.Validation) Outcome {
	score := similarity.CalculateMatchScore(cite, rec)
	v.Source = rec.Source
	v.Score = &score
	status := similarity.Verdict(score.Overall)
	metrics.Validations.WithLabelValues(string(status)).Inc()
	return Outcome{
		Status:     status,
		Message:    fmt.Sprintf("%s match, score %.2f over %d fields", rec.Source, score.Overall, score.FieldsCompared),
		Validation: v,
	}
}

// Best returns the highest-scoring candidate; ties keep the earlier one.
func Best(cite schema.Record, cands []schema.Record) (schema.Record, bool) {
	best, bestScore := -1, -1.0
	for i, c := range cands {
		if s := similarity.CalculateMatchScore(cite, c).Overall; s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return schema.Record{}, false
	}
	return cands[best], true
}

// FromCitation converts an extracted citation to the comparison shape.
func FromCitation(c schema.RawExtraction) schema.Record {
	return schema.Record{
		Title:   c.Title,
		Authors: append([]string(nil), c.Authors...),
		Year:    dates.ExtractYear(string(c.Year)),
		Journal: c.ContainerTitle,
		Volume:  string(c.Volume),
		Issue:   string(c.Issue),
		Pages:   string(c.Pages),
		DOI:     c.DOI,
		PMID:    string(c.PMID),
	}
}

// MaxRawQuery caps the raw citation text used as a search query.
const MaxRawQuery = 300

// BuildQuery returns c's own query string or one assembled from title, first
// author family name, container and year. A citation with none of those is
// searched by its raw text, cut to MaxRawQuery runes at a word boundary.
func BuildQuery(c schema.RawExtraction) string {
	if q := strings.TrimSpace(c.QueryBibliographic); q != "" {
		return q
	}
	var parts []string
	for _, p := range []string{c.Title, names.Family(c.FirstAuthor()), c.ContainerTitle} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if y := dates.ExtractYear(string(c.Year)); y > 0 {
		parts = append(parts, strconv.Itoa(y))
	}
	if len(parts) == 0 {
		return rawQuery(c.RawText)
	}
	return strings.Join(parts, " ")
}

func rawQuery(raw string) string {
	r := []rune(sanitize.CollapseSpace(raw))
	if len(r) <= MaxRawQuery {
		return string(r)
	}
	q := string(r[:MaxRawQuery])
	if i := strings.LastIndexByte(q, ' '); i > 0 {
		q = q[:i]
	}
	return q
}

func firstNonNil(recs ...*schema.Record) *schema.Record {
	for _, r := range recs {
		if r != nil {
			return r
		}
	}
	return nil
}
