// Package extract turns one window of source text into raw citation records
// by calling an OpenAI-compatible chat completions endpoint.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"refcheck/src/internal/httpx"
	"refcheck/src/internal/sanitize"
	"refcheck/src/internal/schema"
)

// ErrUnparsable is returned when the model reply holds no citation JSON.
var ErrUnparsable = errors.New("extract: unparsable model output")

// Extractor returns the citations found in one window.
type Extractor interface {
	Extract(ctx context.Context, w schema.Window) ([]schema.RawExtraction, error)
}

// Func adapts a plain function to Extractor.
type Func func(ctx context.Context, w schema.Window) ([]schema.RawExtraction, error)

func (f Func) Extract(ctx context.Context, w schema.Window) ([]schema.RawExtraction, error) {
	return f(ctx, w)
}

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

const systemPrompt = "You extract bibliographic citations from text. Output strict JSON only."

// DefaultPromptTemplate is the user prompt. {{text}} is replaced by the window
// text, {{window}} by its 1-based number, {{start}} and {{end}} by its offsets.
const DefaultPromptTemplate = `Extract every bibliographic citation in the text below (window {{window}}, characters {{start}}-{{end}}).
Return ONLY a JSON array. Each element is an object with any of these keys:
"doi", "pmid", "isbn", "title", "year", "authors" (array of "Family Initials" strings),
"authors_truncated" (true if the list ends in "et al."), "container_title", "volume", "issue",
"pages", "raw_text" (the citation exactly as written), "query_bibliographic" (a search string
for the work), "complete" (false if the citation is cut off by the start or end of the text),
"position" ("start" or "end": which edge cut it off; only when complete is false),
"reason" (why it is incomplete). Omit unknown keys. Return [] if there are none.

Text:
{{text}}`

// Config holds the endpoint and prompt settings.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	PromptTemplate string
}

// Client is an Extractor backed by a chat completions endpoint.
type Client struct {
	cfg  Config
	http httpx.Doer
}

// New returns a Client; zero Config fields take their defaults.
func New(cfg Config, doer httpx.Doer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.PromptTemplate) == "" {
		cfg.PromptTemplate = DefaultPromptTemplate
	}
	if doer == nil {
		doer = httpx.NewClient()
	}
	return &Client{cfg: cfg, http: doer}
}

// Render fills the template placeholders for w.
func Render(tmpl string, w schema.Window) string {
	return strings.NewReplacer(
		"{{text}}", w.Text,
		"{{window}}", strconv.Itoa(w.Index+1),
		"{{start}}", strconv.Itoa(w.Start),
		"{{end}}", strconv.Itoa(w.End),
	).Replace(tmpl)
}

// Extract sends w to the model and parses the reply.
func (c *Client) Extract(ctx context.Context, w schema.Window) ([]schema.RawExtraction, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("extract: API key is not set")
	}
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": Render(c.cfg.PromptTemplate, w)},
		},
	}
	buf, _ := json.Marshal(body)
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	httpx.SetUA(req, "")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("extract: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("extract: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("extract: empty choices")
	}
	return Parse(out.Choices[0].Message.Content)
}

// Parse decodes a model reply: a JSON array, possibly fenced, possibly wrapped
// in an object under "citations", "references" or "extractions".
func Parse(content string) ([]schema.RawExtraction, error) {
	s := sanitize.StripFences(content)
	if s == "" {
		return nil, ErrUnparsable
	}
	recs, err := decode(s)
	if err != nil {
		// best effort: the outermost array inside surrounding prose
		start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		if recs, err = decode(s[start : end+1]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
	}
	out := make([]schema.RawExtraction, 0, len(recs))
	for _, r := range recs {
		r.Clean()
		if isEmpty(r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func decode(s string) ([]schema.RawExtraction, error) {
	if strings.HasPrefix(s, "{") {
		var wrap map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &wrap); err != nil {
			return nil, err
		}
		for _, k := range []string{"citations", "references", "extractions"} {
			if raw, ok := wrap[k]; ok {
				var recs []schema.RawExtraction
				err := json.Unmarshal(raw, &recs)
				return recs, err
			}
		}
		// a single bare citation object
		var r schema.RawExtraction
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, err
		}
		return []schema.RawExtraction{r}, nil
	}
	var recs []schema.RawExtraction
	err := json.Unmarshal([]byte(s), &recs)
	return recs, err
}

func isEmpty(r schema.RawExtraction) bool {
	return r.DOI == "" && r.PMID == "" && r.ISBN == "" && r.Title == "" &&
		len(r.Authors) == 0 && r.RawText == "" && r.QueryBibliographic == "" && r.ContainerTitle == ""
}
