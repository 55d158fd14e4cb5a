package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refcheck/src/internal/schema"
)

type fakeDoer struct {
	status int
	body   string
	last   *http.Request
	sent   map[string]any
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.last = req
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(b, &f.sent)
	}
	return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader(f.body)), Header: make(http.Header)}, nil
}

func chat(content string) string {
	b, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"message": map[string]string{"content": content}}}})
	return string(b)
}

func TestParse_Shapes(t *testing.T) {
	cases := map[string]string{
		"bare":    `[{"title":"A"},{"doi":"10.1/x"}]`,
		"fenced":  "```json\n[{\"title\":\"A\"},{\"doi\":\"10.1/x\"}]\n```",
		"wrapped": `{"citations":[{"title":"A"},{"doi":"10.1/x"}]}`,
		"prose":   `Here you go: [{"title":"A"},{"doi":"10.1/x"}] hope it helps`,
	}
	for name, in := range cases {
		recs, err := Parse(in)
		require.NoError(t, err, name)
		require.Len(t, recs, 2, name)
		assert.Equal(t, "A", recs[0].Title, name)
		assert.Equal(t, "10.1/x", recs[1].DOI, name)
	}
}

func TestParse_IncompleteFields(t *testing.T) {
	recs, err := Parse(`[{"complete":false,"position":"end","doi":"10.1/X","raw_text":"Smith J. Intro to","reason":"cut at end"},{}]`)
	require.NoError(t, err)
	require.Len(t, recs, 1, "empty objects are dropped")
	r := recs[0]
	assert.False(t, r.IsComplete())
	assert.Equal(t, schema.PositionEnd, r.Position)
	assert.Equal(t, "10.1/x", r.DOI)
}

func TestParse_Empty(t *testing.T) {
	recs, err := Parse("[]")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = Parse("no citations here")
	assert.ErrorIs(t, err, ErrUnparsable)
	_, err = Parse("   ")
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestRender(t *testing.T) {
	w := schema.Window{Index: 2, Start: 10, End: 20, Text: "body"}
	assert.Equal(t, "w3 10-20: body", Render("w{{window}} {{start}}-{{end}}: {{text}}", w))
}

func TestClientExtract(t *testing.T) {
	fake := &fakeDoer{status: 200, body: chat(`[{"title":"Deep learning","year":2015,"authors":["LeCun Y","Bengio Y"]}]`)}
	c := New(Config{APIKey: "k", BaseURL: "https://llm.example/v1/", PromptTemplate: "T={{text}}"}, fake)
	recs, err := c.Extract(context.Background(), schema.Window{Text: "refs"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2015, recs[0].Year.Int())
	assert.Equal(t, "https://llm.example/v1/chat/completions", fake.last.URL.String())
	assert.Equal(t, "Bearer k", fake.last.Header.Get("Authorization"))
	assert.Equal(t, DefaultModel, fake.sent["model"])
	msgs := fake.sent["messages"].([]any)
	assert.Equal(t, "T=refs", msgs[1].(map[string]any)["content"])
}

func TestClientExtract_Errors(t *testing.T) {
	_, err := New(Config{}, &fakeDoer{status: 200}).Extract(context.Background(), schema.Window{})
	assert.Error(t, err, "missing key")

	_, err = New(Config{APIKey: "k"}, &fakeDoer{status: 500, body: "boom"}).Extract(context.Background(), schema.Window{})
	assert.ErrorContains(t, err, "http 500")

	_, err = New(Config{APIKey: "k"}, &fakeDoer{status: 200, body: `{"choices":[]}`}).Extract(context.Background(), schema.Window{})
	assert.ErrorContains(t, err, "empty choices")

	_, err = New(Config{APIKey: "k"}, &fakeDoer{status: 200, body: chat("sorry, I cannot")}).Extract(context.Background(), schema.Window{})
	assert.True(t, errors.Is(err, ErrUnparsable))
}

func TestFunc(t *testing.T) {
	var e Extractor = Func(func(_ context.Context, w schema.Window) ([]schema.RawExtraction, error) {
		return []schema.RawExtraction{{Title: w.Text}}, nil
	})
	recs, err := e.Extract(context.Background(), schema.Window{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", recs[0].Title)
}
