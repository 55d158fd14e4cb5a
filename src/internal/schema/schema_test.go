package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRawExtraction_DecodeFlexibleShapes(t *testing.T) {
	in := `{
        "doi": "https://doi.org/10.1000/XYZ.",
        "pmid": 123456,
        "year": 2019,
        "volume": "12",
        "pages": "806-14",
        "authors": [{"family": "Smith", "given": "J"}, "Doe J", {"name": "Consortium"}],
        "complete": false,
        "position": "END"
    }`
	var r RawExtraction
	require.NoError(t, json.Unmarshal([]byte(in), &r))
	r.Clean()
	assert.Equal(t, "10.1000/xyz", r.DOI)
	assert.Equal(t, FlexString("123456"), r.PMID)
	assert.Equal(t, 2019, r.Year.Int())
	assert.Equal(t, Authors{"Smith, J", "Doe J", "Consortium"}, r.Authors)
	assert.False(t, r.IsComplete())
	assert.Equal(t, PositionEnd, r.Position)
	assert.Equal(t, "Smith, J", r.FirstAuthor())
}

func TestRawExtraction_CompleteDefaultsTrue(t *testing.T) {
	var r RawExtraction
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &r))
	assert.True(t, r.IsComplete())
	f := false
	r.Complete = &f
	r.Position = PositionStart
	r.Reason = "cut"
	r.MarkComplete()
	assert.True(t, r.IsComplete())
	assert.Empty(t, r.Position)
	assert.Empty(t, r.Reason)
}

func TestAuthors_SingleStringAndNull(t *testing.T) {
	var a Authors
	require.NoError(t, json.Unmarshal([]byte(`"Smith J"`), &a))
	assert.Equal(t, Authors{"Smith J"}, a)
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.Nil(t, a)
}

func TestAuthors_YAML(t *testing.T) {
	var v struct {
		Authors Authors    `yaml:"authors"`
		Year    FlexString `yaml:"year"`
	}
	doc := "authors:\n  - family: Doe\n    given: Jane\n  - Roe R\nyear: 2001\n"
	require.NoError(t, yaml.Unmarshal([]byte(doc), &v))
	assert.Equal(t, Authors{"Doe, Jane", "Roe R"}, v.Authors)
	assert.Equal(t, "2001", v.Year.String())
}

func TestFlexString_Int(t *testing.T) {
	assert.Equal(t, 2020, FlexString("2020a").Int())
	assert.Equal(t, 0, FlexString("n.d.").Int())
	assert.Equal(t, 0, FlexString("").Int())
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "10.1/abc", NormalizeDOI(" doi:10.1/ABC; "))
	assert.Equal(t, "10.1/abc", NormalizeDOI("http://dx.doi.org/10.1/abc"))
	assert.Equal(t, "080442957X", NormalizeISBN("0-8044-2957-x"))
	assert.Equal(t, "42", NormalizePMID("PMID: 42"))
}

func TestClean_DropsUnknownPositionAndEmptyAuthors(t *testing.T) {
	r := RawExtraction{Position: "middle", Authors: Authors{" ", "A B"}, Title: " T\x01 "}
	r.Clean()
	assert.Empty(t, r.Position)
	assert.Equal(t, Authors{"A B"}, r.Authors)
	assert.Equal(t, "T", r.Title)
}
