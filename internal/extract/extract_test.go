package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body><ul class="results">
  <li class="row">
    <span class="artist">Artist A</span><a class="title" href="/track/1">Song One</a><span class="remix">Original Mix</span>
  </li>
  <li class="row">
    <span class="artist">Artist B</span><a class="title" href="/track/2">Song Two</a><span class="remix"></span>
  </li>
  <li class="row">
    <a class="title" href="/track/3">Song Three</a>
  </li>
</ul></body></html>`

func mustCompile(t *testing.T, name, selector, attr string, first, bracket bool) FieldSpec {
	t.Helper()
	fs, err := Compile(name, selector, attr, first, bracket)
	require.NoError(t, err)
	return fs
}

func listingSpecs(t *testing.T) []FieldSpec {
	return []FieldSpec{
		mustCompile(t, FieldArtist, "li.row .artist", "", false, false),
		mustCompile(t, FieldTitle, "li.row a.title", "", false, false),
		mustCompile(t, FieldSubtitle, "li.row .remix", "", false, false),
		mustCompile(t, FieldHref, "li.row a.title", "href", false, false),
	}
}

func TestListing_AlignsRowsAndBuildsMatchStrings(t *testing.T) {
	rows, err := Listing([]byte(listingHTML), listingSpecs(t))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Artist A - Song One (Original Mix)", rows[0].MatchString())
	assert.Equal(t, "/track/1", rows[0].Href)

	// subtitle 为空：不追加括号。
	assert.Equal(t, "Artist B - Song Two", rows[1].MatchString())

	// artist 只有两行匹配：第三行按下标对齐后为空串。
	assert.Equal(t, " - Song Three", rows[2].MatchString())
	assert.Equal(t, "/track/3", rows[2].Href)
}

func TestListing_NoTitlesYieldsNoRows(t *testing.T) {
	rows, err := Listing([]byte(`<html><body><p>nothing</p></body></html>`), listingSpecs(t))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

const detailHTML = `<html><body>
  <h1 class="title"><span>Song One</span><span>Original Mix</span><span>Remastered</span></h1>
  <div class="artists"><a>Artist A</a><a>Artist C</a></div>
  <div class="genre"><a>House</a></div>
  <img class="art" src="https://img.test/cover.jpg"/>
  <span class="label">  Label   X </span>
</body></html>`

func TestRecord_ModesAndBracketSuffix(t *testing.T) {
	specs := []FieldSpec{
		mustCompile(t, "title", "h1.title span", "", false, true),
		mustCompile(t, "artist", ".artists a", "", false, false),
		mustCompile(t, "genre", ".genre a", "", false, true),
		mustCompile(t, "artwork", "img.art", "src", true, false),
		mustCompile(t, "publisher", ".label", "", true, false),
		mustCompile(t, "comment", ".missing", "", true, false),
	}

	rec, err := Record([]byte(detailHTML), specs)
	require.NoError(t, err)

	assert.Equal(t, "Song One (Original Mix Remastered)", rec["title"])
	assert.Equal(t, "Artist A, Artist C", rec["artist"])
	assert.Equal(t, "House", rec["genre"], "单个值不加括号")
	assert.Equal(t, "https://img.test/cover.jpg", rec["artwork"])
	assert.Equal(t, "Label X", rec["publisher"])
	assert.Equal(t, "", rec["comment"], "first+text 无匹配时为空串")
}

func TestRecord_MissingAttributeNamesField(t *testing.T) {
	specs := []FieldSpec{
		mustCompile(t, "artwork", "img.nope", "src", true, false),
	}

	_, err := Record([]byte(detailHTML), specs)
	require.Error(t, err)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "artwork", fe.Field)
	assert.ErrorIs(t, err, ErrNoField)
	assert.Contains(t, err.Error(), "artwork")
}

func TestCompile_RejectsBadInput(t *testing.T) {
	_, err := Compile("title", "li[[", "", false, false)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "title", fe.Field)
	assert.ErrorIs(t, err, ErrBadSelector)

	_, err = Compile("", "li", "", false, false)
	assert.Error(t, err)

	_, err = Compile("title", "li", "", true, true)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadSelector)
}

func TestCompile_TaggedVariant(t *testing.T) {
	fs := mustCompile(t, "href", "a", " href ", true, false)
	assert.Equal(t, ExtractAttr, fs.Extraction)
	assert.Equal(t, "href", fs.Attr)
	assert.Equal(t, AggregateFirst, fs.Aggregation)

	fs = mustCompile(t, "title", "h1", "", false, true)
	assert.Equal(t, ExtractText, fs.Extraction)
	assert.Equal(t, AggregateConcat, fs.Aggregation)
	assert.True(t, fs.BracketSuffix)
}
