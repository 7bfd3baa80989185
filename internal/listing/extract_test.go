package listing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkaro/zillowbot/tests/testutil"
)

func strptr(s string) *string { return &s }

func TestExtractFullListing(t *testing.T) {
	body := testutil.ListingHTML(
		"https://www.zillow.com/homedetails/459-belden-hill-rd",
		"https://photos.zillowstatic.com/fp/hero-1.jpg",
		"\n      $2,495/mo    ",
		"3 bds | 2 ba | 1,450 sqft = freshly renovated, utilities included in the listed monthly price",
		"459\u200c Belden Hill Rd\u200c, Wilton, CT 06897",
	)

	got, err := Extract(testutil.HTMLEmail(t, body))
	require.NoError(t, err)

	want := Listing{
		URL:      strptr("https://www.zillow.com/homedetails/459-belden-hill-rd"),
		ImageURL: strptr("https://photos.zillowstatic.com/fp/hero-1.jpg"),
		Price:    strptr("$2,495/mo"),
		Facts:    strptr("3 bds | 2 ba | 1,450 sqft = freshly renovated, utilities included in the listed monthly price"),
		Address:  strptr("459 Belden Hill Rd, Wilton, CT 06897"),
	}
	assert.Equal(t, want, got)
}

func TestExtractHTMLOnlyMessage(t *testing.T) {
	body := testutil.ListingHTML(
		"https://www.zillow.com/homedetails/12-oak-st",
		"https://photos.zillowstatic.com/fp/hero-2.jpg",
		"$1,800/mo",
		"2 bds, 1 ba",
		"12 Oak St, Norwalk, CT",
	)

	got, err := Extract(testutil.HTMLOnlyEmail(t, body))
	require.NoError(t, err)

	require.NotNil(t, got.Address)
	assert.Equal(t, "12 Oak St, Norwalk, CT", *got.Address)
	require.NotNil(t, got.Price)
	assert.Equal(t, "$1,800/mo", *got.Price)
}

func TestExtractNoHTMLPart(t *testing.T) {
	got, err := Extract(testutil.PlainEmail(t, "A new listing matched your search."))

	require.Error(t, err)
	assert.True(t, IsExtractionError(err))

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, NoHTMLPart, extErr.Reason)
	assert.Equal(t, Listing{}, got)
}

func TestExtractUnparseableMessage(t *testing.T) {
	raw := []byte("this is not a mail message\r\n\r\nat all\r\n")

	_, err := Extract(raw)
	require.Error(t, err)

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ParseFailure, extErr.Reason)
}

func TestExtractScanBound(t *testing.T) {
	// The address block is the sixth labeled element and must be ignored.
	body := `<html><body>
<a aria-label="Property photo" href="https://listing/1"><div background="https://img/1.jpg"></div></a>
<div aria-label="Property price">$1,800/mo</div>
<div aria-label="Property facts">2 bds, 1 ba</div>
<button aria-label="Save this search">Save</button>
<button aria-label="Open in app">Open</button>
<div aria-label="Property address">742 Evergreen Terrace</div>
</body></html>`

	got, err := Extract(testutil.HTMLOnlyEmail(t, body))
	require.NoError(t, err)

	assert.Nil(t, got.Address)
	assert.Equal(t, strptr("https://listing/1"), got.URL)
	assert.Equal(t, strptr("https://img/1.jpg"), got.ImageURL)
	assert.Equal(t, strptr("$1,800/mo"), got.Price)
	assert.Equal(t, strptr("2 bds, 1 ba"), got.Facts)
}

func TestExtractFirstOccurrenceWins(t *testing.T) {
	body := `<html><body>
<div aria-label="Property price">$1,000/mo</div>
<div aria-label="Property price">$9,999/mo</div>
</body></html>`

	got, err := Extract(testutil.HTMLOnlyEmail(t, body))
	require.NoError(t, err)

	assert.Equal(t, strptr("$1,000/mo"), got.Price)
}

func TestExtractPartialListing(t *testing.T) {
	body := `<html><body>
<div aria-label="Property address">8 Spruce Ln, Darien, CT</div>
</body></html>`

	got, err := Extract(testutil.HTMLOnlyEmail(t, body))
	require.NoError(t, err)

	assert.Equal(t, strptr("8 Spruce Ln, Darien, CT"), got.Address)
	assert.Nil(t, got.URL)
	assert.Nil(t, got.ImageURL)
	assert.Nil(t, got.Price)
	assert.Nil(t, got.Facts)
}

func TestExtractPhotoMarkupVariants(t *testing.T) {
	tests := []struct {
		name      string
		block     string
		wantURL   *string
		wantImage *string
	}{
		{
			name:      "background attribute",
			block:     `<a aria-label="Property photo" href="https://l/1"><div background="https://i/1.jpg"></div></a>`,
			wantURL:   strptr("https://l/1"),
			wantImage: strptr("https://i/1.jpg"),
		},
		{
			name:      "background-image style",
			block:     `<a aria-label="Property photo" href="https://l/2"><div style="background-image: url('https://i/2.jpg');"></div></a>`,
			wantURL:   strptr("https://l/2"),
			wantImage: strptr("https://i/2.jpg"),
		},
		{
			name:      "shorthand background style",
			block:     `<a aria-label="Property photo" href="https://l/3"><div style="background: #fff url(https://i/3.jpg) no-repeat center"></div></a>`,
			wantURL:   strptr("https://l/3"),
			wantImage: strptr("https://i/3.jpg"),
		},
		{
			name:      "labeled wrapper around anchor",
			block:     `<div aria-label="Property photo"><a href="https://l/4">view</a><div background="https://i/4.jpg"></div></div>`,
			wantURL:   strptr("https://l/4"),
			wantImage: strptr("https://i/4.jpg"),
		},
		{
			name:      "photo block without anchor",
			block:     `<div aria-label="Property photo"><div background="https://i/5.jpg"></div></div>`,
			wantURL:   nil,
			wantImage: strptr("https://i/5.jpg"),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body := fmt.Sprintf("<html><body>%s</body></html>", test.block)

			got, err := Extract(testutil.HTMLOnlyEmail(t, body))
			require.NoError(t, err)

			assert.Equal(t, test.wantURL, got.URL)
			assert.Equal(t, test.wantImage, got.ImageURL)
		})
	}
}

func TestExtractBlankTextLeavesFieldAbsent(t *testing.T) {
	body := `<html><body>
<div aria-label="Property price">   </div>
<div aria-label="Property facts">2 bds</div>
</body></html>`

	got, err := Extract(testutil.HTMLOnlyEmail(t, body))
	require.NoError(t, err)

	assert.Nil(t, got.Price)
	assert.Equal(t, strptr("2 bds"), got.Facts)
}
