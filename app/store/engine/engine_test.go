package engine

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterExtractor(t *testing.T) {

	u := &url.URL{
		RawPath:  `https://127.0.0.1/api/v1/mirrors?filter={"sync_status":3,"q":"test_search_string"}&range=[0,9]&sort=["id","ASC"]`,
		RawQuery: `filter={"sync_status":3,"q":"test_search_string"}&range=[0,9]&sort=["id","ASC"]`,
	}

	f, err := FilterFromURLExtractor(u)

	assert.NoError(t, err)
	require.Len(t, f.Sort, 2)
	assert.Equal(t, []string{"id", "ASC"}, f.Sort)
	assert.Equal(t, int64(10), f.Range[1]) // max range value +1, because last index exclude from fetched data set
	assert.Equal(t, float64(3), f.Filters["sync_status"])
	assert.Equal(t, "test_search_string", f.Filters["q"])

	// no range/sort params at all
	u = &url.URL{RawQuery: `filter={"q":"redis"}`}
	f, err = FilterFromURLExtractor(u)
	assert.NoError(t, err)
	assert.Equal(t, [2]int64{0, 0}, f.Range)
	assert.Equal(t, "redis", f.Filters["q"])

	// test with broken range value
	u = &url.URL{
		RawQuery: `filter={"q":"redis"}&range=[a,b]&sort=["id","ASC"]`,
	}
	_, err = FilterFromURLExtractor(u)
	assert.Error(t, err)

	// sort alone, no range param
	u = &url.URL{RawQuery: `sort=["id","DESC"]`}
	f, err = FilterFromURLExtractor(u)
	assert.NoError(t, err)
	assert.Equal(t, []string{"id", "DESC"}, f.Sort)
	assert.Equal(t, [2]int64{0, 0}, f.Range)

	// range alone, no sort param
	u = &url.URL{RawQuery: `range=[0,4]`}
	f, err = FilterFromURLExtractor(u)
	assert.NoError(t, err)
	assert.Equal(t, [2]int64{0, 5}, f.Range)
	assert.Empty(t, f.Sort)

	// malformed sort with a single quoted value is ignored
	u = &url.URL{RawQuery: `sort=["id"]`}
	f, err = FilterFromURLExtractor(u)
	assert.NoError(t, err)
	assert.Empty(t, f.Sort)
}
