package geo

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHeaders_PlainHeadersWin(t *testing.T) {
	h := http.Header{}
	h.Set("cf-ipcountry", "de")
	h.Set("x-vercel-ip-country", "us")
	h.Set("cf-region", "BE")
	h.Set("x-vercel-ip-city", "San Francisco")
	h.Set("x-akamai-edgescape", "country_code=FR,city=PARIS")

	loc := FromHeaders(h)

	require.NotNil(t, loc.CountryCode)
	assert.Equal(t, "US", *loc.CountryCode)
	require.NotNil(t, loc.CountryName)
	assert.Equal(t, "United States", *loc.CountryName)
	assert.Equal(t, "BE", *loc.Region)
	assert.Equal(t, "San Francisco", *loc.City)
}

func TestFromHeaders_Netlify(t *testing.T) {
	blob := `{"city":"Lisbon","country":"PT","subdivision":"11"}`

	for name, value := range map[string]string{
		"plain":  blob,
		"base64": base64.StdEncoding.EncodeToString([]byte(blob)),
	} {
		t.Run(name, func(t *testing.T) {
			h := http.Header{}
			h.Set("x-nf-geo", value)
			h.Set("x-akamai-edgescape", "country_code=ES")

			loc := FromHeaders(h)
			require.NotNil(t, loc.CountryCode)
			assert.Equal(t, "PT", *loc.CountryCode)
			assert.Equal(t, "Portugal", *loc.CountryName)
			assert.Equal(t, "11", *loc.Region)
			assert.Equal(t, "Lisbon", *loc.City)
		})
	}
}

func TestFromHeaders_Edgescape(t *testing.T) {
	h := http.Header{}
	h.Set("x-akamai-edgescape", "georegion=246, COUNTRY_CODE=jp,region_code=13,city=reserved,network=a=b")

	loc := FromHeaders(h)
	require.NotNil(t, loc.CountryCode)
	assert.Equal(t, "JP", *loc.CountryCode)
	assert.Equal(t, "13", *loc.Region)
	assert.Nil(t, loc.City)
}

func TestFromHeaders_Empty(t *testing.T) {
	assert.Equal(t, Location{}, FromHeaders(http.Header{}))
}

func TestParseEdgescape_ValueWithEquals(t *testing.T) {
	geo := parseEdgescape("city=a=b")
	assert.Equal(t, "a=b", geo.city)
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Germany", *CountryName("de"))
	assert.Nil(t, CountryName("XX"))
	assert.Nil(t, CountryName(""))
	assert.Nil(t, CountryName("not-a-code"))
}
