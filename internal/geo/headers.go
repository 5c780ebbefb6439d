package geo

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Location is the best-effort geography of a click. Every field may be nil.
type Location struct {
	CountryCode *string
	CountryName *string
	Region      *string
	City        *string
}

var (
	countryHeaders = []string{
		"x-vercel-ip-country",
		"cf-ipcountry",
		"cloudfront-viewer-country",
		"x-appengine-country",
		"x-country-code",
		"x-geo-country",
		"client-geo-country",
	}
	regionHeaders = []string{
		"x-vercel-ip-country-region",
		"cf-region",
		"cf-region-code",
		"cloudfront-viewer-country-region",
		"x-appengine-region",
		"x-geo-region",
		"client-geo-region",
	}
	cityHeaders = []string{
		"x-vercel-ip-city",
		"cf-ipcity",
		"cloudfront-viewer-city",
		"x-appengine-city",
		"x-geo-city",
		"client-geo-city",
	}
)

// edgeGeo is the subset of a CDN geo blob the resolver understands.
type edgeGeo struct {
	countryCode string
	region      string
	city        string
}

// FromHeaders reads country, region and city from CDN/edge headers. Plain headers win
// over the Netlify blob, which wins over Akamai edgescape.
func FromHeaders(h http.Header) Location {
	netlify := parseNetlifyGeo(h.Get("x-nf-geo"))
	edgescape := parseEdgescape(h.Get("x-akamai-edgescape"))

	countryCode := firstNonEmpty(readHeader(h, countryHeaders), netlify.countryCode, edgescape.countryCode)
	region := firstNonEmpty(readHeader(h, regionHeaders), netlify.region, edgescape.region)
	city := firstNonEmpty(readHeader(h, cityHeaders), netlify.city, edgescape.city)

	loc := Location{
		Region: nonEmpty(region),
		City:   nonEmpty(city),
	}
	if code := strings.ToUpper(strings.TrimSpace(countryCode)); code != "" {
		loc.CountryCode = &code
		loc.CountryName = CountryName(code)
	}
	return loc
}

// CountryName returns the English name of an ISO 3166-1 alpha-2 code, or nil for
// unknown codes and the "XX" placeholder.
func CountryName(code string) *string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "XX" {
		return nil
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return nil
	}
	name := display.English.Regions().Name(region)
	if name == "" || name == code {
		return nil
	}
	return &name
}

// parseEdgescape reads Akamai's comma-separated key=value header. Keys are
// case-insensitive, values may contain '=' and "reserved" means absent.
func parseEdgescape(value string) edgeGeo {
	fields := make(map[string]string)
	for _, entry := range strings.Split(value, ",") {
		key, raw, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		raw = strings.TrimSpace(raw)
		if key == "" || raw == "" || strings.EqualFold(raw, "reserved") {
			continue
		}
		fields[key] = raw
	}
	return edgeGeo{
		countryCode: fields["country_code"],
		region:      firstNonEmpty(fields["region_code"], fields["region"]),
		city:        fields["city"],
	}
}

// parseNetlifyGeo reads the x-nf-geo JSON object, accepting it plain or base64 encoded.
func parseNetlifyGeo(value string) edgeGeo {
	value = strings.TrimSpace(value)
	if value == "" {
		return edgeGeo{}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		decoded, decodeErr := base64.StdEncoding.DecodeString(value)
		if decodeErr != nil || json.Unmarshal(decoded, &parsed) != nil {
			return edgeGeo{}
		}
	}

	str := func(key string) string {
		s, _ := parsed[key].(string)
		return s
	}
	return edgeGeo{
		countryCode: firstNonEmpty(str("country"), str("country_code")),
		region:      firstNonEmpty(str("subdivision"), str("region"), str("region_code")),
		city:        str("city"),
	}
}

func readHeader(h http.Header, names []string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
