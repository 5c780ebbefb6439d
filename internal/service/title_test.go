package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want *string
	}{
		{
			name: "og title wins",
			html: `<html><head><title>Doc</title><meta property="og:title" content="Open &amp; Graph"></head><body></body></html>`,
			want: strPtr("Open & Graph"),
		},
		{
			name: "og title by name",
			html: `<head><meta name="og:title" content="Named"></head>`,
			want: strPtr("Named"),
		},
		{
			name: "title fallback",
			html: "<head><title>\n  Hello   &lt;World&gt;  \n</title></head>",
			want: strPtr("Hello <World>"),
		},
		{
			name: "blank",
			html: "<head><title>   </title></head>",
			want: nil,
		},
		{
			name: "none",
			html: "<p>no head</p>",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(strings.NewReader(tt.html)))
		})
	}
}

func TestNormalizeTitle_Truncates(t *testing.T) {
	raw := strings.Repeat("a", MaxTitleLength-1) + " " + strings.Repeat("b", 10)
	got := NormalizeTitle(raw)
	require.NotNil(t, got)
	assert.Equal(t, strings.Repeat("a", MaxTitleLength-1), *got)
	assert.Nil(t, NormalizeTitle(" \t\n"))
}

func TestTitleFetcher_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, titleUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<title>Fetched</title>"))
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"x"}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewTitleFetcher(200*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, strPtr("Fetched"), f.Fetch(ctx, srv.URL+"/page"))
	assert.Nil(t, f.Fetch(ctx, srv.URL+"/json"))
	assert.Nil(t, f.Fetch(ctx, srv.URL+"/missing"))
	assert.Nil(t, f.Fetch(ctx, srv.URL+"/slow"))
	assert.Nil(t, f.Fetch(ctx, "http://127.0.0.1:1/unreachable"))
}

func strPtr(s string) *string { return &s }
