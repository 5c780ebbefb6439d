package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	MaxTitleLength = 96

	titleUserAgent   = "ttemp-link/1.0"
	maxTitleBodySize = 1 << 20
)

// TitleFetcher reads the page title of a destination URL. Every failure yields nil.
type TitleFetcher struct {
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewTitleFetcher(timeout time.Duration, log *zap.Logger) *TitleFetcher {
	return &TitleFetcher{
		client:  &http.Client{},
		timeout: timeout,
		log:     log.With(zap.String("component", "service.title")),
	}
}

// Fetch downloads rawURL and extracts og:title, then <title>.
func (f *TitleFetcher) Fetch(ctx context.Context, rawURL string) *string {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", titleUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug("title fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil
	}

	return ExtractTitle(io.LimitReader(resp.Body, maxTitleBodySize))
}

// ExtractTitle returns the normalized og:title meta content, falling back to the
// document <title>.
func ExtractTitle(r io.Reader) *string {
	var (
		ogTitle  string
		docTitle string
		inTitle  bool
	)

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if title := NormalizeTitle(ogTitle); title != nil {
				return title
			}
			return NormalizeTitle(docTitle)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Meta:
				if ogTitle == "" && isOGTitle(tok) {
					ogTitle = attr(tok, "content")
				}
			case atom.Title:
				inTitle = docTitle == ""
			case atom.Body:
				if ogTitle != "" {
					return NormalizeTitle(ogTitle)
				}
			}
		case html.TextToken:
			if inTitle {
				docTitle += string(z.Text())
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Title {
				inTitle = false
			}
		}
	}
}

// NormalizeTitle collapses whitespace and truncates to MaxTitleLength characters. A blank
// result is nil. The tokenizer has already decoded entities.
func NormalizeTitle(raw string) *string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return nil
	}
	runes := []rune(cleaned)
	if len(runes) > MaxTitleLength {
		cleaned = strings.TrimRightFunc(string(runes[:MaxTitleLength]), unicode.IsSpace)
	}
	return &cleaned
}

func isOGTitle(tok html.Token) bool {
	return strings.EqualFold(attr(tok, "property"), "og:title") ||
		strings.EqualFold(attr(tok, "name"), "og:title")
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
