// Package gallery extracts the image sources of a gallery page.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const DefaultSelector = "img"

var (
	ErrNoImages  = errors.New("no images found")
	ErrBadStatus = errors.New("unexpected response status")
)

// Chapter is one parsed gallery page.
type Chapter struct {
	Index   int
	Title   string
	URL     string
	Sources []string
}

// Len returns the number of pages.
func (c *Chapter) Len() int { return len(c.Sources) }

// Parse returns the absolute image sources matched by selector, in document
// order and without duplicates. Lazy-loaded images keep their real source in
// data-src; inline data URIs are ignored.
func Parse(r io.Reader, base *url.URL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse gallery: %w", err)
	}
	return sources(doc, base, selector)
}

func sources(doc *goquery.Document, base *url.URL, selector string) ([]string, error) {
	if selector == "" {
		selector = DefaultSelector
	}
	seen := make(map[string]struct{})
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw := imageSource(s)
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		src := u.String()
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		out = append(out, src)
	})
	if len(out) == 0 {
		return nil, ErrNoImages
	}
	return out, nil
}

func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		v := strings.TrimSpace(s.AttrOr(attr, ""))
		if v == "" || strings.HasPrefix(v, "data:") {
			continue
		}
		return v
	}
	return ""
}

// Fetch downloads pageURL and parses it as chapter index. Relative sources
// resolve against the URL reached after redirects.
func Fetch(ctx context.Context, client *http.Client, index int, pageURL, selector string) (*Chapter, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch gallery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	base := resp.Request.URL
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse gallery: %w", err)
	}
	srcs, err := sources(doc, base, selector)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = base.String()
	}
	return &Chapter{
		Index:   index,
		Title:   title,
		URL:     base.String(),
		Sources: srcs,
	}, nil
}
