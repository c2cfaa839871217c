package site

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// Arxiv extracts direct PDF links from a listing page.
type Arxiv struct {
	profile        crawler.SiteProfile
	deps           Deps
	base           *url.URL
	absolutePrefix string
}

func newArxiv(profile crawler.SiteProfile, deps Deps) (*Arxiv, error) {
	base, err := url.Parse(profile.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Arxiv{
		profile:        profile,
		deps:           deps,
		base:           base,
		absolutePrefix: strings.TrimSuffix(profile.BaseURL, "/") + profile.PDFPathPrefix,
	}, nil
}

// Kind implements crawler.Site.
func (a *Arxiv) Kind() crawler.ProfileKind {
	return crawler.ProfileArxiv
}

// OpenSeed fetches the listing page.
func (a *Arxiv) OpenSeed(ctx context.Context, seed string) (crawler.Document, error) {
	return fetchDocument(ctx, a.deps.Fetcher, seed, nil)
}

// Links returns every anchor pointing under the site's PDF path, relative or absolute.
func (a *Arxiv) Links(_ context.Context, seed crawler.Document) (crawler.LinkSet, error) {
	doc, err := parse(seed.Body)
	if err != nil {
		return crawler.LinkSet{}, err
	}
	var links crawler.LinkSet
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		switch {
		case strings.HasPrefix(href, a.profile.PDFPathPrefix):
			resolved, err := crawler.ResolveURL(a.base, href)
			if err != nil {
				a.deps.Logger.Debug("skipping unparsable href", zap.String("href", href), zap.Error(err))
				return
			}
			links.Add(resolved)
		case strings.HasPrefix(href, a.absolutePrefix):
			links.Add(href)
		}
	})
	return links, nil
}

// Download streams the PDF into scratch storage.
func (a *Arxiv) Download(ctx context.Context, _ crawler.Document, link string) (crawler.Artifact, error) {
	return streamToStore(ctx, a.deps, link, nil)
}
