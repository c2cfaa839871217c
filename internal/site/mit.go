package site

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/crawler"
	"github.com/JakeFAU/distcrawl/internal/metrics"
)

// MITResource follows course resource pages to the files they offer for download.
type MITResource struct {
	profile crawler.SiteProfile
	deps    Deps
	base    *url.URL
}

func newMITResource(profile crawler.SiteProfile, deps Deps) (*MITResource, error) {
	base, err := url.Parse(profile.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &MITResource{profile: profile, deps: deps, base: base}, nil
}

// Kind implements crawler.Site.
func (m *MITResource) Kind() crawler.ProfileKind {
	return crawler.ProfileMITResource
}

// OpenSeed fetches the course page.
func (m *MITResource) OpenSeed(ctx context.Context, seed string) (crawler.Document, error) {
	return fetchDocument(ctx, m.deps.Fetcher, seed, nil)
}

// Links collects resource pages from the seed, then the download links on each page.
// A resource page that cannot be fetched is skipped and counted; it yields no outcome.
func (m *MITResource) Links(ctx context.Context, seed crawler.Document) (crawler.LinkSet, error) {
	doc, err := parse(seed.Body)
	if err != nil {
		return crawler.LinkSet{}, err
	}
	pages := m.resourcePages(doc)
	m.deps.Logger.Info("resource pages found", zap.Int("count", pages.Len()))

	var files crawler.LinkSet
	for _, page := range pages.Links() {
		pageDoc, err := fetchDocument(ctx, m.deps.Fetcher, page, nil)
		if err != nil {
			err = fmt.Errorf("%w: %w", crawler.ErrResourcePage, err)
			m.deps.Logger.Warn("skipping resource page", zap.String("url", page), zap.Error(err))
			metrics.ObserveSkippedResourcePage(string(m.Kind()))
			continue
		}
		parsed, err := parse(pageDoc.Body)
		if err != nil {
			m.deps.Logger.Warn("skipping unparsable resource page", zap.String("url", page), zap.Error(err))
			metrics.ObserveSkippedResourcePage(string(m.Kind()))
			continue
		}
		m.downloadLinks(parsed, &files)
	}
	m.deps.Logger.Info("files found", zap.Int("count", files.Len()))
	return files, nil
}

func (m *MITResource) resourcePages(doc *goquery.Document) crawler.LinkSet {
	var pages crawler.LinkSet
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, m.profile.ResourcePathPrefix) {
			return
		}
		if m.profile.ResourcePathMarker != "" && !strings.Contains(href, m.profile.ResourcePathMarker) {
			return
		}
		resolved, err := crawler.ResolveURL(m.base, href)
		if err != nil {
			return
		}
		pages.Add(resolved)
	})
	return pages
}

func (m *MITResource) downloadLinks(doc *goquery.Document, files *crawler.LinkSet) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if !sel.HasClass(m.profile.DownloadClass) {
			return
		}
		href, _ := sel.Attr("href")
		if m.profile.FileSuffix != "" && !strings.HasSuffix(href, m.profile.FileSuffix) {
			return
		}
		resolved, err := crawler.ResolveURL(m.base, href)
		if err != nil {
			return
		}
		files.Add(resolved)
	})
}

// Download streams the file into scratch storage.
func (m *MITResource) Download(ctx context.Context, _ crawler.Document, link string) (crawler.Artifact, error) {
	return streamToStore(ctx, m.deps, link, nil)
}
