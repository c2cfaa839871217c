// Package site implements the per-profile link extraction and download rules.
//
// Each crawler.ProfileKind has exactly one implementation here, selected once by New.
package site

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// Deps are the collaborators shared by every site implementation.
type Deps struct {
	Fetcher crawler.Fetcher
	Stream  crawler.StreamFetcher
	Store   crawler.ScratchStore
	Hasher  crawler.Hasher
	Logger  *zap.Logger
	// Sleep waits between login and the bookmarks fetch. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns the Site implementation for profile.
func New(profile crawler.SiteProfile, deps Deps) (crawler.Site, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if deps.Fetcher == nil || deps.Store == nil || deps.Hasher == nil {
		return nil, fmt.Errorf("site %s: fetcher, store and hasher are required", profile.Kind)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	deps.Logger = deps.Logger.With(zap.String("profile", string(profile.Kind)))

	switch profile.Kind {
	case crawler.ProfileArxiv:
		return newArxiv(profile, deps)
	case crawler.ProfileMITResource:
		return newMITResource(profile, deps)
	case crawler.ProfileArticleFeed:
		return newArticleFeed(profile, deps), nil
	default:
		return nil, fmt.Errorf("unsupported site profile %q", profile.Kind)
	}
}

func fetchDocument(ctx context.Context, f crawler.Fetcher, url string, cookies []*http.Cookie) (crawler.Document, error) {
	resp, err := f.Fetch(ctx, crawler.FetchRequest{URL: url, Method: http.MethodGet, Cookies: cookies})
	if err != nil {
		return crawler.Document{}, err
	}
	return crawler.Document{URL: url, Body: resp.Body, Cookies: cookies}, nil
}

func parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// streamToStore copies a remote resource into the scratch store and fingerprints the stored file.
func streamToStore(ctx context.Context, deps Deps, link string, cookies []*http.Cookie) (crawler.Artifact, error) {
	if deps.Stream == nil {
		return crawler.Artifact{}, fmt.Errorf("no stream fetcher configured")
	}
	body, err := deps.Stream.Open(ctx, crawler.FetchRequest{URL: link, Method: http.MethodGet, Cookies: cookies})
	if err != nil {
		return crawler.Artifact{}, err
	}
	defer body.Close() //nolint:errcheck // body fully consumed by Put

	return storeAndFingerprint(deps, crawler.FileName(link), body)
}

func storeAndFingerprint(deps Deps, name string, data io.Reader) (crawler.Artifact, error) {
	path, err := deps.Store.Put(name, data)
	if err != nil {
		return crawler.Artifact{}, fmt.Errorf("store %s: %w", name, err)
	}
	sum, err := deps.Hasher.HashFile(path)
	if err != nil {
		return crawler.Artifact{}, fmt.Errorf("fingerprint %s: %w", name, err)
	}
	return crawler.Artifact{Path: path, Fingerprint: sum}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
