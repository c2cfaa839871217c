package site

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// ArticleFeed logs in, reads the bookmarks page, and saves each article's text.
type ArticleFeed struct {
	profile crawler.SiteProfile
	deps    Deps
}

func newArticleFeed(profile crawler.SiteProfile, deps Deps) *ArticleFeed {
	if profile.TextSuffix == "" {
		profile.TextSuffix = ".txt"
	}
	return &ArticleFeed{profile: profile, deps: deps}
}

// Kind implements crawler.Site.
func (a *ArticleFeed) Kind() crawler.ProfileKind {
	return crawler.ProfileArticleFeed
}

// OpenSeed logs in, waits the configured delay, and fetches the bookmarks page with the session cookie.
func (a *ArticleFeed) OpenSeed(ctx context.Context, seed string) (crawler.Document, error) {
	session, err := a.login(ctx)
	if err != nil {
		return crawler.Document{}, err
	}
	if err := a.deps.Sleep(ctx, a.profile.LoginDelay); err != nil {
		return crawler.Document{}, err
	}
	return fetchDocument(ctx, a.deps.Fetcher, seed, []*http.Cookie{session})
}

func (a *ArticleFeed) login(ctx context.Context) (*http.Cookie, error) {
	headers := http.Header{}
	for k, v := range a.profile.LoginHeaders {
		headers.Set(k, v)
	}
	if headers.Get("Content-Type") == "" && a.profile.LoginBody != "" {
		headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := a.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     a.profile.LoginURL,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    []byte(a.profile.LoginBody),
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	cookie, ok := resp.Cookie(a.profile.AuthCookie)
	if !ok || cookie.Value == "" {
		return nil, fmt.Errorf("login: response carried no %q cookie", a.profile.AuthCookie)
	}
	a.deps.Logger.Info("logged in", zap.String("cookie", a.profile.AuthCookie))
	return &http.Cookie{Name: cookie.Name, Value: cookie.Value}, nil
}

// Links returns the href of every bookmark card, as written in the page.
func (a *ArticleFeed) Links(_ context.Context, seed crawler.Document) (crawler.LinkSet, error) {
	doc, err := parse(seed.Body)
	if err != nil {
		return crawler.LinkSet{}, err
	}
	var links crawler.LinkSet
	doc.Find(a.profile.CardSelector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links.Add(href)
		}
	})
	return links, nil
}

// Download fetches the article with the session cookie and stores its rendered text.
func (a *ArticleFeed) Download(ctx context.Context, seed crawler.Document, link string) (crawler.Artifact, error) {
	page, err := fetchDocument(ctx, a.deps.Fetcher, link, seed.Cookies)
	if err != nil {
		return crawler.Artifact{}, err
	}
	text, err := a.render(page.Body)
	if err != nil {
		return crawler.Artifact{}, err
	}
	name := crawler.FileName(link) + a.profile.TextSuffix
	return storeAndFingerprint(a.deps, name, strings.NewReader(text))
}

// render joins the text of every content section with a blank line.
func (a *ArticleFeed) render(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	var sections []string
	doc.Find(a.profile.ContentSelector).Each(func(_ int, sel *goquery.Selection) {
		sections = append(sections, strings.TrimSpace(sel.Text()))
	})
	return strings.Join(sections, "\n\n"), nil
}
