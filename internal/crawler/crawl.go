package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/metrics"
)

// SiteCrawler runs the fetch, extract, download pipeline for seeds of one site profile.
type SiteCrawler struct {
	site   Site
	logger *zap.Logger
}

// NewSiteCrawler constructs a SiteCrawler for site.
func NewSiteCrawler(site Site, logger *zap.Logger) *SiteCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteCrawler{site: site, logger: logger}
}

// Kind returns the profile the crawler is bound to.
func (c *SiteCrawler) Kind() ProfileKind {
	return c.site.Kind()
}

// Crawl processes one seed and returns one outcome per attempted resource.
// A seed that cannot be fetched yields a single error outcome for the seed itself.
func (c *SiteCrawler) Crawl(ctx context.Context, seed string) []Outcome {
	kind := string(c.site.Kind())
	logger := c.logger.With(zap.String("seed", seed), zap.String("profile", kind))
	logger.Info("crawling seed")

	doc, err := c.site.OpenSeed(ctx, seed)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSeedFetch, err)
		logger.Warn("seed fetch failed", zap.Error(err))
		metrics.ObserveOutcome(kind, metrics.StatusSeedError)
		return []Outcome{Failed(seed, err)}
	}

	links, err := c.site.Links(ctx, doc)
	if err != nil {
		err = fmt.Errorf("%w: extract links: %w", ErrSeedFetch, err)
		logger.Warn("link extraction failed", zap.Error(err))
		metrics.ObserveOutcome(kind, metrics.StatusSeedError)
		return []Outcome{Failed(seed, err)}
	}
	logger.Info("links extracted", zap.Int("count", links.Len()))

	outcomes := make([]Outcome, 0, links.Len())
	for _, link := range links.Links() {
		outcomes = append(outcomes, c.download(ctx, logger, doc, link))
	}
	return outcomes
}

func (c *SiteCrawler) download(ctx context.Context, logger *zap.Logger, doc Document, link string) Outcome {
	kind := string(c.site.Kind())
	artifact, err := c.site.Download(ctx, doc, link)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDownload, err)
		logger.Warn("download failed", zap.String("url", link), zap.Error(err))
		metrics.ObserveOutcome(kind, metrics.StatusError)
		return Failed(link, err)
	}
	logger.Debug("resource stored",
		zap.String("url", link),
		zap.String("file", artifact.Path),
		zap.String("md5", artifact.Fingerprint),
	)
	metrics.ObserveOutcome(kind, metrics.StatusSuccess)
	return Succeeded(link, artifact)
}
