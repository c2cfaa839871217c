package crawler

import (
	"fmt"
	"time"
)

// ProfileKind tags which extraction rules a site profile uses.
type ProfileKind string

// Supported site profiles.
const (
	ProfileArxiv       ProfileKind = "arxiv"
	ProfileMITResource ProfileKind = "mit_resource"
	ProfileArticleFeed ProfileKind = "article_feed"
)

// ParseProfileKind validates a configured profile name.
func ParseProfileKind(raw string) (ProfileKind, error) {
	switch k := ProfileKind(raw); k {
	case ProfileArxiv, ProfileMITResource, ProfileArticleFeed:
		return k, nil
	default:
		return "", fmt.Errorf("unknown site profile %q", raw)
	}
}

// SiteProfile carries the parsing and extraction rules for one site.
type SiteProfile struct {
	Kind ProfileKind `mapstructure:"kind"`
	// BaseURL resolves relative hrefs.
	BaseURL string `mapstructure:"base_url"`
	// ScratchDir is the directory name downloads land in under the worker's scratch root.
	ScratchDir string `mapstructure:"scratch_dir"`

	// PDFPathPrefix is the site-relative prefix of direct PDF links (arxiv).
	PDFPathPrefix string `mapstructure:"pdf_path_prefix"`

	// ResourcePathPrefix and ResourcePathMarker select resource pages (mit_resource).
	ResourcePathPrefix string `mapstructure:"resource_path_prefix"`
	ResourcePathMarker string `mapstructure:"resource_path_marker"`
	// DownloadClass marks anchors that point at files on a resource page.
	DownloadClass string `mapstructure:"download_class"`
	// FileSuffix filters downloadable hrefs on resource pages.
	FileSuffix string `mapstructure:"file_suffix"`

	// Login settings (article_feed).
	LoginURL     string            `mapstructure:"login_url"`
	LoginBody    string            `mapstructure:"login_body"`
	LoginHeaders map[string]string `mapstructure:"login_headers"`
	AuthCookie   string            `mapstructure:"auth_cookie"`
	LoginDelay   time.Duration     `mapstructure:"login_delay"`
	// CardSelector picks bookmark anchors; ContentSelector picks article sections.
	CardSelector    string `mapstructure:"card_selector"`
	ContentSelector string `mapstructure:"content_selector"`
	TextSuffix      string `mapstructure:"text_suffix"`
}

// Validate checks that the rules required by the profile's kind are present.
func (p SiteProfile) Validate() error {
	if _, err := ParseProfileKind(string(p.Kind)); err != nil {
		return err
	}
	if p.ScratchDir == "" {
		return fmt.Errorf("profile %s: scratch_dir is required", p.Kind)
	}
	switch p.Kind {
	case ProfileArxiv:
		if p.BaseURL == "" || p.PDFPathPrefix == "" {
			return fmt.Errorf("profile %s: base_url and pdf_path_prefix are required", p.Kind)
		}
	case ProfileMITResource:
		if p.BaseURL == "" || p.ResourcePathPrefix == "" || p.DownloadClass == "" {
			return fmt.Errorf("profile %s: base_url, resource_path_prefix and download_class are required", p.Kind)
		}
	case ProfileArticleFeed:
		if p.LoginURL == "" || p.AuthCookie == "" || p.CardSelector == "" || p.ContentSelector == "" {
			return fmt.Errorf(
				"profile %s: login_url, auth_cookie, card_selector and content_selector are required",
				p.Kind,
			)
		}
	}
	return nil
}

// DefaultProfiles returns the built-in rules for each supported site.
func DefaultProfiles() map[ProfileKind]SiteProfile {
	return map[ProfileKind]SiteProfile{
		ProfileArxiv: {
			Kind:          ProfileArxiv,
			BaseURL:       "https://arxiv.org",
			ScratchDir:    "arxiv_pdfs",
			PDFPathPrefix: "/pdf/",
		},
		ProfileMITResource: {
			Kind:               ProfileMITResource,
			BaseURL:            "https://ocw.mit.edu",
			ScratchDir:         "mit_pdfs",
			ResourcePathPrefix: "/courses/",
			ResourcePathMarker: "/resources/",
			DownloadClass:      "download-file",
			FileSuffix:         ".pdf",
		},
		ProfileArticleFeed: {
			Kind:            ProfileArticleFeed,
			ScratchDir:      "articles",
			AuthCookie:      "sessionid",
			LoginDelay:      2 * time.Second,
			CardSelector:    "div.card-content a[href]",
			ContentSelector: "article section",
			TextSuffix:      ".txt",
		},
	}
}
