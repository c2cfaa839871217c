// Package config loads and validates worker and orchestrator configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// DefaultIdentity is the worker identity used when WORKER_ID is unset.
const DefaultIdentity = "undefined"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Worker       WorkerConfig                   `mapstructure:"worker"`
	Orchestrator OrchestratorConfig             `mapstructure:"orchestrator"`
	HTTP         HTTPConfig                     `mapstructure:"http"`
	Crawler      CrawlerConfig                  `mapstructure:"crawler"`
	Sites        map[string]crawler.SiteProfile `mapstructure:"sites"`
	Store        StoreConfig                    `mapstructure:"store"`
	PubSub       PubSubConfig                   `mapstructure:"pubsub"`
	Metrics      MetricsConfig                  `mapstructure:"metrics"`
	Logging      LoggingConfig                  `mapstructure:"logging"`
	Server       ServerConfig                   `mapstructure:"server"`
}

// WorkerConfig controls a single worker run.
type WorkerConfig struct {
	ID string `mapstructure:"id"`
	// Profiles binds worker identities to site profile kinds.
	Profiles          map[string]string `mapstructure:"profiles"`
	ScratchRoot       string            `mapstructure:"scratch_root"`
	MaxReportAttempts int               `mapstructure:"max_report_attempts"`
}

// OrchestratorConfig points workers at the orchestrator and holds its assignment table.
type OrchestratorConfig struct {
	URL         string              `mapstructure:"url"`
	Assignments map[string][]string `mapstructure:"assignments"`
}

// HTTPConfig configures outbound HTTP calls.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CrawlerConfig governs fetch pacing and identification.
type CrawlerConfig struct {
	UserAgent     string  `mapstructure:"user_agent"`
	DelaySeconds  float64 `mapstructure:"delay_seconds"`
	RespectRobots bool    `mapstructure:"respect_robots"`
}

// StoreConfig selects the collector's result store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Table    string `mapstructure:"table"`
}

// PubSubConfig holds metadata for ingestion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls where worker metrics are pushed.
type MetricsConfig struct {
	PushURL string `mapstructure:"push_url"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls the orchestrator's HTTP server.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISTCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("worker.id", "WORKER_ID"); err != nil {
		return Config{}, fmt.Errorf("bind WORKER_ID: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	for key, profile := range cfg.Sites {
		if profile.Kind == "" {
			profile.Kind = crawler.ProfileKind(key)
			cfg.Sites[key] = profile
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.id", DefaultIdentity)
	v.SetDefault("worker.profiles", map[string]any{
		"worker1": string(crawler.ProfileArxiv),
		"worker2": string(crawler.ProfileMITResource),
	})
	v.SetDefault("worker.scratch_root", ".")
	v.SetDefault("worker.max_report_attempts", 4)
	v.SetDefault("orchestrator.url", "http://localhost:8000")
	v.SetDefault("orchestrator.assignments", map[string]any{
		"worker1": []string{"https://arxiv.org/search/cs?query=Computer+Network&searchtype=all&abstracts=show&order=-announced_date_first&size=50"},
		"worker2": []string{"https://ocw.mit.edu/courses/6-829-computer-networks-fall-2002/pages/lecture-notes/"},
	})
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("crawler.user_agent", "distcrawl/1.0")
	v.SetDefault("crawler.delay_seconds", 0)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.table", "crawl_results")
	v.SetDefault("logging.development", true)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	for kind, p := range crawler.DefaultProfiles() {
		setProfileDefaults(v, "sites."+string(kind), p)
	}
}

func setProfileDefaults(v *viper.Viper, prefix string, p crawler.SiteProfile) {
	set := func(key string, value string) {
		if value != "" {
			v.SetDefault(prefix+"."+key, value)
		}
	}
	set("kind", string(p.Kind))
	set("base_url", p.BaseURL)
	set("scratch_dir", p.ScratchDir)
	set("pdf_path_prefix", p.PDFPathPrefix)
	set("resource_path_prefix", p.ResourcePathPrefix)
	set("resource_path_marker", p.ResourcePathMarker)
	set("download_class", p.DownloadClass)
	set("file_suffix", p.FileSuffix)
	set("auth_cookie", p.AuthCookie)
	set("card_selector", p.CardSelector)
	set("content_selector", p.ContentSelector)
	set("text_suffix", p.TextSuffix)
	if p.LoginDelay > 0 {
		v.SetDefault(prefix+".login_delay", p.LoginDelay.String())
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Crawler.DelaySeconds < 0 {
		return fmt.Errorf("crawler.delay_seconds must be >= 0")
	}
	if c.Worker.MaxReportAttempts <= 0 {
		return fmt.Errorf("worker.max_report_attempts must be > 0")
	}
	for identity, kind := range c.Worker.Profiles {
		if _, err := crawler.ParseProfileKind(kind); err != nil {
			return fmt.Errorf("worker.profiles.%s: %w", identity, err)
		}
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	return nil
}

// Identity returns the configured worker identity.
func (c Config) Identity() string {
	if c.Worker.ID == "" {
		return DefaultIdentity
	}
	return c.Worker.ID
}

// ProfileFor resolves the site profile bound to identity. ok is false when the
// identity has no binding.
func (c Config) ProfileFor(identity string) (crawler.SiteProfile, bool, error) {
	raw, ok := c.Worker.Profiles[strings.ToLower(identity)]
	if !ok {
		return crawler.SiteProfile{}, false, nil
	}
	kind, err := crawler.ParseProfileKind(raw)
	if err != nil {
		return crawler.SiteProfile{}, false, err
	}
	profile, ok := c.Sites[string(kind)]
	if !ok {
		profile = crawler.DefaultProfiles()[kind]
	}
	profile.Kind = kind
	if err := profile.Validate(); err != nil {
		return crawler.SiteProfile{}, false, err
	}
	return profile, true, nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Delay converts the crawl pacing delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds * float64(time.Second))
}

// RequestTimeout bounds each orchestrator request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful server shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
