// Package config loads and validates corpus builder configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/fincorpus/internal/extract"
	"github.com/JakeFAU/fincorpus/internal/label"
)

// EnvPrefix namespaces environment overrides, e.g. CORPUS_API_EMAIL.
const EnvPrefix = "CORPUS"

// MaxOffsetCeiling bounds how deep a query may page into CrossRef results.
const MaxOffsetCeiling = 1000

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Retry   RetryConfig   `mapstructure:"retry"`
	API     APIConfig     `mapstructure:"api"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Extract ExtractConfig `mapstructure:"extract"`
	Labels  LabelsConfig  `mapstructure:"labels"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	DB      DBConfig      `mapstructure:"db"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures outbound document fetches.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// RetryConfig configures the API retry policy.
type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts"`
	BaseDelaySeconds float64 `mapstructure:"base_delay_seconds"`
	Jitter           bool    `mapstructure:"jitter"`
}

// APIConfig governs the CrossRef/Unpaywall paginator.
type APIConfig struct {
	CrossRefURL       string  `mapstructure:"crossref_url"`
	UnpaywallURL      string  `mapstructure:"unpaywall_url"`
	Email             string  `mapstructure:"email"`
	Rows              int     `mapstructure:"rows"`
	MaxPerQuery       int     `mapstructure:"max_per_query"`
	MaxOffset         int     `mapstructure:"max_offset"`
	MinSentenceChars  int     `mapstructure:"min_sentence_chars"`
	PolitenessSeconds float64 `mapstructure:"politeness_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CrawlConfig governs site crawling.
type CrawlConfig struct {
	DefaultLimit         int     `mapstructure:"default_limit"`
	MinSentenceChars     int     `mapstructure:"min_sentence_chars"`
	PolitenessSeconds    float64 `mapstructure:"politeness_seconds"`
	MaxLinesPerPage      int     `mapstructure:"max_lines_per_page"`
	RespectRobots        bool    `mapstructure:"respect_robots"`
	RobotsTimeoutSeconds int     `mapstructure:"robots_timeout_seconds"`
	CacheDir             string  `mapstructure:"cache_dir"`
}

// ExtractConfig tunes document extraction.
type ExtractConfig struct {
	ScratchDir   string `mapstructure:"scratch_dir"`
	HTMLStrategy string `mapstructure:"html_strategy"`
	MaxPDFPages  int    `mapstructure:"max_pdf_pages"`
}

// LabelsConfig selects the label table. File wins over Preset.
type LabelsConfig struct {
	File   string `mapstructure:"file"`
	Preset string `mapstructure:"preset"`
}

// OutputConfig locates the training file and its checkpoint.
type OutputConfig struct {
	Path      string `mapstructure:"path"`
	StatePath string `mapstructure:"state_path"`
	Resume    bool   `mapstructure:"resume"`
}

// MetricsConfig controls observability outputs.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Textfile   string `mapstructure:"textfile"`
}

// DBConfig controls access to the labeled-message database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Option adjusts the Viper instance Load resolves keys from.
type Option func(*viper.Viper) error

// WithFlags binds command-line flags to config keys. A bound flag beats the
// file and environment only when it was set on the command line.
func WithFlags(flags *pflag.FlagSet, bindings map[string]string) Option {
	return func(v *viper.Viper) error {
		for key, name := range bindings {
			f := flags.Lookup(name)
			if f == nil {
				return fmt.Errorf("bind %s: flag --%s is not defined", key, name)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind %s: %w", key, err)
			}
		}
		return nil
	}
}

// Load builds a Config from disk/environment and any bound flags.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return Config{}, err
		}
	}

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("http.user_agent", "fincorpus/1.0 (+https://github.com/JakeFAU/fincorpus)")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 20<<20)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_seconds", 5)
	v.SetDefault("retry.jitter", false)
	v.SetDefault("api.crossref_url", "https://api.crossref.org")
	v.SetDefault("api.unpaywall_url", "https://api.unpaywall.org")
	v.SetDefault("api.email", "")
	v.SetDefault("api.rows", 50)
	v.SetDefault("api.max_per_query", 50)
	v.SetDefault("api.max_offset", MaxOffsetCeiling)
	v.SetDefault("api.min_sentence_chars", 40)
	v.SetDefault("api.politeness_seconds", 1)
	v.SetDefault("api.requests_per_second", 0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("crawl.default_limit", 3)
	v.SetDefault("crawl.min_sentence_chars", 30)
	v.SetDefault("crawl.politeness_seconds", 1)
	v.SetDefault("crawl.max_lines_per_page", 10)
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("crawl.robots_timeout_seconds", 8)
	v.SetDefault("crawl.cache_dir", "")
	v.SetDefault("extract.scratch_dir", "")
	v.SetDefault("extract.html_strategy", extract.StrategyLandmark)
	v.SetDefault("extract.max_pdf_pages", 0)
	v.SetDefault("labels.file", "")
	v.SetDefault("labels.preset", "")
	v.SetDefault("output.path", "")
	v.SetDefault("output.state_path", "")
	v.SetDefault("output.resume", false)
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BaseDelaySeconds < 0 {
		return fmt.Errorf("retry.base_delay_seconds must be >= 0")
	}
	if c.API.Rows <= 0 {
		return fmt.Errorf("api.rows must be > 0")
	}
	if c.API.MaxPerQuery <= 0 {
		return fmt.Errorf("api.max_per_query must be > 0")
	}
	if c.API.MaxOffset <= 0 || c.API.MaxOffset > MaxOffsetCeiling {
		return fmt.Errorf("api.max_offset must be in 1..%d", MaxOffsetCeiling)
	}
	if c.API.MinSentenceChars <= 0 || c.Crawl.MinSentenceChars <= 0 {
		return fmt.Errorf("min_sentence_chars must be > 0")
	}
	if c.Crawl.DefaultLimit <= 0 {
		return fmt.Errorf("crawl.default_limit must be > 0")
	}
	if c.Crawl.MaxLinesPerPage <= 0 {
		return fmt.Errorf("crawl.max_lines_per_page must be > 0")
	}
	switch c.Extract.HTMLStrategy {
	case extract.StrategyLandmark, extract.StrategyReadability:
	default:
		return fmt.Errorf("extract.html_strategy must be %q or %q", extract.StrategyLandmark, extract.StrategyReadability)
	}
	switch c.Labels.Preset {
	case "", label.PresetWeb, label.PresetScholarly:
	default:
		return fmt.Errorf("labels.preset %q is not a built-in table", c.Labels.Preset)
	}
	return nil
}

// HTTPTimeout converts the HTTP timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BaseDelay converts the retry base delay into a duration.
func (c RetryConfig) BaseDelay() time.Duration {
	return seconds(c.BaseDelaySeconds)
}

// Politeness converts the API pause into a duration.
func (c APIConfig) Politeness() time.Duration {
	return seconds(c.PolitenessSeconds)
}

// Politeness converts the default crawl pause into a duration.
func (c CrawlConfig) Politeness() time.Duration {
	return seconds(c.PolitenessSeconds)
}

// RobotsTimeout converts the robots.txt fetch timeout into a duration.
func (c CrawlConfig) RobotsTimeout() time.Duration {
	return time.Duration(c.RobotsTimeoutSeconds) * time.Second
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
