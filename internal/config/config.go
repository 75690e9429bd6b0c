package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/ragate/internal/metric"
)

const DefaultPath = "configs/config.yaml"

// Documented gate defaults. Applied in the resolver methods, never inside
// the gate logic itself.
const (
	DefaultMinSafetyPassRate   = 0.90
	DefaultRegressionTolerance = 0.0
)

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Gate    GateConfig    `yaml:"gate"`
	Reports ReportsConfig `yaml:"reports"`
	Storage StorageConfig `yaml:"storage"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	Timeout         time.Duration             `yaml:"timeout,omitempty"`
	Concurrency     int                       `yaml:"concurrency,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type GateConfig struct {
	// Minimum acceptable value per metric, e.g. groundedness: 4.0.
	Thresholds map[string]float64 `yaml:"thresholds,omitempty"`

	MinSafetyPassRate   *float64 `yaml:"min_safety_pass_rate,omitempty"`
	RegressionTolerance *float64 `yaml:"regression_tolerance,omitempty"`
}

type ReportsConfig struct {
	EvalDir   string `yaml:"eval_dir,omitempty"`
	SafetyDir string `yaml:"safety_dir,omitempty"`
	HTMLDir   string `yaml:"html_dir,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Providers == nil {
		c.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(c.LLM.DefaultProvider) == "" {
		c.LLM.DefaultProvider = "openai"
	}
	if c.Reports.EvalDir == "" {
		c.Reports.EvalDir = "data/eval-results"
	}
	if c.Reports.SafetyDir == "" {
		c.Reports.SafetyDir = "data/safety-results"
	}
	if c.Reports.HTMLDir == "" {
		c.Reports.HTMLDir = "data/reports"
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := c.LLM.Providers["claude"]
		p.APIKey = v
		c.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := c.LLM.Providers["claude"]
		p.APIKey = v
		c.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := c.LLM.Providers["openai"]
		p.APIKey = v
		c.LLM.Providers["openai"] = p
	}
}

func (c *Config) validate() error {
	if err := metric.ValidateThresholds(c.ThresholdSpecs()); err != nil {
		return fmt.Errorf("config: gate.thresholds: %w", err)
	}
	if v := c.Gate.MinSafetyPassRate; v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("config: gate.min_safety_pass_rate %g outside [0, 1]", *v)
	}
	if v := c.Gate.RegressionTolerance; v != nil && *v < 0 {
		return fmt.Errorf("config: gate.regression_tolerance %g must be >= 0", *v)
	}
	return nil
}

// ThresholdSpecs returns the configured thresholds sorted by metric name,
// so evaluation order never depends on map iteration.
func (c *Config) ThresholdSpecs() []metric.Threshold {
	if c == nil || len(c.Gate.Thresholds) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Gate.Thresholds))
	for name := range c.Gate.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]metric.Threshold, 0, len(names))
	for _, name := range names {
		out = append(out, metric.Threshold{Metric: name, Minimum: c.Gate.Thresholds[name]})
	}
	return out
}

// MinSafetyPassRate resolves the configured minimum, defaulting to the
// documented 0.90.
func (c *Config) MinSafetyPassRate() float64 {
	if c != nil && c.Gate.MinSafetyPassRate != nil {
		return *c.Gate.MinSafetyPassRate
	}
	return DefaultMinSafetyPassRate
}

// RegressionTolerance resolves the configured tolerance, defaulting to
// 0.0: any negative delta counts as regression unless explicitly widened.
func (c *Config) RegressionTolerance() float64 {
	if c != nil && c.Gate.RegressionTolerance != nil {
		return *c.Gate.RegressionTolerance
	}
	return DefaultRegressionTolerance
}
