// Package config loads runtime settings from defaults, an optional YAML
// file, DETECTIVE_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "DETECTIVE"

const (
	DataSourceMock = "mock"
	DataSourceHTTP = "http"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	DataSource DataSourceConfig `mapstructure:"datasource"`
	Graph      GraphConfig      `mapstructure:"graph"`
	RCA        RCAConfig        `mapstructure:"rca"`
	Export     ExportConfig     `mapstructure:"export"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DataSourceConfig struct {
	Mode             string        `mapstructure:"mode"`
	BaseURL          string        `mapstructure:"base_url"`
	AvailableTimeout time.Duration `mapstructure:"available_timeout"`
	DataTimeout      time.Duration `mapstructure:"data_timeout"`
	Retries          int           `mapstructure:"retries"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

type GraphConfig struct {
	Width         float64       `mapstructure:"width"`
	Height        float64       `mapstructure:"height"`
	Margin        float64       `mapstructure:"margin"`
	MinZoom       float64       `mapstructure:"min_zoom"`
	MaxZoom       float64       `mapstructure:"max_zoom"`
	ZoomStep      float64       `mapstructure:"zoom_step"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	HierarchyFile string        `mapstructure:"hierarchy_file"`
	MetricType    string        `mapstructure:"metric_type"`
}

type RCAConfig struct {
	MetricType       string        `mapstructure:"metric_type"`
	Dataset          string        `mapstructure:"dataset"`
	Metric           string        `mapstructure:"metric"`
	Threshold        float64       `mapstructure:"threshold"`
	MinConfidence    float64       `mapstructure:"min_confidence"`
	MaxResults       int           `mapstructure:"max_results"`
	WeightFunction   string        `mapstructure:"weight_function"`
	AnalysisDepth    int           `mapstructure:"analysis_depth"`
	SummarySize      int           `mapstructure:"summary_size"`
	Aggregate        string        `mapstructure:"aggregate"`
	SimulatedDelay   time.Duration `mapstructure:"simulated_delay"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	ProgressReset    time.Duration `mapstructure:"progress_reset"`
}

type ExportConfig struct {
	Domain string `mapstructure:"domain"`
}

var defaults = map[string]any{
	"server.addr":             ":8080",
	"server.read_timeout":     "15s",
	"server.write_timeout":    "200s",
	"server.shutdown_timeout": "10s",

	"cors.allowed_origin": "*",

	"log.level":  "info",
	"log.format": "json",

	"datasource.mode":              DataSourceMock,
	"datasource.base_url":          "http://localhost:8000",
	"datasource.available_timeout": "60s",
	"datasource.data_timeout":      "180s",
	"datasource.retries":           2,
	"datasource.cache_ttl":         "5m",

	"graph.width":          900.0,
	"graph.height":         700.0,
	"graph.margin":         40.0,
	"graph.min_zoom":       0.1,
	"graph.max_zoom":       3.0,
	"graph.zoom_step":      1.5,
	"graph.tick_interval":  "16ms",
	"graph.hierarchy_file": "",
	"graph.metric_type":    "sessions_daily",

	"rca.metric_type":       "sessions_daily",
	"rca.dataset":           "sess_attr_v2_additive",
	"rca.metric":            "micro_sessions",
	"rca.threshold":         5.0,
	"rca.min_confidence":    0.6,
	"rca.max_results":       10,
	"rca.weight_function":   "AbsChange",
	"rca.analysis_depth":    3,
	"rca.summary_size":      5,
	"rca.aggregate":         "daily",
	"rca.simulated_delay":   "3s",
	"rca.progress_interval": "500ms",
	"rca.progress_reset":    "2s",

	"export.domain": "root-cause-analysis",
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"addr":            "server.addr",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"datasource":      "datasource.mode",
	"base-url":        "datasource.base_url",
	"hierarchy-file":  "graph.hierarchy_file",
	"allowed-origin":  "cors.allowed_origin",
	"simulated-delay": "rca.simulated_delay",
	"metric-type":     "rca.metric_type",
	"threshold":       "rca.threshold",
	"min-confidence":  "rca.min_confidence",
	"max-results":     "rca.max_results",
}

// New returns a viper instance carrying the defaults and environment
// binding, ready for a config file and flags.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag in fs that has an entry in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs error
	fs.VisitAll(func(f *pflag.Flag) {
		if key, ok := FlagKeys[f.Name]; ok {
			errs = multierr.Append(errs, v.BindPFlag(key, f))
		}
	})
	return errs
}

// Load reads the optional YAML file into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var ErrInvalid = errors.New("invalid configuration")

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Graph.MinZoom <= 0 {
		add("graph.min_zoom must be positive, got %v", c.Graph.MinZoom)
	}
	if c.Graph.MaxZoom < c.Graph.MinZoom {
		add("graph.max_zoom %v is below graph.min_zoom %v", c.Graph.MaxZoom, c.Graph.MinZoom)
	}
	if c.Graph.ZoomStep <= 1 {
		add("graph.zoom_step must be greater than 1, got %v", c.Graph.ZoomStep)
	}
	if c.Graph.Width <= 2*c.Graph.Margin || c.Graph.Height <= 2*c.Graph.Margin {
		add("graph canvas %vx%v leaves no room inside margin %v", c.Graph.Width, c.Graph.Height, c.Graph.Margin)
	}
	if c.RCA.MinConfidence < 0 || c.RCA.MinConfidence > 1 {
		add("rca.min_confidence must be within [0,1], got %v", c.RCA.MinConfidence)
	}
	if c.RCA.MaxResults < 1 {
		add("rca.max_results must be at least 1, got %d", c.RCA.MaxResults)
	}
	if c.RCA.Threshold < 0 {
		add("rca.threshold must not be negative, got %v", c.RCA.Threshold)
	}
	switch c.DataSource.Mode {
	case DataSourceMock, DataSourceHTTP:
	default:
		add("datasource.mode must be %q or %q, got %q", DataSourceMock, DataSourceHTTP, c.DataSource.Mode)
	}
	if c.DataSource.Retries < 0 {
		add("datasource.retries must not be negative, got %d", c.DataSource.Retries)
	}
	return errs
}
