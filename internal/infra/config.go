package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"deribit_book/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWSURL      = "wss://www.deribit.com/ws/api/v2"
	DefaultInstrument = "BTC-PERPETUAL"
	DefaultInterval   = "100ms"
)

// Config holds every setting of the book replica.
// It is loaded from YAML by LoadConfig and then overridden from the environment.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Deribit struct {
			WSURL        string `yaml:"ws_url"`
			Instrument   string `yaml:"instrument"`
			Interval     string `yaml:"interval"` // "raw", "100ms", "agg2"
			HeartbeatSec int    `yaml:"heartbeat_sec"`
		} `yaml:"deribit"`
	} `yaml:"api"`

	Report struct {
		IntervalMS  int             `yaml:"interval_ms"`
		SampleEvery int             `yaml:"sample_every"` // 0 disables journal samples
		MaxSpread   decimal.Decimal `yaml:"max_spread"`   // 0 disables the warning
	} `yaml:"report"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML bytes, applies defaults and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.Deribit.WSURL == "" {
		cfg.API.Deribit.WSURL = DefaultWSURL
	}
	if cfg.API.Deribit.Instrument == "" {
		cfg.API.Deribit.Instrument = DefaultInstrument
	}
	if cfg.API.Deribit.Interval == "" {
		cfg.API.Deribit.Interval = DefaultInterval
	}
	if cfg.Report.IntervalMS == 0 {
		cfg.Report.IntervalMS = 1000
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	d := c.API.Deribit
	if !strings.HasPrefix(d.WSURL, "ws://") && !strings.HasPrefix(d.WSURL, "wss://") {
		return &domain.ConfigError{Field: "api.deribit.ws_url", Err: fmt.Errorf("not a websocket url: %q", d.WSURL)}
	}
	if strings.ContainsAny(d.Instrument, " .") {
		return &domain.ConfigError{Field: "api.deribit.instrument", Err: fmt.Errorf("%w: %q", domain.ErrInvalidInstrument, d.Instrument)}
	}
	if d.HeartbeatSec != 0 && d.HeartbeatSec < 10 {
		// Deribit rejects heartbeat intervals below 10 seconds
		return &domain.ConfigError{Field: "api.deribit.heartbeat_sec", Err: fmt.Errorf("must be 0 or >= 10, got %d", d.HeartbeatSec)}
	}

	if c.Report.IntervalMS <= 0 {
		return &domain.ConfigError{Field: "report.interval_ms", Err: fmt.Errorf("must be positive")}
	}
	if c.Report.SampleEvery < 0 {
		return &domain.ConfigError{Field: "report.sample_every", Err: fmt.Errorf("must not be negative")}
	}
	if c.Report.MaxSpread.IsNegative() {
		return &domain.ConfigError{Field: "report.max_spread", Err: fmt.Errorf("must not be negative")}
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		return &domain.ConfigError{Field: "storage.path", Err: fmt.Errorf("required when storage is enabled")}
	}

	return nil
}

// Channel returns the subscription channel name, e.g. "book.BTC-PERPETUAL.100ms".
func (c *Config) Channel() string {
	return "book." + c.API.Deribit.Instrument + "." + c.API.Deribit.Interval
}

// ReportInterval returns the reporting tick as a duration.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Report.IntervalMS) * time.Millisecond
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("DERIBIT_WS_URL"); url != "" {
		cfg.API.Deribit.WSURL = url
	}
	if inst := os.Getenv("DERIBIT_INSTRUMENT"); inst != "" {
		cfg.API.Deribit.Instrument = inst
	}
	if interval := os.Getenv("DERIBIT_INTERVAL"); interval != "" {
		cfg.API.Deribit.Interval = interval
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
