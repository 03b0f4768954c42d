package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in the series catalogue.
const (
	ProviderFRED     = "fred"
	ProviderTreasury = "treasury"
)

type Config struct {
	RecessionFlow RecessionFlowConfig `yaml:"recessionflow"`
	Reader        ReaderConfig        `yaml:"reader"`
	Source        SourceConfig        `yaml:"source"`
	Series        []SeriesConfig      `yaml:"series" validate:"dive"`
	Writer        WriterConfig        `yaml:"writer"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type RecessionFlowConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version" validate:"required"`
}

type ReaderConfig struct {
	Timeout        time.Duration        `yaml:"timeout" default:"30s" validate:"gt=0"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"10" validate:"gte=0"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host" default:"10" validate:"gte=0"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" default:"90s"`
}

type SourceConfig struct {
	FRED     FREDConfig     `yaml:"fred"`
	Treasury TreasuryConfig `yaml:"treasury"`
}

type FREDConfig struct {
	URL    string `yaml:"url" default:"https://api.stlouisfed.org/fred/series/observations" validate:"required,url"`
	APIKey string `yaml:"api_key"`
}

type TreasuryConfig struct {
	URL               string  `yaml:"url" default:"https://home.treasury.gov/resource-center/data-chart-center/interest-rates/pages/xml" validate:"required,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// SeriesConfig is one entry of the ordered series catalogue. The first entry
// is the recession label.
type SeriesConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider" validate:"oneof=fred treasury"`
	ID       string `yaml:"id" validate:"required"`
}

type WriterConfig struct {
	Format      string `yaml:"format" default:"csv" validate:"oneof=csv parquet xlsx"`
	Compression string `yaml:"compression" default:"snappy"`
	KPIPrefix   string `yaml:"kpi_prefix" default:"kpi"`
	NRRPrefix   string `yaml:"nrr_prefix" default:"nrr"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Local LocalConfig `yaml:"local"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"recessionflow.artifacts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json" validate:"oneof=json text"`
	Output string `yaml:"output" default:"stdout"`
	MaxAge int    `yaml:"max_age" validate:"gte=0"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// DefaultSeries is the catalogue used when the configuration file does not
// list any series.
func DefaultSeries() []SeriesConfig {
	return []SeriesConfig{
		{Name: "NBER Recession Index", Provider: ProviderFRED, ID: "USREC"},
		{Name: "Price Consumer Expenditure", Provider: ProviderFRED, ID: "PCE"},
		{Name: "Corporate Profits After Tax", Provider: ProviderFRED, ID: "CP"},
		{Name: "Gross Domestic Product", Provider: ProviderFRED, ID: "GDP"},
		{Name: "Industrial Production", Provider: ProviderFRED, ID: "INDPRO"},
		{Name: "Total Retail Trade", Provider: ProviderFRED, ID: "SLRTTO01USQ661S"},
		{Name: "Unemployment Rate", Provider: ProviderFRED, ID: "UNRATE"},
		{Name: "Volatility Index", Provider: ProviderFRED, ID: "VIXCLS"},
		{Name: "Yield Curve", Provider: ProviderTreasury, ID: "daily_treasury_yield_curve"},
	}
}

var validate = validator.New()

// defaultConfig returns a Config populated from the default struct tags.
func defaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// validates the result. When APP_ENV names an environment with its own file
// (config/config.<env>.yml) and path is the default, that file is used.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(config.Series) == 0 {
		config.Series = DefaultSeries()
	}

	if v := os.Getenv("FRED_API_KEY"); v != "" {
		config.Source.FRED.APIKey = strings.TrimSpace(v)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" && config.Storage.Kafka.Enabled {
		config.Storage.Kafka.Brokers = splitList(v)
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
	config.Writer.Format = strings.ToLower(strings.TrimSpace(config.Writer.Format))

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return describeValidation(err)
	}

	for _, s := range cfg.Series {
		if s.Provider == ProviderFRED && cfg.Source.FRED.APIKey == "" {
			return fmt.Errorf("source.fred.api_key (or FRED_API_KEY) is required")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if (cfg.Storage.S3.AccessKeyID == "") != (cfg.Storage.S3.SecretAccessKey == "") {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Local.Enabled && cfg.Storage.Local.Dir == "" {
		return fmt.Errorf("storage.local.dir is required when local storage is enabled")
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when kafka is enabled")
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// describeValidation reports the first failed rule as field: rule.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	if e.Param() != "" {
		return fmt.Errorf("%s failed '%s=%s' (value '%v')", field, e.Tag(), e.Param(), e.Value())
	}
	return fmt.Errorf("%s failed '%s' (value '%v')", field, e.Tag(), e.Value())
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
