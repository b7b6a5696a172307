package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConnectionEnv names the variable holding the storage connection
// string when a request does not name one.
const DefaultConnectionEnv = "AZURE_STORAGE_CONNECTION_STRING"

type Config struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	DetectEndpoint     string        `mapstructure:"detect_endpoint"`
	DetectTimeout      time.Duration `mapstructure:"detect_timeout"`
	ConnectionEnv      string        `mapstructure:"default_connection_env"`
	JPEGQuality        int           `mapstructure:"jpeg_quality"`
	EncodeWorkers      int           `mapstructure:"encode_workers"`
	TempDir            string        `mapstructure:"temp_dir"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	LogLevel           string        `mapstructure:"log_level"`
	GinMode            string        `mapstructure:"gin_mode"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     120 * time.Second,
		DetectTimeout:      90 * time.Second,
		ConnectionEnv:      DefaultConnectionEnv,
		JPEGQuality:        95,
		TempDir:            os.TempDir(),
		MaxRequestBodySize: 1024 * 1024,
		LogLevel:           "info",
		GinMode:            "release",
	}
}

// LoadFromEnv reads the configuration from the environment and, when
// CONFIG_FILE is set, from that file first.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Every key is also bound to its upper-cased environment variable
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The functions host hands the custom handler its port here
	if port := os.Getenv("FUNCTIONS_CUSTOMHANDLER_PORT"); port != "" {
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges; DETECT_ENDPOINT may be empty and is reported per request.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.DetectTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, detect=%s)",
			c.RequestTimeout, c.DetectTimeout)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100 (got %d)", c.JPEGQuality)
	}
	if c.EncodeWorkers < 0 {
		return fmt.Errorf("ENCODE_WORKERS must be >= 0 (got %d)", c.EncodeWorkers)
	}
	if strings.TrimSpace(c.ConnectionEnv) == "" {
		return fmt.Errorf("DEFAULT_CONNECTION_ENV cannot be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("detect_endpoint", "")
	v.SetDefault("detect_timeout", d.DetectTimeout)
	v.SetDefault("default_connection_env", d.ConnectionEnv)
	v.SetDefault("jpeg_quality", d.JPEGQuality)
	v.SetDefault("encode_workers", d.EncodeWorkers)
	v.SetDefault("temp_dir", d.TempDir)
	v.SetDefault("max_request_body_size", d.MaxRequestBodySize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("gin_mode", d.GinMode)
}
