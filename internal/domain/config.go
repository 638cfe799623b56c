package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Upstream     UpstreamConfig     `mapstructure:"upstream"`
	Scan         ScanConfig         `mapstructure:"scan"`
	Download     DownloadConfig     `mapstructure:"download"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// UpstreamConfig describes the remote lookup and content endpoints
type UpstreamConfig struct {
	APIBase           string        `mapstructure:"api_base"`
	ContentBase       string        `mapstructure:"content_base"`
	Proxy             string        `mapstructure:"proxy"`
	UserAgents        []string      `mapstructure:"user_agents"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables the limiter
}

// ScanConfig contains batch scanner settings
type ScanConfig struct {
	DefaultConcurrency int           `mapstructure:"default_concurrency"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	BatchDelay         time.Duration `mapstructure:"batch_delay"`
}

// DownloadConfig contains download sequencer settings
type DownloadConfig struct {
	FormatOverride       string        `mapstructure:"format_override"` // auto, flv, hlv, mp4
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
}

// ArchiveConfig contains packaging and catalog settings
type ArchiveConfig struct {
	OutputDir        string       `mapstructure:"output_dir"`
	Folder           string       `mapstructure:"folder"`
	NamePrefix       string       `mapstructure:"name_prefix"`
	ReleaseAfterPack bool         `mapstructure:"release_after_pack"`
	DatabasePath     string       `mapstructure:"database_path"`
	Mirror           MirrorConfig `mapstructure:"mirror"`
}

// MirrorConfig configures the optional S3-compatible archive mirror
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`
}

// DefaultUserAgents is the client identity pool rotated across upstream requests
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Upstream: UpstreamConfig{
			APIBase:           "http://api.ivideo.sina.com.cn/public/video/play/url",
			ContentBase:       "http://cdn.sinacloud.net/edge.v.iask.com/",
			UserAgents:        append([]string(nil), DefaultUserAgents...),
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
		},
		Scan: ScanConfig{
			DefaultConcurrency: 5,
			MaxConcurrency:     10,
			BatchDelay:         100 * time.Millisecond,
		},
		Download: DownloadConfig{
			FormatOverride:       string(FormatAuto),
			MaxRetries:           0,
			RetryInitialInterval: 500 * time.Millisecond,
			RetryMaxInterval:     5 * time.Second,
		},
		Archive: ArchiveConfig{
			OutputDir:        "$HOME/Downloads/sina-dl/archives",
			Folder:           "sina_videos",
			NamePrefix:       "sina_videos",
			ReleaseAfterPack: false,
			DatabasePath:     "$HOME/Downloads/sina-dl/archives.db",
			Mirror: MirrorConfig{
				Enabled: false,
				Region:  "us-east-1",
				Prefix:  "archives",
			},
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/Downloads/sina-dl/logs",
		},
	}
}
