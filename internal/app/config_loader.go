package app

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.sina-dl")
		v.AddConfigPath("/etc/sina-dl")
	}

	v.SetEnvPrefix("SINADL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys makes env-only overrides visible to Unmarshal, which only sees
// keys viper already knows about
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port",
		"upstream.api_base", "upstream.content_base", "upstream.proxy",
		"upstream.timeout", "upstream.requests_per_second",
		"scan.default_concurrency", "scan.max_concurrency", "scan.batch_delay",
		"download.format_override", "download.max_retries",
		"archive.output_dir", "archive.folder", "archive.release_after_pack", "archive.database_path",
		"archive.mirror.enabled", "archive.mirror.endpoint", "archive.mirror.access_key",
		"archive.mirror.secret_key", "archive.mirror.bucket",
		"notification.enabled",
		"logging.level", "logging.format", "logging.output_path", "logging.logs_dir",
	} {
		v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Archive.OutputDir = expandPath(config.Archive.OutputDir)
	config.Archive.DatabasePath = expandPath(config.Archive.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig rejects settings the service cannot run with. Pipeline
// inputs such as concurrency are normalized later instead.
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	for name, raw := range map[string]string{
		"upstream.api_base":     config.Upstream.APIBase,
		"upstream.content_base": config.Upstream.ContentBase,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL: %q", name, raw)
		}
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Archive.OutputDir == "" {
		return fmt.Errorf("archive output directory not configured")
	}

	if config.Archive.DatabasePath == "" {
		return fmt.Errorf("archive database path not configured")
	}

	if config.Archive.Mirror.Enabled && (config.Archive.Mirror.Endpoint == "" || config.Archive.Mirror.Bucket == "") {
		return fmt.Errorf("archive mirror requires endpoint and bucket")
	}

	if len(config.Upstream.UserAgents) == 0 {
		config.Upstream.UserAgents = append([]string(nil), domain.DefaultUserAgents...)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configValues flattens config into the dotted keys LoadConfig reads
func configValues(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":                     c.Server.Host,
		"server.port":                     c.Server.Port,
		"upstream.api_base":               c.Upstream.APIBase,
		"upstream.content_base":           c.Upstream.ContentBase,
		"upstream.proxy":                  c.Upstream.Proxy,
		"upstream.user_agents":            c.Upstream.UserAgents,
		"upstream.timeout":                c.Upstream.Timeout.String(),
		"upstream.requests_per_second":    c.Upstream.RequestsPerSecond,
		"scan.default_concurrency":        c.Scan.DefaultConcurrency,
		"scan.max_concurrency":            c.Scan.MaxConcurrency,
		"scan.batch_delay":                c.Scan.BatchDelay.String(),
		"download.format_override":        c.Download.FormatOverride,
		"download.max_retries":            c.Download.MaxRetries,
		"download.retry_initial_interval": c.Download.RetryInitialInterval.String(),
		"download.retry_max_interval":     c.Download.RetryMaxInterval.String(),
		"archive.output_dir":              c.Archive.OutputDir,
		"archive.folder":                  c.Archive.Folder,
		"archive.name_prefix":             c.Archive.NamePrefix,
		"archive.release_after_pack":      c.Archive.ReleaseAfterPack,
		"archive.database_path":           c.Archive.DatabasePath,
		"archive.mirror.enabled":          c.Archive.Mirror.Enabled,
		"archive.mirror.endpoint":         c.Archive.Mirror.Endpoint,
		"archive.mirror.access_key":       c.Archive.Mirror.AccessKey,
		"archive.mirror.secret_key":       c.Archive.Mirror.SecretKey,
		"archive.mirror.bucket":           c.Archive.Mirror.Bucket,
		"archive.mirror.region":           c.Archive.Mirror.Region,
		"archive.mirror.prefix":           c.Archive.Mirror.Prefix,
		"archive.mirror.use_ssl":          c.Archive.Mirror.UseSSL,
		"notification.enabled":            c.Notification.Enabled,
		"notification.sound":              c.Notification.Sound,
		"notification.method":             c.Notification.Method,
		"logging.level":                   c.Logging.Level,
		"logging.format":                  c.Logging.Format,
		"logging.output_path":             c.Logging.OutputPath,
		"logging.logs_dir":                c.Logging.LogsDir,
	}
}
