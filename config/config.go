package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultIntervalMinutes = 5
	defaultBackupDir       = "backups"
	defaultStatusPath      = "flaresync.db"
	defaultMetricsAddr     = ":9090"
	defaultLogLevel        = "info"
	defaultLogEnv          = "prod"
)

// Discovery source kinds.
const (
	SourceHTTP = "http"
	SourceDNS  = "dns"
)

type Config struct {
	SyncIntervalMinutes int      `yaml:"syncIntervalMinutes"`
	BackupDir           string   `yaml:"backupDir"`
	StatusPath          string   `yaml:"statusPath"`
	MetricsAddr         string   `yaml:"metricsAddr"`
	Log                 Log      `yaml:"log"`
	DNS                 DNS      `yaml:"dns"`
	Discover            Discover `yaml:"discover"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type DNS struct {
	Token   string   `yaml:"token"`
	ZoneID  string   `yaml:"zoneId"`
	Domains []string `yaml:"domains"`
}

type Discover struct {
	Sources []Source `yaml:"sources"`
}

// Source configures one public-IP lookup source. HTTP sources need a URL;
// DNS sources take a resolver address and query name, both optional.
type Source struct {
	Type   string `yaml:"type"`
	URL    string `yaml:"url"`
	Server string `yaml:"server"`
	Name   string `yaml:"name"`
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

func defaultSources() []Source {
	return []Source{
		{Type: SourceHTTP, URL: "https://api.ipify.org"},
		{Type: SourceHTTP, URL: "https://checkip.amazonaws.com"},
		{Type: SourceHTTP, URL: "https://ipv4.icanhazip.com"},
	}
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding with env only", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			f.Close()
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SyncIntervalMinutes == 0 {
		c.SyncIntervalMinutes = defaultIntervalMinutes
	}
	if c.BackupDir == "" {
		c.BackupDir = defaultBackupDir
	}
	if c.StatusPath == "" {
		c.StatusPath = defaultStatusPath
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = defaultMetricsAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Env == "" {
		c.Log.Env = defaultLogEnv
	}
	if len(c.Discover.Sources) == 0 {
		c.Discover.Sources = defaultSources()
	}
}

func (c *Config) applyEnv() error {
	if token := os.Getenv("CLOUDFLARE_API_TOKEN"); token != "" {
		c.DNS.Token = token
	}
	if zoneID := os.Getenv("CLOUDFLARE_ZONE_ID"); zoneID != "" {
		c.DNS.ZoneID = zoneID
	}
	if domains := os.Getenv("DOMAIN_NAME"); domains != "" {
		c.DNS.Domains = splitList(domains)
	}
	if interval := os.Getenv("UPDATE_INTERVAL"); interval != "" {
		minutes, err := strconv.Atoi(interval)
		if err != nil {
			return fmt.Errorf("parse UPDATE_INTERVAL %q: %w", interval, err)
		}
		c.SyncIntervalMinutes = minutes
	}
	if backupDir := os.Getenv("FLARESYNC_BACKUP_DIR"); backupDir != "" {
		c.BackupDir = backupDir
	}
	if statusPath := os.Getenv("FLARESYNC_STATUS_PATH"); statusPath != "" {
		c.StatusPath = statusPath
	}
	if metricsAddr := os.Getenv("FLARESYNC_METRICS_ADDR"); metricsAddr != "" {
		c.MetricsAddr = metricsAddr
	}
	if logLevel := os.Getenv("FLARESYNC_LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
	if logEnv := os.Getenv("FLARESYNC_LOG_ENV"); logEnv != "" {
		c.Log.Env = logEnv
	}
	return nil
}

func (c *Config) validate() error {
	if c.DNS.Token == "" {
		return fmt.Errorf("api token must be set (dns.token or CLOUDFLARE_API_TOKEN)")
	}
	if c.DNS.ZoneID == "" {
		return fmt.Errorf("zone id must be set (dns.zoneId or CLOUDFLARE_ZONE_ID)")
	}

	c.DNS.Domains = cleanDomains(c.DNS.Domains)
	if len(c.DNS.Domains) == 0 {
		return fmt.Errorf("at least one domain must be set (dns.domains or DOMAIN_NAME)")
	}

	if c.SyncIntervalMinutes < 1 {
		return fmt.Errorf("sync interval must be at least 1 minute, got %d", c.SyncIntervalMinutes)
	}

	if len(c.Discover.Sources) < 2 {
		return fmt.Errorf("at least 2 discovery sources required, got %d", len(c.Discover.Sources))
	}
	for i, s := range c.Discover.Sources {
		switch s.Type {
		case SourceHTTP:
			if s.URL == "" {
				return fmt.Errorf("discovery source %d: http source needs a url", i)
			}
		case SourceDNS:
			// Server and name fall back to built-in defaults.
		default:
			return fmt.Errorf("discovery source %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// splitList breaks a comma or semicolon delimited string into trimmed,
// non-empty entries.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	return cleanDomains(fields)
}

func cleanDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.TrimSpace(d)
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
