package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a missing or malformed required setting. The boundary
// treats it as fatal: the process refuses to start rather than answering
// requests with a half-loaded configuration.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Setting, e.Reason)
}

// Config is the full per-deployment configuration. It is loaded once at
// startup and read-only afterwards.
type Config struct {
	// Server holds listener-specific configuration.
	Server struct {
		Port           int    `yaml:"port"`
		Path           string `yaml:"path"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	GitHub        GitHubConfig  `yaml:"github"`
	Discord       DiscordConfig `yaml:"discord"`
	Sink          SinkConfig    `yaml:"sink"`
	Filters       []Filter      `yaml:"filters"`
	FiltersStrict bool          `yaml:"filters_strict"`
}

// GitHubConfig holds the inbound webhook settings.
type GitHubConfig struct {
	// Secret is the shared webhook secret used for signature verification.
	Secret string `yaml:"secret"`
	// ReviewerTeam, when set, restricts team review-request notifications
	// to this team slug.
	ReviewerTeam string `yaml:"reviewer_team"`
}

// DiscordConfig holds the outbound webhook URL and the recipient tables
// mapping GitHub identities to Discord mention ids.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	// UserIDs maps a GitHub login to a Discord user id.
	UserIDs map[string]string `yaml:"user_ids"`
	// RoleIDs maps a GitHub team slug to a Discord role id.
	RoleIDs map[string]string `yaml:"role_ids"`
}

// SinkConfig holds the configuration for the delivery sink drivers.
type SinkConfig struct {
	Driver    string          `yaml:"driver"`
	Drivers   []string        `yaml:"drivers"`
	GoChannel GoChannelConfig `yaml:"gochannel"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	AMQP      AMQPConfig      `yaml:"amqp"`
}

// GoChannelConfig holds configuration for the in-process GoChannel sink.
type GoChannelConfig struct {
	OutputChannelBuffer int64 `yaml:"output_buffer"`
	Persistent          bool  `yaml:"persistent"`
}

// KafkaConfig holds configuration for the Kafka sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming sink.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP sink.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// LoadConfig loads the configuration from a YAML file. Environment
// variables referenced in the file are expanded, and a handful of plain
// environment variables override the file to match the original
// deployment surface: GH_SECRET, GH_REVIEWER_TEAM, WEBHOOK_URL, and the
// JSON-encoded recipient tables DC_USER_IDS and DC_ROLE_IDS. An empty
// path skips the file and loads from the environment alone.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)

	normalized, err := normalizeFilters(cfg.Filters)
	if err != nil {
		return cfg, err
	}
	cfg.Filters = normalized

	return cfg, nil
}

// Validate checks that every required setting is present. It is called
// once at startup, after LoadConfig.
func (c *Config) Validate() error {
	if c.GitHub.Secret == "" {
		return &ConfigError{Setting: "github.secret", Reason: "required"}
	}
	for _, driver := range c.sinkDrivers() {
		if strings.EqualFold(driver, "http") && c.Discord.WebhookURL == "" {
			return &ConfigError{Setting: "discord.webhook_url", Reason: "required for the http sink"}
		}
	}
	return nil
}

func (c *Config) sinkDrivers() []string {
	if len(c.Sink.Drivers) > 0 {
		return c.Sink.Drivers
	}
	return []string{c.Sink.Driver}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GH_SECRET"); v != "" {
		cfg.GitHub.Secret = v
	}
	if v := os.Getenv("GH_REVIEWER_TEAM"); v != "" {
		cfg.GitHub.ReviewerTeam = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Discord.WebhookURL = v
	}
	if v := os.Getenv("DC_USER_IDS"); v != "" {
		ids, err := decodeIDTable(v)
		if err != nil {
			return &ConfigError{Setting: "DC_USER_IDS", Reason: err.Error()}
		}
		cfg.Discord.UserIDs = ids
	}
	if v := os.Getenv("DC_ROLE_IDS"); v != "" {
		ids, err := decodeIDTable(v)
		if err != nil {
			return &ConfigError{Setting: "DC_ROLE_IDS", Reason: err.Error()}
		}
		cfg.Discord.RoleIDs = ids
	}
	return nil
}

func decodeIDTable(raw string) (map[string]string, error) {
	var ids map[string]string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("not a JSON string map: %w", err)
	}
	return ids, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = "/"
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Sink.Driver == "" {
		cfg.Sink.Driver = "http"
	}
	if cfg.Sink.GoChannel.OutputChannelBuffer == 0 {
		cfg.Sink.GoChannel.OutputChannelBuffer = 64
	}
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(filters))
	for i := range filters {
		filter := filters[i]
		filter.When = strings.TrimSpace(filter.When)
		if filter.When == "" {
			return nil, fmt.Errorf("filter %d is missing when", i)
		}
		out = append(out, filter)
	}
	return out, nil
}
