// Package config provides configuration types and loading for zelador.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Bot, Paths, Cache, Banner, Audit, Notify.
type Config struct {
	Bot    BotConfig    `json:"bot"`
	Paths  PathsConfig  `json:"paths"`
	Cache  CacheConfig  `json:"cache"`
	Banner BannerConfig `json:"banner"`
	Audit  AuditConfig  `json:"audit"`
	Notify NotifyConfig `json:"notify"`
}

// ---------------------------------------------------------------------------
// Bot – identity and session behaviour
// ---------------------------------------------------------------------------

// BotConfig groups bot identity and session settings.
type BotConfig struct {
	Owner          string `json:"owner" envconfig:"OWNER"`
	Prefix         string `json:"prefix" envconfig:"PREFIX"`
	DualMode       bool   `json:"dualMode" envconfig:"DUAL_MODE"`
	PairCode       bool   `json:"pairCode" envconfig:"PAIR_CODE"`
	Phone          string `json:"phone" envconfig:"PHONE"`
	SecondaryPhone string `json:"secondaryPhone" envconfig:"SECONDARY_PHONE"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings. Empty fields are derived
// from DataDir by Resolve.
type PathsConfig struct {
	DataDir    string `json:"dataDir" envconfig:"DATA_DIR"`
	AuthDir    string `json:"authDir" envconfig:"AUTH_DIR"`
	GroupsDir  string `json:"groupsDir" envconfig:"GROUPS_DIR"`
	ModLogPath string `json:"modLogPath" envconfig:"MODLOG_PATH"`
}

// ---------------------------------------------------------------------------
// Cache – TTLs and timeouts
// ---------------------------------------------------------------------------

// CacheConfig groups cache expiry and outbound timeout settings.
type CacheConfig struct {
	GroupTTL      time.Duration `json:"groupTTL" envconfig:"GROUP_TTL"`
	DedupInterval time.Duration `json:"dedupInterval" envconfig:"DEDUP_INTERVAL"`
	SendTimeout   time.Duration `json:"sendTimeout" envconfig:"SEND_TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Banner – welcome banner rendering
// ---------------------------------------------------------------------------

// BannerConfig configures the external banner rendering API.
type BannerConfig struct {
	APIBase     string `json:"apiBase" envconfig:"BANNER_API_BASE"`
	StockAvatar string `json:"stockAvatar" envconfig:"BANNER_STOCK_AVATAR"`
}

// ---------------------------------------------------------------------------
// Audit – moderation event stream
// ---------------------------------------------------------------------------

// AuditConfig configures the optional Kafka moderation audit stream.
type AuditConfig struct {
	Enabled bool   `json:"enabled" envconfig:"AUDIT_ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// ---------------------------------------------------------------------------
// Notify – owner alerts
// ---------------------------------------------------------------------------

// NotifyConfig configures the optional Slack owner-alert channel.
type NotifyConfig struct {
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Prefix: "!",
		},
		Cache: CacheConfig{
			GroupTTL:      5 * time.Minute,
			DedupInterval: 10 * time.Minute,
			SendTimeout:   30 * time.Second,
		},
		Banner: BannerConfig{
			APIBase:     "https://api.popcat.xyz/welcomecard",
			StockAvatar: "https://telegra.ph/file/24fa902ead26340f3df2c.png",
		},
		Audit: AuditConfig{
			Topic: "zelador.moderation",
		},
	}
}
