// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the GameChat service.
package server

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/gamechat/internal/chat"
	"github.com/Tyrowin/gamechat/internal/invite"
	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/spf13/viper"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls
// and the session limits applied by the hub.
type Config struct {
	Port              string
	AllowedOrigins    []string
	MaxMessageSize    int64
	RateLimit         RateLimitConfig
	InviteTimeout     time.Duration
	ChatHistorySize   int
	AvatarURLTemplate string
	ShutdownTimeout   time.Duration
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultBurst           = 5
	defaultRefillInterval  = time.Second
	defaultShutdownTimeout = 30 * time.Second
)

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		InviteTimeout:     invite.DefaultTimeout,
		ChatHistorySize:   chat.DefaultMaxHistory,
		AvatarURLTemplate: presence.DefaultAvatarTemplate,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.InviteTimeout <= 0 {
		cfg.InviteTimeout = invite.DefaultTimeout
	}

	if cfg.ChatHistorySize <= 0 {
		cfg.ChatHistorySize = chat.DefaultMaxHistory
	}

	if !validAvatarTemplate(cfg.AvatarURLTemplate) {
		if cfg.AvatarURLTemplate != "" {
			log.Printf("Ignoring avatar template without exactly one %%s verb: %q", cfg.AvatarURLTemplate)
		}
		cfg.AvatarURLTemplate = presence.DefaultAvatarTemplate
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// validAvatarTemplate reports whether template has a single %s and no other
// formatting verb. A literal percent sign must be written as %%.
func validAvatarTemplate(template string) bool {
	unescaped := strings.ReplaceAll(template, "%%", "")
	return strings.Count(unescaped, "%") == 1 && strings.Count(unescaped, "%s") == 1
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	copied := *cfg
	copied.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(copied)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// CurrentConfig returns a copy of the active, sanitized configuration.
func CurrentConfig() Config {
	return currentConfig()
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from an optional .env file in the working
// directory and the process environment. Environment variables win over the
// file; unset or invalid values fall back to defaults.
func NewConfigFromEnv() *Config {
	return newConfigFromViper(loadViper("."))
}

func loadViper(path string) *viper.Viper {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No .env file found, loading configuration from environment variables")
		} else {
			log.Printf("Ignoring unreadable .env file: %v", err)
		}
	}
	return v
}

func newConfigFromViper(v *viper.Viper) *Config {
	cfg := defaultConfig()

	if port := v.GetString("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := v.GetString("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := v.GetString("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := v.GetString("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := v.GetString("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if timeout := v.GetString("INVITE_TIMEOUT"); timeout != "" {
		cfg.InviteTimeout = parseDuration(timeout, cfg.InviteTimeout)
	}

	if history := v.GetString("CHAT_HISTORY_SIZE"); history != "" {
		cfg.ChatHistorySize = parseIntValue(history, cfg.ChatHistorySize)
	}

	if template := v.GetString("AVATAR_URL_TEMPLATE"); template != "" {
		cfg.AvatarURLTemplate = template
	}

	if timeout := v.GetString("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseDuration(timeout, cfg.ShutdownTimeout)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts a Go duration ("90s") or a bare number of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
