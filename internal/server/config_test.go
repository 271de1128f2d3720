package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tyrowin/gamechat/internal/chat"
	"github.com/Tyrowin/gamechat/internal/invite"
	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	assert.Equal(t, invite.DefaultTimeout, cfg.InviteTimeout)
	assert.Equal(t, chat.DefaultMaxHistory, cfg.ChatHistorySize)
	assert.Equal(t, presence.DefaultAvatarTemplate, cfg.AvatarURLTemplate)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		AllowedOrigins:    []string{" HTTP://Example.COM ", "not a url", "http://example.com", ""},
		MaxMessageSize:    -1,
		RateLimit:         RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		ChatHistorySize:   -5,
		AvatarURLTemplate: "https://avatars.test/static.png",
	})

	cfg := CurrentConfig()
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, []string{"http://example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, defaultBurst, cfg.RateLimit.Burst)
	assert.Equal(t, defaultRefillInterval, cfg.RateLimit.RefillInterval)
	assert.Equal(t, invite.DefaultTimeout, cfg.InviteTimeout)
	assert.Equal(t, chat.DefaultMaxHistory, cfg.ChatHistorySize)
	assert.Equal(t, presence.DefaultAvatarTemplate, cfg.AvatarURLTemplate)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestSetConfigCopiesOrigins(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg := NewConfig()
	SetConfig(cfg)
	cfg.AllowedOrigins[0] = "http://mutated.test"

	assert.Equal(t, []string{"http://localhost:8080"}, CurrentConfig().AllowedOrigins)
}

func TestAvatarTemplateValidation(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	tests := []struct {
		template string
		valid    bool
	}{
		{presence.DefaultAvatarTemplate, true},
		{"https://avatars.test/%s.png", true},
		{"https://avatars.test/100%%/%s.png", true},
		{"https://avatars.test/%d?seed=%s", false},
		{"https://avatars.test/%s/%s", false},
		{"https://avatars.test/%%s", false},
		{"https://avatars.test/a%20b/%s", false},
		{"https://avatars.test/static.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.valid, validAvatarTemplate(tt.template))

			SetConfig(&Config{AvatarURLTemplate: tt.template})
			want := presence.DefaultAvatarTemplate
			if tt.valid {
				want = tt.template
			}
			assert.Equal(t, want, CurrentConfig().AvatarURLTemplate)
		})
	}
}

func TestNewConfigFromViperEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("INVITE_TIMEOUT", "90s")
	t.Setenv("CHAT_HISTORY_SIZE", "20")
	t.Setenv("AVATAR_URL_TEMPLATE", "https://avatars.test/%s.png")
	t.Setenv("SHUTDOWN_TIMEOUT", "5")

	cfg := newConfigFromViper(loadViper(t.TempDir()))

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 90*time.Second, cfg.InviteTimeout)
	assert.Equal(t, 20, cfg.ChatHistorySize)
	assert.Equal(t, "https://avatars.test/%s.png", cfg.AvatarURLTemplate)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestNewConfigFromViperInvalidValuesFallBack(t *testing.T) {
	v := viper.New()
	v.Set("MAX_MESSAGE_SIZE", "huge")
	v.Set("RATE_LIMIT_BURST", "-3")
	v.Set("INVITE_TIMEOUT", "soon")
	v.Set("CHAT_HISTORY_SIZE", "0")

	cfg := newConfigFromViper(v)

	assert.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, defaultBurst, cfg.RateLimit.Burst)
	assert.Equal(t, invite.DefaultTimeout, cfg.InviteTimeout)
	assert.Equal(t, chat.DefaultMaxHistory, cfg.ChatHistorySize)
}

func TestLoadViperReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	content := "SERVER_PORT=:7070\nCHAT_HISTORY_SIZE=12\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg := newConfigFromViper(loadViper(dir))

	assert.Equal(t, ":7070", cfg.Port)
	assert.Equal(t, 12, cfg.ChatHistorySize)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"45", 45 * time.Second},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"0", time.Minute},
		{"-2s", time.Minute},
		{"later", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDuration(tt.in, time.Minute))
		})
	}
}
