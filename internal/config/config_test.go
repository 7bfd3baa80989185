package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INBOX", cfg.Mail.Mailbox)
	assert.Equal(t, "rental-instant-updates@mail.zillow.com", cfg.Mail.Sender)
	assert.Equal(t, "New Listing", cfg.Mail.Subject)
	assert.Equal(t, "993", cfg.Mail.Port)
	assert.Equal(t, 60, cfg.Mail.PollIntervalSec)
	assert.Equal(t, time.Minute, cfg.Mail.PollInterval())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `mail:
  host: imap.example.org
  username: hunter@example.com
  poll_interval_sec: 15
discord:
  channel_id: "123456"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "imap.example.org", cfg.Mail.Host)
	assert.Equal(t, "hunter@example.com", cfg.Mail.Username)
	assert.Equal(t, 15, cfg.Mail.PollIntervalSec)
	assert.Equal(t, "123456", cfg.Discord.ChannelID)

	// Keys the file omits keep their defaults.
	assert.Equal(t, "INBOX", cfg.Mail.Mailbox)
	assert.Equal(t, "New Listing", cfg.Mail.Subject)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ZILLOWBOT_MAIL_HOST", "imap.fastmail.com")
	t.Setenv("ZILLOWBOT_DISCORD_CHANNEL_ID", "987654")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "imap.fastmail.com", cfg.Mail.Host)
	assert.Equal(t, "987654", cfg.Discord.ChannelID)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mail.Host = "imap.example.org"
	cfg.Mail.Username = "hunter@example.com"
	cfg.Discord.ChannelID = "42"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		cfg := DefaultConfig()
		cfg.Mail.Host = "imap.example.org"
		cfg.Mail.Username = "hunter@example.com"
		cfg.Mail.Password = "pw"
		cfg.Discord.Token = "token"
		cfg.Discord.ChannelID = "42"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:    "complete",
			mutate:  func(*AppConfig) {},
			wantErr: "",
		},
		{
			name:    "missing host",
			mutate:  func(c *AppConfig) { c.Mail.Host = "" },
			wantErr: "mail.host",
		},
		{
			name:    "missing username",
			mutate:  func(c *AppConfig) { c.Mail.Username = "" },
			wantErr: "mail.username",
		},
		{
			name:    "missing password",
			mutate:  func(c *AppConfig) { c.Mail.Password = "" },
			wantErr: "mail.password",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *AppConfig) { c.Mail.PollIntervalSec = 0 },
			wantErr: "poll_interval_sec",
		},
		{
			name:    "missing token",
			mutate:  func(c *AppConfig) { c.Discord.Token = "" },
			wantErr: "discord.token",
		},
		{
			name:    "missing channel",
			mutate:  func(c *AppConfig) { c.Discord.ChannelID = "" },
			wantErr: "discord.channel_id",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)

			err := cfg.Validate()
			if test.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.wantErr)
		})
	}
}
