package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MailConfig holds the IMAP account and the search filter that identifies
// listing notifications.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password may be left empty in the file and resolved from the OS
	// keyring instead.
	Password string `mapstructure:"password" yaml:"password"`

	// Mailbox is the folder to watch.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// Sender and Subject select notification messages: sender equals,
	// subject contains.
	Sender  string `mapstructure:"sender" yaml:"sender"`
	Subject string `mapstructure:"subject" yaml:"subject"`

	// PollIntervalSec is how long (in seconds) to sleep between search
	// cycles.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// PollInterval returns the configured poll interval as a duration.
func (c MailConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// DiscordConfig holds the delivery destination for new listings.
type DiscordConfig struct {
	// Token may be left empty in the file and resolved from the OS
	// keyring instead.
	Token string `mapstructure:"token" yaml:"token"`

	// ChannelID is the channel listings are posted to.
	ChannelID string `mapstructure:"channel_id" yaml:"channel_id"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Level is a zerolog level name ("debug", "info", ...).
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "console" for human-readable output or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	Discord DiscordConfig `mapstructure:"discord" yaml:"discord"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// envPrefix namespaces the environment variables that override config
// keys, e.g. ZILLOWBOT_MAIL_HOST.
const envPrefix = "ZILLOWBOT"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/zillowbot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "zillowbot", "config.yaml")
}

// DefaultConfig returns the configuration the daemon starts from before
// the file and environment are applied.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Mail: MailConfig{
			Port:            "993",
			Mailbox:         "INBOX",
			Sender:          "rental-instant-updates@mail.zillow.com",
			Subject:         "New Listing",
			PollIntervalSec: 60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// setDefaults registers every known key so environment overrides resolve
// even when the config file is absent.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", "993")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.sender", "rental-instant-updates@mail.zillow.com")
	v.SetDefault("mail.subject", "New Listing")
	v.SetDefault("mail.poll_interval_sec", 60)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.channel_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads configuration from the given YAML file path using
// Viper, applying ZILLOWBOT_* environment overrides on top. A missing
// file is not an error; defaults and environment cover it.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !isNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// isNotExist reports whether err means the config file is absent.
func isNotExist(err error) bool {
	if _, ok := err.(*os.PathError); ok {
		return true
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return false
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mail", cfg.Mail)
	v.Set("discord", cfg.Discord)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate checks the fields the daemon cannot run without. It expects
// secrets to have been resolved already.
func (c *AppConfig) Validate() error {
	if c.Mail.Host == "" {
		return errors.New("mail.host is required")
	}
	if c.Mail.Username == "" {
		return errors.New("mail.username is required")
	}
	if c.Mail.Password == "" {
		return errors.New("mail.password is required, in the config file or the keyring")
	}
	if c.Mail.PollIntervalSec <= 0 {
		return errors.New("mail.poll_interval_sec must be positive")
	}
	if c.Discord.Token == "" {
		return errors.New("discord.token is required, in the config file or the keyring")
	}
	if c.Discord.ChannelID == "" {
		return errors.New("discord.channel_id is required")
	}
	return nil
}
