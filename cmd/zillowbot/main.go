package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkaro/zillowbot/internal/config"
	"github.com/pkaro/zillowbot/internal/credential"
	"github.com/pkaro/zillowbot/internal/mailbox"
	"github.com/pkaro/zillowbot/internal/notify"
	"github.com/pkaro/zillowbot/internal/pipeline"
)

// Restart policy for fatal pipeline errors. The delay doubles per
// consecutive failure and resets once listings flow again.
const (
	restartBaseDelay = 5 * time.Second
	restartMaxDelay  = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to the config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	initConfig := flag.Bool("init-config", false, "write a starter config file and exit")
	setSecret := flag.String("set-secret", "", "store a keyring secret under the given key (value read from stdin) and exit")
	deleteSecret := flag.String("delete-secret", "", "remove the given keyring secret and exit")
	flag.Parse()

	if *initConfig {
		if err := config.SaveConfig(*configPath, config.DefaultConfig()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("wrote", *configPath)
		return
	}

	if *setSecret != "" {
		value, err := readSecret(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "reading secret:", err)
			os.Exit(1)
		}
		if err := credential.Set(*setSecret, value); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("stored", *setSecret)
		return
	}

	if *deleteSecret != "" {
		if err := credential.Delete(*deleteSecret); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("deleted", *deleteSecret)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log, *debug)

	if err := resolveSecrets(cfg); err != nil {
		log.Fatal().Err(err).Msg("resolving secrets")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, err := notify.New(cfg.Discord.Token, cfg.Discord.ChannelID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("setting up discord")
	}

	if err := watch(ctx, cfg, log, notifier); err != nil {
		log.Fatal().Err(err).Msg("watcher stopped")
	}
	log.Info().Msg("shut down")
}

// watch runs the polling pipeline, forwarding each listing to the
// notifier, and restarts the pipeline with capped backoff after fatal
// session errors. Authentication failures are not retried: bad
// credentials do not fix themselves.
func watch(
	ctx context.Context,
	cfg *config.AppConfig,
	log zerolog.Logger,
	notifier *notify.Notifier,
) error {
	delay := restartBaseDelay

	for {
		pipe := pipeline.New(pipeline.Config{
			Mailbox: mailbox.Config{
				Host:     cfg.Mail.Host,
				Port:     cfg.Mail.Port,
				Username: cfg.Mail.Username,
				Password: cfg.Mail.Password,
			},
			MailboxName:  cfg.Mail.Mailbox,
			Sender:       cfg.Mail.Sender,
			Subject:      cfg.Mail.Subject,
			PollInterval: cfg.Mail.PollInterval(),
		}, log)

		listings, errc := pipe.Run(ctx)

		for l := range listings {
			notifier.Post(ctx, l)
			delay = restartBaseDelay
		}

		err := <-errc
		if err == nil {
			return nil
		}
		if mailbox.IsAuthError(err) {
			return err
		}

		log.Error().Err(err).Dur("restart_in", delay).Msg("pipeline failed, restarting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > restartMaxDelay {
			delay = restartMaxDelay
		}
	}
}

// newLogger builds the process logger from config, honoring -debug.
func newLogger(cfg config.LogConfig, debug bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}

	var w io.Writer = os.Stderr
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// resolveSecrets fills credentials the config file leaves blank from the
// OS keyring.
func resolveSecrets(cfg *config.AppConfig) error {
	if cfg.Mail.Password == "" {
		pw, err := credential.Get(credential.KeyIMAPPassword)
		if err != nil {
			return fmt.Errorf("imap password not configured and not in keyring: %w", err)
		}
		cfg.Mail.Password = pw
	}

	if cfg.Discord.Token == "" {
		token, err := credential.Get(credential.KeyDiscordToken)
		if err != nil {
			return fmt.Errorf("discord token not configured and not in keyring: %w", err)
		}
		cfg.Discord.Token = token
	}

	return nil
}

// readSecret reads one line from r, typically a terminal or a pipe.
func readSecret(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input")
	}

	value := strings.TrimSpace(sc.Text())
	if value == "" {
		return "", errors.New("empty secret")
	}
	return value, nil
}
